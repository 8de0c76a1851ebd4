// Package stats implements the exponentially-weighted moving estimators the
// fair-price and trend models are built from: Ema, Emse, HoltEma, and the
// TrendEstimator wrapper that turns any of them into a differencer.
package stats

import "math"

// halfLifeToA converts a half-life (in samples) to the smoothing factor a
// such that a^halfLife == 0.5.
func halfLifeToA(halfLife float64) float64 {
	return math.Pow(0.5, 1/halfLife)
}

// Ema is an exponentially-weighted moving average.
type Ema struct {
	a             float64
	value         float64
	hasValue      bool
	samplesNeeded int
}

// NewEma builds an Ema with the given half-life (in samples). If value0 is
// provided, the Ema starts warm (Ready immediately); otherwise it needs
// halfLife samples before Ready.
func NewEma(halfLife float64, value0 ...float64) *Ema {
	e := &Ema{a: halfLifeToA(halfLife)}
	if len(value0) > 0 {
		e.value = value0[0]
		e.hasValue = true
		e.samplesNeeded = 0
	} else {
		e.samplesNeeded = int(halfLife)
	}
	return e
}

// A returns the smoothing factor.
func (e *Ema) A() float64 { return e.a }

// Value returns the current estimate.
func (e *Ema) Value() float64 { return e.value }

// Step updates the estimate with a new sample and returns it. The first
// call (from an unseeded Ema) returns x unchanged.
func (e *Ema) Step(x float64) float64 {
	if !e.hasValue {
		e.value = x
		e.hasValue = true
	}
	e.value = e.a*e.value + (1-e.a)*x
	if e.samplesNeeded > 0 {
		e.samplesNeeded--
	}
	return e.value
}

// Ready reports whether enough samples have been seen for the estimate to
// be trusted.
func (e *Ema) Ready() bool { return e.samplesNeeded == 0 }

// Emse is an exponentially-weighted moving mean squared error.
type Emse struct {
	a             float64
	mse           float64
	samplesNeeded int
}

// NewEmse builds an Emse with the given half-life. If mse0 is provided the
// Emse starts warm; otherwise it needs halfLife samples before Ready.
func NewEmse(halfLife float64, mse0 ...float64) *Emse {
	e := &Emse{a: halfLifeToA(halfLife)}
	if len(mse0) > 0 {
		e.mse = mse0[0]
		e.samplesNeeded = 0
	} else {
		e.samplesNeeded = int(halfLife)
	}
	return e
}

// Mse returns the current mean squared error estimate.
func (e *Emse) Mse() float64 { return e.mse }

// Stderr returns sqrt(Mse()).
func (e *Emse) Stderr() float64 { return math.Sqrt(e.mse) }

// Step folds a new error term e into the estimate and returns the updated
// MSE.
func (e *Emse) Step(errTerm float64) float64 {
	e.mse = e.a * (e.mse + (1-e.a)*errTerm*errTerm)
	if e.samplesNeeded > 0 {
		e.samplesNeeded--
	}
	return e.mse
}

// Ready reports whether enough samples have been seen.
func (e *Emse) Ready() bool { return e.samplesNeeded == 0 }

// HoltEma is Holt's linear (double) exponential smoothing: a level estimate
// plus a trend estimate, with an optional moving mean squared error of the
// one-step-ahead forecast.
type HoltEma struct {
	a, b       float64
	c          float64
	hasC       bool
	value      float64
	hasValue   bool
	trend      float64
	mse        float64
	hasMse     bool
	needed     int
}

// NewHoltEma builds a HoltEma. mseHalfLife is optional (pass none to skip
// tracking forecast error).
func NewHoltEma(valueHalfLife, trendHalfLife float64, mseHalfLife ...float64) *HoltEma {
	h := &HoltEma{
		a:      halfLifeToA(valueHalfLife),
		b:      halfLifeToA(trendHalfLife),
		needed: int(math.Max(valueHalfLife, trendHalfLife)),
	}
	if len(mseHalfLife) > 0 {
		h.c = halfLifeToA(mseHalfLife[0])
		h.hasC = true
	}
	return h
}

// Value returns the current level estimate.
func (h *HoltEma) Value() float64 { return h.value }

// Trend returns the current trend estimate.
func (h *HoltEma) Trend() float64 { return h.trend }

// Mse returns the current forecast mean squared error (zero if not
// tracked).
func (h *HoltEma) Mse() float64 { return h.mse }

// Stderr returns sqrt(Mse()).
func (h *HoltEma) Stderr() float64 { return math.Sqrt(h.mse) }

// Step folds a new sample into the level and trend estimates and returns
// the updated level.
func (h *HoltEma) Step(x float64) float64 {
	if !h.hasValue {
		h.value = x
		h.hasValue = true
	}
	valueOld := h.value
	forecast := h.value + h.trend
	h.value = h.a*(h.value+h.trend) + (1-h.a)*x
	h.trend = h.b*h.trend + (1-h.b)*(h.value-valueOld)
	if h.hasC {
		err := x - forecast
		h.mse = h.c * (h.mse + (1-h.c)*err*err)
		h.hasMse = true
	}
	if h.needed > 0 {
		h.needed--
	}
	return h.value
}

// Ready reports whether enough samples have been seen.
func (h *HoltEma) Ready() bool { return h.needed == 0 }

// stepper is the subset of Ema/Emse/HoltEma that TrendEstimator drives.
type stepper interface {
	Step(x float64) float64
	Ready() bool
}

// TrendEstimator wraps an estimator (typically an Ema) so that it is fed
// successive differences of its input rather than the input itself —
// turning a level estimator into a first-difference (trend) estimator.
type TrendEstimator struct {
	estimator stepper
	prev      float64
	hasPrev   bool
}

// NewTrendEstimator wraps estimator. If init is provided, the first Step
// call computes its diff against init instead of returning a zero diff.
func NewTrendEstimator(estimator stepper, init ...float64) *TrendEstimator {
	t := &TrendEstimator{estimator: estimator}
	if len(init) > 0 {
		t.prev = init[0]
		t.hasPrev = true
	}
	return t
}

// Prev returns the last raw value seen.
func (t *TrendEstimator) Prev() (float64, bool) { return t.prev, t.hasPrev }

// Ready delegates to the wrapped estimator.
func (t *TrendEstimator) Ready() bool { return t.estimator.Ready() }

// Step folds a new raw value into the wrapped estimator as the difference
// from the previous raw value, and returns the estimator's updated output.
func (t *TrendEstimator) Step(x float64) float64 {
	if !t.hasPrev {
		t.prev = x
		t.hasPrev = true
	}
	diff := x - t.prev
	t.prev = x
	return t.estimator.Step(diff)
}
