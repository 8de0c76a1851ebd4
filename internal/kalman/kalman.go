// Package kalman implements the Kalman-style per-pair fair-price
// estimator: a correlated-movement predictor that treats each observed
// pair as an independent noisy information channel about every other
// pair's short-term delta, fuses those channels by Gaussian intersection,
// and rolls the result forward with the previous posterior plus an
// expected one-step drift.
package kalman

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"fairsengine/internal/book"
	"fairsengine/internal/gaussian"
	"fairsengine/internal/stats"
)

// Estimator is a Strategy: it consumes a per-pair price observation plus
// the Signal Aggregator's latest basket-return row each tick, and emits a
// joint (diagonal) Gaussian over all configured pairs.
type Estimator struct {
	pairs       []book.ExchangePair
	windowSize  int
	basketPairs [][]int // per-basket member pair indices, aligned to the Aggregator's Columns()/signal row ordering

	moving []*stats.Ema // one EMA per pair, indexed like pairs
	ring   [][]float64  // up to windowSize rows of moving-price vectors

	prevPrediction gaussian.Gaussian
}

// New builds an Estimator for the given fixed pair ordering, a rolling
// correlation window of windowSize ticks, and a movement EMA half-life (in
// ticks) applied to each pair's raw price before it enters the window.
// basketPairs maps each basket (in the Aggregator's column order) to the
// indices within pairs of its member pairs; pass nil to run without basket
// signals (e.g. in tests that only exercise the per-pair channels).
func New(pairs []book.ExchangePair, windowSize int, movementHalfLife float64, basketPairs [][]int) *Estimator {
	moving := make([]*stats.Ema, len(pairs))
	for i := range moving {
		moving[i] = stats.NewEma(movementHalfLife)
	}
	return &Estimator{
		pairs:       append([]book.ExchangePair(nil), pairs...),
		windowSize:  windowSize,
		basketPairs: basketPairs,
		moving:      moving,
	}
}

// nullEstimate is the "not yet warm" prediction: each pair's observed
// price with infinite variance, i.e. no information.
func (e *Estimator) nullEstimate(priceVec []float64) gaussian.Gaussian {
	variance := make([]float64, len(priceVec))
	for i := range variance {
		variance[i] = math.Inf(1)
	}
	g, _ := gaussian.Diagonal(priceVec, variance)
	return g
}

// Tick folds one tick's observed prices (keyed by ExchangePair, same set
// as the Estimator's configured pairs) plus the Signal Aggregator's latest
// basket log-return row (aligned to basketPairs, nil or short rows are
// tolerated) into the model and returns the updated joint fair-price
// Gaussian.
func (e *Estimator) Tick(prices map[book.ExchangePair]float64, signals []float64) gaussian.Gaussian {
	n := len(e.pairs)
	priceVec := make([]float64, n)
	for i, p := range e.pairs {
		priceVec[i] = prices[p]
	}

	if e.prevPrediction.Dim() == 0 {
		e.prevPrediction = e.nullEstimate(priceVec)
	}

	movingVec := make([]float64, n)
	allReady := true
	for i := range e.pairs {
		movingVec[i] = e.moving[i].Step(priceVec[i])
		if !e.moving[i].Ready() {
			allReady = false
		}
	}
	if !allReady {
		return e.nullEstimate(priceVec)
	}

	e.ring = append(e.ring, movingVec)
	if len(e.ring) > e.windowSize {
		e.ring = e.ring[len(e.ring)-e.windowSize:]
	}
	if len(e.ring) < e.windowSize {
		return e.nullEstimate(priceVec)
	}

	colMean, colStd := columnStats(e.ring, n)
	corr := correlationMatrix(e.ring, n)
	cov := covarianceMatrix(e.ring, n)
	diffLast, diffVar := diffStats(e.ring, n)

	deltas := make([]float64, n)
	for i := range deltas {
		deltas[i] = priceVec[i] - colMean[i]
	}

	channels := make([]gaussian.Gaussian, n, n+len(e.basketPairs))
	for i := 0; i < n; i++ {
		means := make([]float64, n)
		variances := make([]float64, n)
		for j := 0; j < n; j++ {
			means[j] = safeRatio(corr[i][j]*deltas[i]*colStd[j], colStd[i])
			v := safeRatio(math.Abs(cov[i][j])*colStd[j], colStd[i])
			variances[j] = safeRatio(v, corr[i][j]*corr[i][j])
		}
		channels[i], _ = gaussian.Diagonal(means, variances)
	}

	for k, members := range e.basketPairs {
		if k >= len(signals) || len(members) == 0 {
			continue
		}
		if g, ok := e.basketChannel(members, signals[k], priceVec, diffVar, n); ok {
			channels = append(channels, g)
		}
	}

	predictedDeltas, err := gaussian.Intersect(channels)
	if err != nil {
		return e.nullEstimate(priceVec)
	}
	predictedPrices, err := predictedDeltas.AddVector(colMean)
	if err != nil {
		return e.nullEstimate(priceVec)
	}

	diffGaussian, _ := gaussian.Diagonal(diffLast, diffVar)
	rolledForward, err := gaussian.Sum([]gaussian.Gaussian{e.prevPrediction, diffGaussian})
	if err != nil {
		return e.nullEstimate(priceVec)
	}

	newPrediction, err := rolledForward.And(predictedPrices)
	if err != nil {
		return e.nullEstimate(priceVec)
	}
	e.prevPrediction = newPrediction
	return newPrediction
}

// basketChannel turns one basket's aggregated log-return signal into a
// Gaussian information channel over the full pair dimension: member pairs
// get a predicted delta of signal*price (a first-order log-return to
// price-delta conversion) with variance drawn from that pair's own recent
// tick-over-tick variance, split across the basket's membership; every
// other pair gets infinite variance, i.e. the basket carries no opinion on
// it. Reports false if the signal is exactly zero (basket not yet warm, or
// genuinely flat) so a degenerate all-zero channel never enters the fusion.
func (e *Estimator) basketChannel(members []int, signal float64, priceVec, diffVar []float64, n int) (gaussian.Gaussian, bool) {
	if signal == 0 {
		return gaussian.Gaussian{}, false
	}
	means := make([]float64, n)
	variances := make([]float64, n)
	for j := range variances {
		variances[j] = math.Inf(1)
	}
	any := false
	for _, j := range members {
		if j < 0 || j >= n {
			continue
		}
		means[j] = signal * priceVec[j]
		variances[j] = diffVar[j] / float64(len(members))
		any = true
	}
	if !any {
		return gaussian.Gaussian{}, false
	}
	g, _ := gaussian.Diagonal(means, variances)
	return g, true
}

// safeRatio returns num/den, or 0 if den is 0 and num is also 0 (no
// information either way), or +Inf if den is 0 and num is nonzero
// (reported as "no correlation structure to lean on").
func safeRatio(num, den float64) float64 {
	if den == 0 {
		if num == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return num / den
}

func columnStats(rows [][]float64, n int) (mean, std []float64) {
	mean = make([]float64, n)
	std = make([]float64, n)
	col := make([]float64, len(rows))
	for j := 0; j < n; j++ {
		for t, row := range rows {
			col[t] = row[j]
		}
		m, s := stat.MeanStdDev(col, nil)
		mean[j] = m
		std[j] = s
	}
	return mean, std
}

func correlationMatrix(rows [][]float64, n int) [][]float64 {
	out := make([][]float64, n)
	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		cols[j] = make([]float64, len(rows))
		for t, row := range rows {
			cols[j][t] = row[j]
		}
	}
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				out[i][j] = 1
				continue
			}
			out[i][j] = stat.Correlation(cols[i], cols[j], nil)
		}
	}
	return out
}

func covarianceMatrix(rows [][]float64, n int) [][]float64 {
	out := make([][]float64, n)
	cols := make([][]float64, n)
	for j := 0; j < n; j++ {
		cols[j] = make([]float64, len(rows))
		for t, row := range rows {
			cols[j][t] = row[j]
		}
	}
	for i := 0; i < n; i++ {
		out[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			out[i][j] = stat.Covariance(cols[i], cols[j], nil)
		}
	}
	return out
}

func diffStats(rows [][]float64, n int) (last, variance []float64) {
	last = make([]float64, n)
	variance = make([]float64, n)
	if len(rows) < 2 {
		return last, variance
	}
	for j := 0; j < n; j++ {
		diffs := make([]float64, len(rows)-1)
		for t := 1; t < len(rows); t++ {
			diffs[t-1] = rows[t][j] - rows[t-1][j]
		}
		last[j] = diffs[len(diffs)-1]
		variance[j] = stat.Variance(diffs, nil)
	}
	return last, variance
}
