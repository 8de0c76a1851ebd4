// Package execution implements the Execution Strategy: a stateless-per-tick
// policy that turns (positions, bids, asks, fair-price Gaussian, fees) into
// a vector of desired order sizes, filtered by a static profitability
// threshold and a short-term trend agreement check.
package execution

import (
	"fairsengine/internal/book"
	"fairsengine/internal/gaussian"
	"fairsengine/internal/stats"
)

// Strategy holds the per-pair movement-variance and trend state the tick
// policy is built on.
type Strategy struct {
	pairs []book.ExchangePair

	size           float64
	trendCutoff    float64
	minEdgeToEnter float64
	minEdgeToClose float64

	mvmtVariance []*stats.Emse
	trend        []*stats.HoltEma

	prevMids    []float64
	hasPrevMids bool
}

// New builds a Strategy. warmupPrices is a time-ordered slice of per-pair
// price rows (pair order matching pairs) used to seed the movement
// variance and trend estimators; pass nil for a cold start.
func New(pairs []book.ExchangePair, size, varianceHL, trendHL, accelHL, trendCutoff, minEdgeToEnter, minEdgeToClose float64, warmupPrices [][]float64) *Strategy {
	n := len(pairs)
	s := &Strategy{
		pairs:          append([]book.ExchangePair(nil), pairs...),
		size:           size,
		trendCutoff:    trendCutoff,
		minEdgeToEnter: minEdgeToEnter,
		minEdgeToClose: minEdgeToClose,
		mvmtVariance:   make([]*stats.Emse, n),
		trend:          make([]*stats.HoltEma, n),
	}

	movements := diffRows(warmupPrices)

	for j := 0; j < n; j++ {
		s.trend[j] = stats.NewHoltEma(trendHL, accelHL)
		if len(movements) == 0 {
			s.mvmtVariance[j] = stats.NewEmse(varianceHL)
			continue
		}
		var sumSq float64
		for _, row := range movements {
			sumSq += row[j] * row[j]
		}
		mse := sumSq / float64(len(movements))
		s.mvmtVariance[j] = stats.NewEmse(varianceHL, mse)
	}

	tailStart := 0
	if window := int(4 * accelHL); len(movements) > window {
		tailStart = len(movements) - window
	}
	for _, row := range movements[tailStart:] {
		for j := 0; j < n; j++ {
			s.trend[j].Step(row[j])
		}
	}

	if len(warmupPrices) > 0 {
		s.prevMids = append([]float64(nil), warmupPrices[len(warmupPrices)-1]...)
		s.hasPrevMids = true
	}

	return s
}

func diffRows(rows [][]float64) [][]float64 {
	if len(rows) < 2 {
		return nil
	}
	out := make([][]float64, len(rows)-1)
	for t := 1; t < len(rows); t++ {
		row := make([]float64, len(rows[t]))
		for j := range row {
			row[j] = rows[t][j] - rows[t-1][j]
		}
		out[t-1] = row
	}
	return out
}

// Ready reports whether the movement-variance estimators have seen enough
// samples (warmup or real-time) to trust the tick output.
func (s *Strategy) Ready() bool {
	for _, v := range s.mvmtVariance {
		if !v.Ready() {
			return false
		}
	}
	return true
}

// Tick computes the desired signed order size (base currency, negative
// means sell) for each configured pair. positions, bids, asks, fees are
// keyed by pair; fairs must have the same dimension and pair ordering as
// the Strategy was constructed with.
func (s *Strategy) Tick(positions, bids, asks, fees map[book.ExchangePair]float64, fairs gaussian.Gaussian) map[book.ExchangePair]float64 {
	n := len(s.pairs)
	mids := make([]float64, n)
	for i, p := range s.pairs {
		mids[i] = (bids[p] + asks[p]) / 2
	}

	if !s.hasPrevMids {
		s.prevMids = append([]float64(nil), mids...)
		s.hasPrevMids = true
	}

	mvmt := make([]float64, n)
	for i := range mvmt {
		mvmt[i] = mids[i] - s.prevMids[i]
	}
	s.prevMids = mids

	trend := make([]float64, n)
	for i := 0; i < n; i++ {
		s.mvmtVariance[i].Step(mvmt[i])
		trend[i] = s.trend[i].Step(mvmt[i])
	}

	orders := make(map[book.ExchangePair]float64, n)
	if !s.Ready() {
		for _, p := range s.pairs {
			orders[p] = 0
		}
		return orders
	}

	fairMean := fairs.Mean()
	fairStddev := fairs.Stddev()

	for i, p := range s.pairs {
		zEdge := (fairMean[i] - mids[i]) / fairStddev[i]
		zTrend := trend[i] / s.mvmtVariance[i].Stderr()

		targetValue := zEdge * s.size
		position := positions[p]
		proposed := targetValue/fairMean[i] - position

		var price float64
		if proposed >= 0 {
			price = asks[p]
		} else {
			price = bids[p]
		}
		pctEdge := fairMean[i]/price - 1

		profitable := sign(proposed)*pctEdge > fees[p]+s.minEdgeToEnter
		trendingCorrectly := zTrend*sign(pctEdge) > s.trendCutoff

		var opening float64
		if profitable && trendingCorrectly {
			opening = proposed
		}

		shouldClose := -sign(position)*pctEdge > fees[p]+s.minEdgeToClose
		var closing float64
		if !profitable && shouldClose && trendingCorrectly {
			closing = -position
		}

		orders[p] = opening + closing
	}
	return orders
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
