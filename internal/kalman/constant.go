package kalman

import (
	"math"

	"fairsengine/internal/book"
	"fairsengine/internal/gaussian"
)

// ConstantStrategy always returns the null prediction (observed price,
// infinite variance) — a baseline strategy useful for isolating execution
// and risk behavior from the fair-price model, or for exercising the
// pipeline before Estimator's warmup window has been tuned.
type ConstantStrategy struct {
	pairs []book.ExchangePair
}

// NewConstantStrategy builds a ConstantStrategy over the given fixed pair
// ordering.
func NewConstantStrategy(pairs []book.ExchangePair) *ConstantStrategy {
	return &ConstantStrategy{pairs: append([]book.ExchangePair(nil), pairs...)}
}

// Tick returns the null estimate for the current prices. signals is
// accepted to satisfy engine.Strategy but deliberately unused: this
// baseline exists to isolate execution/risk behavior from any fair-price
// model, aggregator-driven or not.
func (c *ConstantStrategy) Tick(prices map[book.ExchangePair]float64, signals []float64) gaussian.Gaussian {
	mean := make([]float64, len(c.pairs))
	variance := make([]float64, len(c.pairs))
	for i, p := range c.pairs {
		mean[i] = prices[p]
		variance[i] = math.Inf(1)
	}
	g, _ := gaussian.Diagonal(mean, variance)
	return g
}
