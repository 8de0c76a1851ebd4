package kalman

import (
	"math"
	"testing"

	"fairsengine/internal/book"
)

func TestConstantStrategyAlwaysNull(t *testing.T) {
	pairs := testPairs(t)
	c := NewConstantStrategy(pairs)

	for _, price := range []float64{100, 150, 90} {
		g := c.Tick(map[book.ExchangePair]float64{pairs[0]: price, pairs[1]: price * 2}, nil)
		if g.MeanAt(0) != price {
			t.Fatalf("mean = %v, want %v", g.MeanAt(0), price)
		}
		for _, v := range g.Variance() {
			if !math.IsInf(v, 1) {
				t.Fatalf("expected infinite variance, got %v", v)
			}
		}
	}
}
