package execution

import (
	"testing"

	"fairsengine/internal/book"
	"fairsengine/internal/gaussian"
)

func testPair(t *testing.T) book.ExchangePair {
	t.Helper()
	p, err := book.NewTradingPair(book.NewCurrency("BTC"), book.NewCurrency("USDT"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return book.NewExchangePair("bybit", p)
}

func TestTickBeforeWarmReturnsZeroOrders(t *testing.T) {
	pair := testPair(t)
	s := New([]book.ExchangePair{pair}, 1000, 50, 10, 5, 0, 0.001, 0, nil)

	fairs := gaussian.NewScalar(110, 1)
	orders := s.Tick(
		map[book.ExchangePair]float64{pair: 0},
		map[book.ExchangePair]float64{pair: 99},
		map[book.ExchangePair]float64{pair: 101},
		map[book.ExchangePair]float64{pair: 0.001},
		fairs,
	)
	if orders[pair] != 0 {
		t.Fatalf("expected zero order before warmup, got %v", orders[pair])
	}
}

func TestTickAfterWarmupProducesNonZeroEdgeOrder(t *testing.T) {
	pair := testPair(t)
	warmup := make([][]float64, 0, 60)
	price := 100.0
	for i := 0; i < 60; i++ {
		warmup = append(warmup, []float64{price})
		price += 0.01
	}
	s := New([]book.ExchangePair{pair}, 1000, 10, 10, 5, -1, -1, -1, warmup)

	if !s.Ready() {
		t.Fatal("expected Strategy to be warm after seeded construction")
	}

	fairs := gaussian.NewScalar(200, 1)
	orders := s.Tick(
		map[book.ExchangePair]float64{pair: 0},
		map[book.ExchangePair]float64{pair: 99},
		map[book.ExchangePair]float64{pair: 101},
		map[book.ExchangePair]float64{pair: 0.0001},
		fairs,
	)
	if orders[pair] == 0 {
		t.Fatal("expected a nonzero order for a large positive edge with permissive thresholds")
	}
}

func TestTickWithNoEdgeProducesZeroOrder(t *testing.T) {
	pair := testPair(t)
	warmup := make([][]float64, 0, 60)
	price := 100.0
	for i := 0; i < 60; i++ {
		warmup = append(warmup, []float64{price})
	}
	s := New([]book.ExchangePair{pair}, 1000, 10, 10, 5, 0, 0.01, 0.01, warmup)

	fairs := gaussian.NewScalar(100, 1)
	orders := s.Tick(
		map[book.ExchangePair]float64{pair: 0},
		map[book.ExchangePair]float64{pair: 99.9},
		map[book.ExchangePair]float64{pair: 100.1},
		map[book.ExchangePair]float64{pair: 0.01},
		fairs,
	)
	if orders[pair] != 0 {
		t.Fatalf("expected no order when edge doesn't clear fee+min-edge threshold, got %v", orders[pair])
	}
}
