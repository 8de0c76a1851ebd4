package engine

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fairsengine/internal/beat"
	"fairsengine/internal/book"
	"fairsengine/internal/exchange"
	"fairsengine/internal/execution"
	"fairsengine/internal/executor"
	"fairsengine/internal/gaussian"
	"fairsengine/internal/signal"
)

type fakeAdapter struct {
	id    string
	price float64
}

func (f *fakeAdapter) ID() string { return f.id }
func (f *fakeAdapter) BookFeed(pair book.TradingPair) (*book.OrderBook, <-chan book.OrderBook, error) {
	return nil, nil, nil
}
func (f *fakeAdapter) Frame(_ context.Context, pairs []book.TradingPair) (map[book.TradingPair]exchange.Frame, error) {
	out := make(map[book.TradingPair]exchange.Frame)
	for _, p := range pairs {
		out[p] = exchange.Frame{Price: decimal.NewFromFloat(f.price), Volume: decimal.NewFromInt(5)}
	}
	return out, nil
}
func (f *fakeAdapter) Balances(_ context.Context) (map[string]decimal.Decimal, error) {
	return map[string]decimal.Decimal{}, nil
}
func (f *fakeAdapter) FeeSchedule() exchange.Fees {
	return exchange.Fees{Taker: decimal.NewFromFloat(0.001)}
}
func (f *fakeAdapter) AddOrder(_ context.Context, pair book.TradingPair, side book.Direction, typ book.OrderType, price, volume decimal.Decimal, maker bool) (*book.Order, error) {
	return &book.Order{Pair: book.NewExchangePair(f.id, pair), Side: side, Type: typ, Price: price, Volume: volume, Status: book.Filled}, nil
}
func (f *fakeAdapter) CancelOrder(_ context.Context, orderID string) error { return nil }
func (f *fakeAdapter) OpenPositions(_ context.Context) ([]*book.Order, error) {
	return nil, nil
}
func (f *fakeAdapter) Close() error { return nil }

func testPair(t *testing.T) book.TradingPair {
	t.Helper()
	p, err := book.NewTradingPair(book.NewCurrency("BTC"), book.NewCurrency("USDT"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func buildEngine(t *testing.T) (*Engine, *fakeAdapter) {
	t.Helper()
	pair := testPair(t)
	ep := book.NewExchangePair("bybit", pair)
	adapter := &fakeAdapter{id: "bybit", price: 100}

	strategy := kalmanStub{pair: ep}
	exec := executor.New(strategy.asExecutorStrategy(), []book.ExchangePair{ep}, 0,
		executor.AdapterBinding{Adapter: adapter, Pairs: []book.TradingPair{pair}})

	cfg := Config{
		Beat:       beat.New(time.Millisecond),
		Adapters:   []executor.AdapterBinding{{Adapter: adapter, Pairs: []book.TradingPair{pair}}},
		Pairs:      []book.ExchangePair{ep},
		Aggregator: signal.New(10, []signal.Basket{{Name: "total", Pairs: []book.ExchangePair{ep}}}),
		Strategy:   strategy,
		Executor:   exec,
	}
	return New(cfg), adapter
}

// kalmanStub is a minimal Strategy that always reports a fixed edge above
// the observed price, so a tick is guaranteed to produce a nonzero order
// through the real execution.Strategy once warm.
type kalmanStub struct {
	pair book.ExchangePair
}

func (k kalmanStub) Tick(prices map[book.ExchangePair]float64, signals []float64) gaussian.Gaussian {
	return gaussian.NewScalar(prices[k.pair]+50, 1)
}

func (k kalmanStub) asExecutorStrategy() *execution.Strategy {
	warmup := make([][]float64, 0, 60)
	price := 100.0
	for i := 0; i < 60; i++ {
		warmup = append(warmup, []float64{price})
		price += 0.01
	}
	return execution.New([]book.ExchangePair{k.pair}, 10, 10, 10, 5, -1, -1, -1, warmup)
}

func TestRunWarmsUpThenStopsOnContextCancel(t *testing.T) {
	e, _ := buildEngine(t)
	e.warmup = []HistoricalFrame{
		{Prices: map[book.ExchangePair]float64{book.NewExchangePair("bybit", testPair(t)): 99}},
		{Prices: map[book.ExchangePair]float64{book.NewExchangePair("bybit", testPair(t)): 100}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	err := e.Run(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
	if e.State() != StateRun {
		t.Fatalf("expected final state %v, got %v", StateRun, e.State())
	}
}

func TestTickGathersFrameAndFusesFairs(t *testing.T) {
	e, _ := buildEngine(t)

	ctx := context.Background()
	if err := e.tick(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestObservedGaussianFallsBackToObservedPriceWithInfiniteVariance(t *testing.T) {
	e, _ := buildEngine(t)
	ep := e.pairs[0]

	g := e.observedGaussian(map[book.ExchangePair]float64{ep: 123})
	if g.MeanAt(0) != 123 {
		t.Fatalf("mean = %v, want 123", g.MeanAt(0))
	}
	if !math.IsInf(g.Variance()[0], 1) {
		t.Fatalf("expected infinite variance, got %v", g.Variance()[0])
	}
}
