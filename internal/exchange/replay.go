package exchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"fairsengine/internal/book"
)

// Row is a single (price, volume) observation for a pair at one replay
// step.
type Row struct {
	Pair   book.TradingPair
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Replay is an Exchange driven by a time-indexed table of rows, one slice
// of Row per step. It publishes a synthetic single-level book on each
// side, offset from the row price by a small half-spread
// (syntheticSpread), fills submitted orders immediately at the row price,
// and updates positions synchronously — used for WARMUP replay and offline
// backtesting.
type Replay struct {
	mu       sync.Mutex
	name     string
	fees     Fees
	steps    [][]Row
	cursor   int
	last     map[book.TradingPair]Row
	balances map[string]decimal.Decimal
	orders   []*book.Order
	nextID   int
}

// NewReplay builds a Replay adapter over steps (one []Row per tick),
// starting with the given balances.
func NewReplay(name string, fees Fees, steps [][]Row, startingBalances map[string]decimal.Decimal) *Replay {
	bal := make(map[string]decimal.Decimal, len(startingBalances))
	for k, v := range startingBalances {
		bal[k] = v
	}
	return &Replay{
		name:     name,
		fees:     fees,
		steps:    steps,
		last:     make(map[book.TradingPair]Row),
		balances: bal,
	}
}

// ID implements Exchange.
func (r *Replay) ID() string { return r.name }

// StepTime advances the clock by one row, updating the last-known
// price/volume for every pair present in that step. It returns false once
// the table is exhausted.
func (r *Replay) StepTime() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.steps) {
		return false
	}
	for _, row := range r.steps[r.cursor] {
		r.last[row.Pair] = row
	}
	r.cursor++
	return true
}

// Done reports whether the replay table is exhausted.
func (r *Replay) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cursor >= len(r.steps)
}

// BookFeed returns a synthetic single-level book built from the
// last-known row for pair; there is no live streaming channel in replay
// mode, so the returned channel is nil.
func (r *Replay) BookFeed(pair book.TradingPair) (*book.OrderBook, <-chan book.OrderBook, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ob := r.syntheticBookLocked(pair)
	return ob, nil, nil
}

// syntheticSpread is the fractional half-spread applied around a replay
// row's single price to produce a non-crossed bid/ask pair; replay rows
// carry no bid/ask distinction of their own, only a last-trade price.
const syntheticSpread = 0.00005

func (r *Replay) syntheticBookLocked(pair book.TradingPair) *book.OrderBook {
	row, ok := r.last[pair]
	ep := book.NewExchangePair(r.name, pair)
	if !ok {
		return book.NewOrderBook(ep, nil, nil)
	}
	half := row.Price.Mul(decimal.NewFromFloat(syntheticSpread))
	bid := book.BookLevel{Price: row.Price.Sub(half), Size: row.Volume}
	ask := book.BookLevel{Price: row.Price.Add(half), Size: row.Volume}
	return book.NewOrderBook(ep, []book.BookLevel{bid}, []book.BookLevel{ask})
}

// Frame implements Exchange.
func (r *Replay) Frame(_ context.Context, pairs []book.TradingPair) (map[book.TradingPair]Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[book.TradingPair]Frame, len(pairs))
	for _, p := range pairs {
		row, ok := r.last[p]
		if !ok {
			continue
		}
		out[p] = Frame{Price: row.Price, Volume: row.Volume}
	}
	return out, nil
}

// Balances implements Exchange.
func (r *Replay) Balances(_ context.Context) (map[string]decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]decimal.Decimal, len(r.balances))
	for k, v := range r.balances {
		out[k] = v
	}
	return out, nil
}

// FeeSchedule implements Exchange.
func (r *Replay) FeeSchedule() Fees { return r.fees }

// AddOrder fills immediately at the pair's last known row price, updating
// balances synchronously.
func (r *Replay) AddOrder(_ context.Context, pair book.TradingPair, side book.Direction, typ book.OrderType, price, volume decimal.Decimal, maker bool) (*book.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.last[pair]
	if !ok {
		return nil, fmt.Errorf("exchange: no replay data yet for pair %s", pair)
	}

	r.nextID++
	o := &book.Order{
		ID:     fmt.Sprintf("replay-%d", r.nextID),
		Pair:   book.NewExchangePair(r.name, pair),
		Side:   side,
		Type:   typ,
		Price:  row.Price,
		Volume: volume,
		Status: book.Filled,
	}
	r.applyFillLocked(pair, side, row.Price, volume)
	r.orders = append(r.orders, o)
	return o, nil
}

func (r *Replay) applyFillLocked(pair book.TradingPair, side book.Direction, price, volume decimal.Decimal) {
	cost := price.Mul(volume)
	fee := cost.Mul(r.fees.Taker)
	base, quote := pair.Base.String(), pair.Quote.String()
	if side == book.Buy {
		r.balances[base] = r.balances[base].Add(volume)
		r.balances[quote] = r.balances[quote].Sub(cost).Sub(fee)
	} else {
		r.balances[base] = r.balances[base].Sub(volume)
		r.balances[quote] = r.balances[quote].Add(cost).Sub(fee)
	}
}

// CancelOrder is a no-op for an order id Replay has filled: fills are
// immediate, so there is never an open order to cancel. An unknown order
// id returns an error.
func (r *Replay) CancelOrder(_ context.Context, orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.ID == orderID {
			return nil
		}
	}
	return fmt.Errorf("exchange: unknown order id %s", orderID)
}

// OpenPositions returns all orders Replay has filled; since fills are
// immediate there are never orders in a non-terminal state.
func (r *Replay) OpenPositions(_ context.Context) ([]*book.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*book.Order, len(r.orders))
	copy(out, r.orders)
	return out, nil
}

// Close is a no-op for Replay.
func (r *Replay) Close() error { return nil }

var _ Exchange = (*Replay)(nil)
