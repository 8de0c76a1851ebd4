// Package signal implements the Signal Aggregator: a fixed-width rolling
// window of cross-sectional signals (such as a basket's total-market
// index) derived from the per-tick price/volume frame, with a strict
// no-lookahead guarantee — a row computed at tick t never depends on data
// observed after t.
package signal

import (
	"math"

	"github.com/shopspring/decimal"

	"fairsengine/internal/book"
)

// Frame is the minimal per-pair observation the aggregator needs: the
// Frame.Price field of an exchange.Frame. Declared locally so this package
// does not import internal/exchange.
type Frame struct {
	Price decimal.Decimal
}

// Basket names a signal and the representative instruments whose
// log-returns are averaged to produce it. A basket's "base currencies" in
// the literal sense are resolved ahead of time to one instrumented
// ExchangePair per base; the aggregator only ever sees that resolved list.
type Basket struct {
	Name  string
	Pairs []book.ExchangePair
}

// Table is the windowed output: Columns gives stable signal-name ordering,
// Rows holds up to Window most recent rows, oldest first.
type Table struct {
	Columns []string
	Rows    [][]float64
}

// Latest returns the most recently appended row, or nil if no row has been
// computed yet.
func (t Table) Latest() []float64 {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[len(t.Rows)-1]
}

// Aggregator computes one named signal per configured basket each tick and
// keeps a ring buffer of the last Window rows.
type Aggregator struct {
	window    int
	baskets   []Basket
	lastPrice map[book.ExchangePair]float64
	ring      [][]float64
}

// New builds an Aggregator with the given window size (in ticks) and
// basket definitions.
func New(window int, baskets []Basket) *Aggregator {
	return &Aggregator{
		window:    window,
		baskets:   baskets,
		lastPrice: make(map[book.ExchangePair]float64),
	}
}

// Columns returns the stable signal-name ordering.
func (a *Aggregator) Columns() []string {
	cols := make([]string, len(a.baskets))
	for i, b := range a.baskets {
		cols[i] = b.Name
	}
	return cols
}

// Step folds one tick's frame into the window and returns the current
// windowed table. Only prices present in the frame and previously observed
// (so a log-return can be computed) contribute to a basket's average for
// this tick; a basket with no contributing pair this tick reports 0.
func (a *Aggregator) Step(frame map[book.ExchangePair]Frame) Table {
	row := make([]float64, len(a.baskets))
	for i, b := range a.baskets {
		row[i] = a.basketLogReturn(b, frame)
	}

	for pair, f := range frame {
		price, _ := f.Price.Float64()
		if price > 0 {
			a.lastPrice[pair] = price
		}
	}

	a.ring = append(a.ring, row)
	if len(a.ring) > a.window {
		a.ring = a.ring[len(a.ring)-a.window:]
	}

	rows := make([][]float64, len(a.ring))
	copy(rows, a.ring)
	return Table{Columns: a.Columns(), Rows: rows}
}

func (a *Aggregator) basketLogReturn(b Basket, frame map[book.ExchangePair]Frame) float64 {
	var sum float64
	var n int
	for _, pair := range b.Pairs {
		f, ok := frame[pair]
		if !ok {
			continue
		}
		price, _ := f.Price.Float64()
		if price <= 0 {
			continue
		}
		prev, ok := a.lastPrice[pair]
		if !ok || prev <= 0 {
			continue
		}
		sum += math.Log(price / prev)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
