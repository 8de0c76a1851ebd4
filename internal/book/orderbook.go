package book

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

// ErrCrossedBook is returned (and the book cleared) when an adapter update
// would leave the top of bids at or above the top of asks.
var ErrCrossedBook = errors.New("book: crossed book, resubscription required")

// OrderBook holds sorted bid (descending) and ask (ascending) ladders for a
// single ExchangePair. At most one level exists per price per side.
type OrderBook struct {
	Pair  ExchangePair
	bids  []BookLevel // descending by price
	asks  []BookLevel // ascending by price
	Reset bool        // set when a crossed update forced a clear; caller must resubscribe
}

// NewOrderBook builds an OrderBook from an initial snapshot of levels.
func NewOrderBook(pair ExchangePair, bids, asks []BookLevel) *OrderBook {
	ob := &OrderBook{Pair: pair}
	for _, l := range bids {
		ob.bids = insertSorted(ob.bids, l, true)
	}
	for _, l := range asks {
		ob.asks = insertSorted(ob.asks, l, false)
	}
	return ob
}

func insertSorted(levels []BookLevel, l BookLevel, descending bool) []BookLevel {
	idx := sort.Search(len(levels), func(i int) bool {
		if descending {
			return levels[i].Price.LessThanOrEqual(l.Price)
		}
		return levels[i].Price.GreaterThanOrEqual(l.Price)
	})
	if idx < len(levels) && levels[idx].Price.Equal(l.Price) {
		levels[idx] = l
		return levels
	}
	levels = append(levels, BookLevel{})
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = l
	return levels
}

func removeAt(levels []BookLevel, price decimal.Decimal, descending bool) []BookLevel {
	idx := sort.Search(len(levels), func(i int) bool {
		if descending {
			return levels[i].Price.LessThanOrEqual(price)
		}
		return levels[i].Price.GreaterThanOrEqual(price)
	})
	if idx < len(levels) && levels[idx].Price.Equal(price) {
		return append(levels[:idx], levels[idx+1:]...)
	}
	return levels
}

// Update applies a single level change: a zero size deletes the level at
// that price, otherwise the level is inserted or replaced. If the update
// would cross the book, the book is cleared and Reset is set; the caller
// must request a fresh snapshot.
func (ob *OrderBook) Update(side Side, level BookLevel) error {
	if level.Size.IsZero() {
		if side == Bid {
			ob.bids = removeAt(ob.bids, level.Price, true)
		} else {
			ob.asks = removeAt(ob.asks, level.Price, false)
		}
		return nil
	}

	if side == Bid {
		ob.bids = insertSorted(ob.bids, level, true)
	} else {
		ob.asks = insertSorted(ob.asks, level, false)
	}

	if ob.crossed() {
		ob.bids = nil
		ob.asks = nil
		ob.Reset = true
		return ErrCrossedBook
	}
	return nil
}

func (ob *OrderBook) crossed() bool {
	if len(ob.bids) == 0 || len(ob.asks) == 0 {
		return false
	}
	return ob.bids[0].Price.GreaterThanOrEqual(ob.asks[0].Price)
}

// BestBid returns the top of the bid ladder.
func (ob *OrderBook) BestBid() (BookLevel, bool) {
	if len(ob.bids) == 0 {
		return BookLevel{}, false
	}
	return ob.bids[0], true
}

// BestAsk returns the top of the ask ladder.
func (ob *OrderBook) BestAsk() (BookLevel, bool) {
	if len(ob.asks) == 0 {
		return BookLevel{}, false
	}
	return ob.asks[0], true
}

// Bids returns the bid ladder, descending by price.
func (ob *OrderBook) Bids() []BookLevel { return ob.bids }

// Asks returns the ask ladder, ascending by price.
func (ob *OrderBook) Asks() []BookLevel { return ob.asks }

// Mid returns (bestBid+bestAsk)/2, or false if either side is empty.
func (ob *OrderBook) Mid() (decimal.Decimal, bool) {
	bid, ok1 := ob.BestBid()
	ask, ok2 := ob.BestAsk()
	if !ok1 || !ok2 {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}
