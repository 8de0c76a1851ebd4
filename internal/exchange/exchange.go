// Package exchange defines the narrow adapter boundary the engine relies
// on: book feeds, last-price/volume frames, balances, fees, and order
// submission/cancellation. Concrete adapters (replay, live) implement
// Exchange; the engine never imports an adapter package directly, only this
// interface.
package exchange

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"fairsengine/internal/book"
)

// ErrAdapterUnavailable is returned by an adapter operation attempted while
// its underlying connection is down (e.g. mid-reconnect).
var ErrAdapterUnavailable = errors.New("exchange: adapter unavailable")

// ErrOrderRejected is returned by AddOrder when the venue rejects the
// order outright (no order id assigned).
var ErrOrderRejected = errors.New("exchange: order rejected")

// Frame is a last price and volume snapshot for one pair.
type Frame struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
}

// Fees is the maker/taker fee schedule for an exchange, expressed as
// fractions (0.001 == 10bps).
type Fees struct {
	Maker decimal.Decimal
	Taker decimal.Decimal
}

// Exchange is the full boundary a strategy/executor relies on, implemented
// once per venue (or once for replay).
type Exchange interface {
	// ID is the adapter's stable identifier, used as ExchangePair.ExchangeID.
	ID() string

	// BookFeed returns the live order book Feed for pair, creating the
	// underlying subscription on first call.
	BookFeed(pair book.TradingPair) (*book.OrderBook, <-chan book.OrderBook, error)

	// Frame returns the last price/volume snapshot for each requested pair.
	Frame(ctx context.Context, pairs []book.TradingPair) (map[book.TradingPair]Frame, error)

	// Balances returns the adapter's current view of wallet balances, keyed
	// by currency id.
	Balances(ctx context.Context) (map[string]decimal.Decimal, error)

	// FeeSchedule returns the maker/taker fee schedule.
	FeeSchedule() Fees

	// AddOrder submits an order. maker requests post-only/maker routing
	// where the venue supports it.
	AddOrder(ctx context.Context, pair book.TradingPair, side book.Direction, typ book.OrderType, price, volume decimal.Decimal, maker bool) (*book.Order, error)

	// CancelOrder cancels a previously submitted order by id.
	CancelOrder(ctx context.Context, orderID string) error

	// OpenPositions returns the adapter's current open orders/positions.
	OpenPositions(ctx context.Context) ([]*book.Order, error)

	// Close releases the adapter's connections and background threads.
	Close() error
}
