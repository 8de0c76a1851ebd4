// Package executor implements the Executor: it owns a set of exchange
// adapters, reconciles an ExecutionStrategy's desired order sizes against
// live books and balances, and posts the resulting orders.
package executor

import (
	"context"

	"github.com/shopspring/decimal"

	"fairsengine/internal/book"
	"fairsengine/internal/exchange"
	"fairsengine/internal/gaussian"
	"fairsengine/internal/metrics"
	"fairsengine/pkg/utils"
)

// Strategy is the subset of execution.Strategy the Executor drives.
type Strategy interface {
	Tick(positions, bids, asks, fees map[book.ExchangePair]float64, fairs gaussian.Gaussian) map[book.ExchangePair]float64
}

// AdapterBinding binds one Exchange to the TradingPairs it trades.
type AdapterBinding struct {
	Adapter exchange.Exchange
	Pairs   []book.TradingPair
}

// Submission records the outcome of one order submission attempt, for
// callers that want to observe what the Executor did on a tick.
type Submission struct {
	Pair  book.ExchangePair
	Order *book.Order
	Err   error
}

// Executor reconciles a single Strategy's desired order sizes — computed
// jointly across every configured exchange's pairs, so that a fair-price
// change on one exchange can influence inventory on another — against each
// adapter's live frame, fees, and positions, and posts the resulting
// orders. Submission failures are logged and skipped for the current tick;
// there is no retry within a beat.
type Executor struct {
	adapters []AdapterBinding
	strategy Strategy
	fairsOrder []book.ExchangePair // dimension order the Strategy (and fairs Gaussian) expect
	lotSize  float64
	log      *utils.Logger
}

// New builds an Executor over the given adapters (each with its traded
// pairs) and a Strategy. fairsOrder must match the ExchangePair dimension
// ordering the Strategy (and the fairs Gaussian passed to TickFairs) were
// built with. lotSize rounds proposed order volumes to the exchange's
// minimum tradable increment; pass 0 to disable rounding.
func New(strategy Strategy, fairsOrder []book.ExchangePair, lotSize float64, adapters ...AdapterBinding) *Executor {
	return &Executor{
		adapters:   adapters,
		strategy:   strategy,
		fairsOrder: append([]book.ExchangePair(nil), fairsOrder...),
		lotSize:    lotSize,
		log:        utils.L().WithComponent("executor"),
	}
}

// TickFairs runs one reconciliation pass: gathers frame, fees, and
// positions across every adapter, asks the Strategy for desired order
// sizes over the joint pair set, and submits every nonzero order to its
// owning adapter.
func (e *Executor) TickFairs(ctx context.Context, fairs gaussian.Gaussian) []Submission {
	bids := make(map[book.ExchangePair]float64)
	asks := make(map[book.ExchangePair]float64)
	fees := make(map[book.ExchangePair]float64)
	positions := make(map[book.ExchangePair]float64)
	owner := make(map[book.ExchangePair]exchange.Exchange)
	pairOf := make(map[book.ExchangePair]book.TradingPair)

	for _, ap := range e.adapters {
		frame, err := ap.Adapter.Frame(ctx, ap.Pairs)
		if err != nil {
			e.log.Error("frame fetch failed", utils.Exchange(ap.Adapter.ID()), utils.Err(err))
			continue
		}
		feeSchedule := ap.Adapter.FeeSchedule()
		taker, _ := feeSchedule.Taker.Float64()

		balances, err := ap.Adapter.Balances(ctx)
		if err != nil {
			e.log.Error("balance fetch failed", utils.Exchange(ap.Adapter.ID()), utils.Err(err))
			continue
		}

		for _, pair := range ap.Pairs {
			f, ok := frame[pair]
			if !ok {
				continue
			}
			ep := book.NewExchangePair(ap.Adapter.ID(), pair)
			price, _ := f.Price.Float64()
			bids[ep] = price
			asks[ep] = price
			fees[ep] = taker
			positions[ep] = balances[pair.Base.String()]
			owner[ep] = ap.Adapter
			pairOf[ep] = pair
		}
	}

	desired := e.strategy.Tick(positions, bids, asks, fees, fairs)

	var submissions []Submission
	for _, ep := range e.fairsOrder {
		size, ok := desired[ep]
		if !ok || size == 0 {
			continue
		}
		adapter, ok := owner[ep]
		if !ok {
			continue
		}
		submissions = append(submissions, e.submit(ctx, adapter, pairOf[ep], ep, size, bids[ep], asks[ep]))
	}
	return submissions
}

func (e *Executor) submit(ctx context.Context, adapter exchange.Exchange, pair book.TradingPair, ep book.ExchangePair, size, bid, ask float64) Submission {
	side := book.Buy
	price := ask
	if size < 0 {
		side = book.Sell
		price = bid
		size = -size
	}
	if e.lotSize > 0 {
		size = utils.RoundToLotSize(size, e.lotSize)
		if size == 0 {
			return Submission{Pair: ep}
		}
	}

	order, err := adapter.AddOrder(ctx, pair, side, book.Market, decimal.NewFromFloat(price), decimal.NewFromFloat(size), false)
	metrics.RecordOrderSubmission(adapter.ID(), err)
	if err != nil {
		e.log.Error("order submission failed", utils.Exchange(adapter.ID()), utils.Err(err))
		return Submission{Pair: ep, Err: err}
	}
	return Submission{Pair: ep, Order: order}
}
