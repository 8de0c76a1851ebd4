// Package store persists and replays the historical candle data the main
// loop's WARMUP phase needs to seed the Signal Aggregator and Strategy
// before RUN enables order submission.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fairsengine/internal/book"
	"fairsengine/internal/engine"
)

// Candle is one persisted price observation for a single exchange pair.
type Candle struct {
	Source     string
	ExchangeID string
	Pair       book.TradingPair
	Price      float64
	Timestamp  time.Time
}

// CandleStore is the Data Access Layer over the historical_candles table.
type CandleStore struct {
	db *sql.DB
}

// NewCandleStore wraps an existing *sql.DB connection.
func NewCandleStore(db *sql.DB) *CandleStore {
	return &CandleStore{db: db}
}

// Insert records one candle under source, the replay identifier a
// config.ExchangeConfig.ReplaySource names.
func (s *CandleStore) Insert(ctx context.Context, c Candle) error {
	query := `
		INSERT INTO historical_candles (source, exchange, base, quote, price, ts)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		c.Source, c.ExchangeID, c.Pair.Base.String(), c.Pair.Quote.String(), c.Price, c.Timestamp)
	if err != nil {
		return fmt.Errorf("store: insert candle: %w", err)
	}
	return nil
}

// LoadWarmup reads every candle recorded under source, ordered by
// timestamp, and groups same-timestamp rows across exchanges/pairs into one
// engine.HistoricalFrame per distinct tick. limit caps the number of
// distinct timestamps returned; 0 means no limit.
func (s *CandleStore) LoadWarmup(ctx context.Context, source string, limit int) ([]engine.HistoricalFrame, error) {
	query := `
		SELECT exchange, base, quote, price, ts
		FROM historical_candles
		WHERE source = $1
		ORDER BY ts ASC`
	rows, err := s.db.QueryContext(ctx, query, source)
	if err != nil {
		return nil, fmt.Errorf("store: load warmup: %w", err)
	}
	defer rows.Close()

	var order []time.Time
	frames := make(map[time.Time]map[book.ExchangePair]float64)
	for rows.Next() {
		var exchangeID, base, quote string
		var price float64
		var ts time.Time
		if err := rows.Scan(&exchangeID, &base, &quote, &price, &ts); err != nil {
			return nil, fmt.Errorf("store: scan candle: %w", err)
		}

		bucket, ok := frames[ts]
		if !ok {
			if limit > 0 && len(order) >= limit {
				continue
			}
			bucket = make(map[book.ExchangePair]float64)
			frames[ts] = bucket
			order = append(order, ts)
		}

		pair, err := book.NewTradingPair(book.NewCurrency(base), book.NewCurrency(quote))
		if err != nil {
			return nil, fmt.Errorf("store: candle row: %w", err)
		}
		bucket[book.NewExchangePair(exchangeID, pair)] = price
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}

	out := make([]engine.HistoricalFrame, 0, len(order))
	for _, ts := range order {
		out = append(out, engine.HistoricalFrame{Prices: frames[ts]})
	}
	return out, nil
}

// Prune deletes every candle recorded under source strictly before cutoff,
// keeping the warmup table from growing unbounded across replay runs.
func (s *CandleStore) Prune(ctx context.Context, source string, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM historical_candles WHERE source = $1 AND ts < $2`, source, cutoff)
	if err != nil {
		return 0, fmt.Errorf("store: prune: %w", err)
	}
	return res.RowsAffected()
}
