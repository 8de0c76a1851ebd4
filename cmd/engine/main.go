// Command engine is the fair-price market-making engine's entry point. It
// wires configuration, exchange adapters, the signal aggregator, the
// Kalman strategy, the execution strategy, and the executor into one
// Engine, and runs it under the Thread Manager alongside a thin
// health/metrics/state HTTP surface.
//
// Usage:
//
//	engine live      uses live websocket adapters; requires per-exchange
//	                 API credentials in the environment.
//	engine replay    replays historical candles from internal/store for
//	                 every configured exchange.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"fairsengine/internal/api"
	"fairsengine/internal/beat"
	"fairsengine/internal/book"
	"fairsengine/internal/config"
	"fairsengine/internal/engine"
	"fairsengine/internal/exchange"
	"fairsengine/internal/execution"
	"fairsengine/internal/executor"
	"fairsengine/internal/kalman"
	"fairsengine/internal/signal"
	"fairsengine/internal/store"
	"fairsengine/internal/threadmgr"
	"fairsengine/pkg/utils"
)

func main() {
	mode := parseMode()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{Level: cfg.Logging.Level, Format: cfg.Logging.Format}).WithComponent("main")

	db, err := openDatabase(cfg)
	if err != nil {
		log.Error("database connect failed", utils.Err(err))
		os.Exit(1)
	}
	defer db.Close()
	candles := store.NewCandleStore(db)

	pairs, err := resolvePairs(cfg)
	if err != nil {
		log.Error("pair resolution failed", utils.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	adapters, err := buildAdapters(ctx, cfg, mode, candles)
	if err != nil {
		log.Error("adapter setup failed", utils.Err(err))
		os.Exit(1)
	}

	baskets, err := resolveBaskets(cfg)
	if err != nil {
		log.Error("basket resolution failed", utils.Err(err))
		os.Exit(1)
	}
	aggregator := signal.New(cfg.Engine.AggregatorWindow, baskets)

	warmup, warmupPriceRows, err := loadWarmup(ctx, cfg, candles, pairs)
	if err != nil {
		log.Error("warmup load failed", utils.Err(err))
		os.Exit(1)
	}

	strategy := kalman.New(pairs, cfg.Engine.KalmanWindowSize, cfg.Engine.KalmanMovementHalfLife, basketPairIndices(pairs, baskets))

	execStrategy := execution.New(
		pairs,
		cfg.Engine.ExecutionSize,
		cfg.Engine.ExecutionVarianceHL,
		cfg.Engine.ExecutionTrendHL,
		cfg.Engine.ExecutionAccelHL,
		cfg.Engine.ExecutionTrendCutoff,
		cfg.Engine.ExecutionMinEdgeToEnter,
		cfg.Engine.ExecutionMinEdgeToClose,
		warmupPriceRows,
	)

	exec := executor.New(execStrategy, pairs, cfg.Engine.LotSize, adapters...)

	eng := engine.New(engine.Config{
		Beat:       beat.New(cfg.Engine.BeatInterval),
		Adapters:   adapters,
		Pairs:      pairs,
		Aggregator: aggregator,
		Strategy:   strategy,
		Executor:   exec,
		Warmup:     warmup,
	})

	mgr := threadmgr.New()
	mgr.Attach("engine", func() error { return eng.Run(ctx) }, false)
	mgr.Attach("http", httpWorker(ctx, cfg, eng), false)

	// SIGINT/SIGTERM is a normal shutdown request, not a worker failure:
	// the handler cancels ctx, closes the adapters and exits 0 itself
	// rather than waiting on threadmgr, whose Run treats any worker return
	// as fatal.
	quit := make(chan os.Signal, 1)
	ossignal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutdown signal received")
		cancel()
		for _, ap := range adapters {
			ap.Adapter.Close()
		}
		os.Exit(0)
	}()

	mgr.Run()
}

func parseMode() string {
	flag.Parse()
	mode := flag.Arg(0)
	if mode != "live" && mode != "replay" {
		fmt.Fprintln(os.Stderr, "usage: engine <live|replay>")
		os.Exit(1)
	}
	return mode
}

func openDatabase(cfg *config.Config) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.User, cfg.Database.Password, cfg.Database.Name, cfg.Database.SSLMode,
	)
	db, err := sql.Open(cfg.Database.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// resolvePairs builds the engine's canonical ExchangePair ordering: every
// exchange's configured pairs, in config file order. This ordering is
// shared by the Aggregator, the Kalman Strategy, and the Executor.
func resolvePairs(cfg *config.Config) ([]book.ExchangePair, error) {
	var pairs []book.ExchangePair
	for _, ex := range cfg.Engine.Exchanges {
		for _, p := range ex.Pairs {
			tp, err := book.ParseTradingPair(p)
			if err != nil {
				return nil, fmt.Errorf("exchange %q: %w", ex.Name, err)
			}
			pairs = append(pairs, book.NewExchangePair(ex.Name, tp))
		}
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no pairs configured across any exchange")
	}
	return pairs, nil
}

func resolveBaskets(cfg *config.Config) ([]signal.Basket, error) {
	baskets := make([]signal.Basket, 0, len(cfg.Engine.Baskets))
	for _, b := range cfg.Engine.Baskets {
		pairs := make([]book.ExchangePair, 0, len(b.Pairs))
		for _, raw := range b.Pairs {
			ep, err := book.ParseExchangePair(raw)
			if err != nil {
				return nil, fmt.Errorf("basket %q: %w", b.Name, err)
			}
			pairs = append(pairs, ep)
		}
		baskets = append(baskets, signal.Basket{Name: b.Name, Pairs: pairs})
	}
	return baskets, nil
}

// basketPairIndices maps each basket, in the Aggregator's column order, to
// the indices within pairs of its member pairs — the lookup the Kalman
// strategy needs to turn a basket's aggregated signal back into a per-pair
// price-delta channel. A basket member not present in pairs is dropped.
func basketPairIndices(pairs []book.ExchangePair, baskets []signal.Basket) [][]int {
	index := make(map[book.ExchangePair]int, len(pairs))
	for i, p := range pairs {
		index[p] = i
	}
	out := make([][]int, len(baskets))
	for i, b := range baskets {
		members := make([]int, 0, len(b.Pairs))
		for _, p := range b.Pairs {
			if idx, ok := index[p]; ok {
				members = append(members, idx)
			}
		}
		out[i] = members
	}
	return out
}

func buildAdapters(ctx context.Context, cfg *config.Config, mode string, candles *store.CandleStore) ([]executor.AdapterBinding, error) {
	var bindings []executor.AdapterBinding
	for _, ex := range cfg.Engine.Exchanges {
		tradingPairs := make([]book.TradingPair, 0, len(ex.Pairs))
		for _, p := range ex.Pairs {
			tp, err := book.ParseTradingPair(p)
			if err != nil {
				return nil, fmt.Errorf("exchange %q: %w", ex.Name, err)
			}
			tradingPairs = append(tradingPairs, tp)
		}

		var adapter exchange.Exchange
		switch mode {
		case "live":
			if !ex.Live {
				return nil, fmt.Errorf("mode is live but exchange %q is configured as replay", ex.Name)
			}
			live := exchange.NewLive(ex.Name, ex.WSURL, exchange.Credentials{APIKey: ex.APIKey, Secret: ex.Secret}, exchange.Fees{})
			if err := live.Connect(ctx); err != nil {
				return nil, fmt.Errorf("exchange %q: %w", ex.Name, err)
			}
			adapter = live
		case "replay":
			frames, err := candles.LoadWarmup(ctx, ex.ReplaySource, 0)
			if err != nil {
				return nil, fmt.Errorf("exchange %q: %w", ex.Name, err)
			}
			steps := replaySteps(frames, ex.Name, tradingPairs)
			adapter = exchange.NewReplay(ex.Name, exchange.Fees{}, steps, nil)
		}

		bindings = append(bindings, executor.AdapterBinding{Adapter: adapter, Pairs: tradingPairs})
	}
	return bindings, nil
}

// replaySteps converts candle-store frames into the per-pair Row table
// exchange.NewReplay expects, keeping only the rows belonging to
// exchangeID.
func replaySteps(frames []engine.HistoricalFrame, exchangeID string, pairs []book.TradingPair) [][]exchange.Row {
	steps := make([][]exchange.Row, 0, len(frames))
	for _, f := range frames {
		var rows []exchange.Row
		for _, tp := range pairs {
			price, ok := f.Prices[book.NewExchangePair(exchangeID, tp)]
			if !ok {
				continue
			}
			rows = append(rows, exchange.Row{Pair: tp, Price: decimal.NewFromFloat(price)})
		}
		if len(rows) > 0 {
			steps = append(steps, rows)
		}
	}
	return steps
}

// loadWarmup reads WARMUP_CANDLES rows per configured replay source
// (merging across every exchange that has one) and returns both the
// engine.HistoricalFrame slice the main loop replays and the per-pair
// price-row matrix the Execution Strategy seeds its movement-variance and
// trend estimators from.
func loadWarmup(ctx context.Context, cfg *config.Config, candles *store.CandleStore, pairs []book.ExchangePair) ([]engine.HistoricalFrame, [][]float64, error) {
	var all []engine.HistoricalFrame
	for _, ex := range cfg.Engine.Exchanges {
		if ex.ReplaySource == "" {
			continue
		}
		frames, err := candles.LoadWarmup(ctx, ex.ReplaySource, cfg.Engine.WarmupCandles)
		if err != nil {
			return nil, nil, fmt.Errorf("exchange %q: %w", ex.Name, err)
		}
		all = append(all, frames...)
	}

	rows := make([][]float64, 0, len(all))
	for _, f := range all {
		row := make([]float64, len(pairs))
		for i, p := range pairs {
			row[i] = f.Prices[p]
		}
		rows = append(rows, row)
	}
	return all, rows, nil
}

func httpWorker(ctx context.Context, cfg *config.Config, eng *engine.Engine) threadmgr.Worker {
	return func() error {
		router := api.SetupRoutes(&api.Dependencies{Engine: eng})
		server := &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}
}
