// Package engine wires together the Signal Aggregator, the Kalman-style
// fair-price Strategy, and the Executor into the main loop's state machine:
// INIT, then WARMUP (replaying historical candles through the aggregator
// and strategy to seed their internal state), then RUN, where every Beat
// gathers a fresh frame, steps the aggregator, asks the strategy for a
// fair-price Gaussian, fuses it with the raw observed prices, and hands the
// result to the Executor.
package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fairsengine/internal/beat"
	"fairsengine/internal/book"
	"fairsengine/internal/exchange"
	"fairsengine/internal/executor"
	"fairsengine/internal/gaussian"
	"fairsengine/internal/metrics"
	"fairsengine/internal/signal"
	"fairsengine/pkg/utils"
)

// stateNames lists every State.String() value, for metrics.SetEngineState's
// zero-the-rest bookkeeping.
var stateNames = []string{StateInit.String(), StateWarmup.String(), StateRun.String(), StateError.String()}

// Strategy is the subset of kalman.Estimator / kalman.ConstantStrategy the
// engine drives.
type Strategy interface {
	Tick(prices map[book.ExchangePair]float64, signals []float64) gaussian.Gaussian
}

// HistoricalFrame is one replayed candle: a price observation per pair, fed
// to the aggregator and strategy during WARMUP.
type HistoricalFrame struct {
	Prices map[book.ExchangePair]float64
}

// State names a position in the main loop's state machine.
type State int

const (
	StateInit State = iota
	StateWarmup
	StateRun
	StateError
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateWarmup:
		return "warmup"
	case StateRun:
		return "run"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config assembles everything one Engine instance needs. Pairs fixes the
// dimension ordering shared by Aggregator's basket membership, Strategy's
// internal state, and Executor's fairsOrder — all three must have been
// built against the same ExchangePair set for a tick to line up.
type Config struct {
	Beat       *beat.Beat
	Adapters   []executor.AdapterBinding
	Pairs      []book.ExchangePair
	Aggregator *signal.Aggregator
	Strategy   Strategy
	Executor   *executor.Executor
	Warmup     []HistoricalFrame
}

// Engine runs the main loop described above, attached to a Manager as a
// single non-terminating worker.
type Engine struct {
	beat       *beat.Beat
	adapters   []executor.AdapterBinding
	pairs      []book.ExchangePair
	aggregator *signal.Aggregator
	strategy   Strategy
	executor   *executor.Executor
	warmup     []HistoricalFrame

	state State
	log   *utils.Logger
}

// New builds an Engine in StateInit. Run must be called exactly once.
func New(cfg Config) *Engine {
	return &Engine{
		beat:       cfg.Beat,
		adapters:   cfg.Adapters,
		pairs:      append([]book.ExchangePair(nil), cfg.Pairs...),
		aggregator: cfg.Aggregator,
		strategy:   cfg.Strategy,
		executor:   cfg.Executor,
		warmup:     cfg.Warmup,
		state:      StateInit,
		log:        utils.L().WithComponent("engine"),
	}
}

// State reports the engine's current position in the state machine.
func (e *Engine) State() State { return e.state }

// Run replays WARMUP then loops RUN until ctx is cancelled or a fatal error
// occurs — a beat overrun, or a tick failing to produce a fairs Gaussian.
// Intended to be attached to a threadmgr.Manager as a non-terminating
// worker; any returned error is fatal to the process.
func (e *Engine) Run(ctx context.Context) error {
	e.setState(StateWarmup)
	e.replayWarmup()

	e.setState(StateRun)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := e.beat.Loop(); err != nil {
			metrics.RecordBeatOverrun()
			e.setState(StateError)
			return fmt.Errorf("engine: beat: %w", err)
		}

		if err := e.tick(ctx); err != nil {
			e.setState(StateError)
			return fmt.Errorf("engine: tick: %w", err)
		}
	}
}

func (e *Engine) setState(s State) {
	e.state = s
	metrics.SetEngineState(s.String(), stateNames)
}

// replayWarmup feeds every configured historical candle through the
// aggregator and strategy, discarding their outputs. This seeds moving
// averages and correlation windows before RUN enables order submission.
func (e *Engine) replayWarmup() {
	for _, hf := range e.warmup {
		frame := make(map[book.ExchangePair]signal.Frame, len(hf.Prices))
		for pair, price := range hf.Prices {
			frame[pair] = signal.Frame{Price: decimal.NewFromFloat(price)}
		}
		table := e.aggregator.Step(frame)
		e.strategy.Tick(hf.Prices, table.Latest())
	}
	e.log.Info("warmup complete", utils.Int("candles", len(e.warmup)))
}

// tick runs one RUN-state iteration: frame -> signals -> strategy -> fairs
// -> executor, strictly in sequence per pair.
func (e *Engine) tick(ctx context.Context) error {
	stageStart := time.Now()
	frame, err := e.gatherFrame(ctx)
	if err != nil {
		return err
	}
	metrics.RecordTickStage("frame", msSince(stageStart))

	stageStart = time.Now()
	signalFrame := make(map[book.ExchangePair]signal.Frame, len(frame))
	prices := make(map[book.ExchangePair]float64, len(frame))
	for pair, f := range frame {
		signalFrame[pair] = signal.Frame{Price: f.Price}
		price, _ := f.Price.Float64()
		prices[pair] = price
	}
	table := e.aggregator.Step(signalFrame)
	metrics.RecordTickStage("signals", msSince(stageStart))

	stageStart = time.Now()
	kalmanFairs := e.strategy.Tick(prices, table.Latest())
	e.recordWarmth(kalmanFairs)
	metrics.RecordTickStage("strategy", msSince(stageStart))

	stageStart = time.Now()
	observed := e.observedGaussian(prices)
	fairs, err := gaussian.Intersect([]gaussian.Gaussian{kalmanFairs, observed})
	if err != nil {
		return fmt.Errorf("intersect fairs: %w", err)
	}
	metrics.RecordTickStage("intersect", msSince(stageStart))

	stageStart = time.Now()
	e.executor.TickFairs(ctx, fairs)
	metrics.RecordTickStage("executor", msSince(stageStart))
	return nil
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}

// recordWarmth reports, per pair, whether the strategy's current estimate
// carries finite variance.
func (e *Engine) recordWarmth(g gaussian.Gaussian) {
	variance := g.Variance()
	for i, p := range e.pairs {
		if i >= len(variance) {
			return
		}
		metrics.RecordGaussianWarm(p.String(), !math.IsInf(variance[i], 1))
	}
}

// gatherFrame collects the latest price/volume frame across every
// configured adapter, keyed by ExchangePair. A per-adapter frame error is
// logged and that adapter's pairs are skipped for this tick.
func (e *Engine) gatherFrame(ctx context.Context) (map[book.ExchangePair]exchange.Frame, error) {
	out := make(map[book.ExchangePair]exchange.Frame, len(e.pairs))
	for _, ap := range e.adapters {
		f, err := ap.Adapter.Frame(ctx, ap.Pairs)
		if err != nil {
			e.log.Error("frame fetch failed", utils.Exchange(ap.Adapter.ID()), utils.Err(err))
			continue
		}
		for _, pair := range ap.Pairs {
			if frame, ok := f[pair]; ok {
				out[book.NewExchangePair(ap.Adapter.ID(), pair)] = frame
			}
		}
	}
	return out, nil
}

// observedGaussian builds the "observed prices, infinite variance"
// placeholder fused with the strategy's output: for any pair the strategy
// tracks with finite variance, the fused value comes from the strategy; for
// any pair the strategy has no information about, the observed price passes
// through unweighted, since infinite variance carries zero precision.
func (e *Engine) observedGaussian(prices map[book.ExchangePair]float64) gaussian.Gaussian {
	mean := make([]float64, len(e.pairs))
	variance := make([]float64, len(e.pairs))
	for i, p := range e.pairs {
		mean[i] = prices[p]
		variance[i] = math.Inf(1)
	}
	g, _ := gaussian.Diagonal(mean, variance)
	return g
}
