// Package metrics exposes the Prometheus gauges, counters, and histograms
// the main loop and its components report against: tick-to-fair latency,
// beat overruns, orders submitted, and Gaussian warmup state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// TickLatency is the duration of each pipeline stage of a tick, recorded
// per stage from that stage's own start.
var TickLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "fairsengine",
		Subsystem: "engine",
		Name:      "tick_latency_ms",
		Help:      "Duration of each tick pipeline stage, in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250},
	},
	[]string{"stage"}, // frame, signals, strategy, intersect, executor
)

// BeatOverruns counts Beat.Loop calls that returned beat.ErrOverrun.
var BeatOverruns = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "fairsengine",
		Subsystem: "engine",
		Name:      "beat_overruns_total",
		Help:      "Number of beat intervals the main loop failed to meet",
	},
)

// EngineState reports the current main-loop state (init, warmup, run,
// error) as a 1/0 gauge per label, mirroring the teacher's
// ActivePairs-by-state pattern.
var EngineState = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "fairsengine",
		Subsystem: "engine",
		Name:      "state",
		Help:      "Current main loop state (1=active, 0=inactive) by state name",
	},
	[]string{"state"},
)

// OrdersSubmitted counts Executor submissions by exchange and outcome.
var OrdersSubmitted = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "fairsengine",
		Subsystem: "executor",
		Name:      "orders_submitted_total",
		Help:      "Total number of order submissions attempted by the executor",
	},
	[]string{"exchange", "result"}, // result: filled, rejected
)

// GaussianWarm reports whether a pair's fair-price Gaussian carries finite
// variance (1) or is still the null ("not yet warm") estimate (0).
var GaussianWarm = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "fairsengine",
		Subsystem: "kalman",
		Name:      "pair_warm",
		Help:      "Whether a pair's fair-price estimate has finite variance",
	},
	[]string{"pair"},
)

// ExchangeBalance mirrors the teacher's per-exchange balance gauge,
// generalized to whatever base currency the caller reports.
var ExchangeBalance = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "fairsengine",
		Subsystem: "exchange",
		Name:      "balance",
		Help:      "Exchange balance by currency",
	},
	[]string{"exchange", "currency"},
)

// RecordTickStage observes one pipeline stage's latency.
func RecordTickStage(stage string, latencyMs float64) {
	TickLatency.WithLabelValues(stage).Observe(latencyMs)
}

// RecordBeatOverrun increments the beat-overrun counter.
func RecordBeatOverrun() {
	BeatOverruns.Inc()
}

// SetEngineState activates exactly one state label, zeroing the others.
func SetEngineState(active string, all []string) {
	for _, s := range all {
		if s == active {
			EngineState.WithLabelValues(s).Set(1)
		} else {
			EngineState.WithLabelValues(s).Set(0)
		}
	}
}

// RecordOrderSubmission records one executor submission outcome.
func RecordOrderSubmission(exchange string, err error) {
	result := "filled"
	if err != nil {
		result = "rejected"
	}
	OrdersSubmitted.WithLabelValues(exchange, result).Inc()
}

// RecordGaussianWarm records whether pair's estimate is currently warm.
func RecordGaussianWarm(pair string, warm bool) {
	if warm {
		GaussianWarm.WithLabelValues(pair).Set(1)
	} else {
		GaussianWarm.WithLabelValues(pair).Set(0)
	}
}

// RecordBalance records the exchange's balance for currency.
func RecordBalance(exchange, currency string, amount float64) {
	ExchangeBalance.WithLabelValues(exchange, currency).Set(amount)
}
