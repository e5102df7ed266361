// Package metrics exposes the pipeline's Prometheus instruments. Every
// method is safe to call on a nil *Registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "signalcore"

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	candlesIngested      *prometheus.CounterVec
	candlesDropped       *prometheus.CounterVec
	patternCompletions   *prometheus.CounterVec
	candidatesSuppressed *prometheus.CounterVec
	strategyFailures     *prometheus.CounterVec
	ensembleDecisions    *prometheus.CounterVec
	filterRejections     *prometheus.CounterVec
	signalsReleased      *prometheus.CounterVec
	sinkErrors           *prometheus.CounterVec
	evaluationDuration   prometheus.Histogram
	killSwitchActive     *prometheus.GaugeVec
	drawdown             *prometheus.GaugeVec
	strategyWeight       *prometheus.GaugeVec
	queueDrops           prometheus.Counter
	feedErrors           *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		candlesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candles_ingested_total",
				Help:      "Candles accepted into price history",
			},
			[]string{"symbol"},
		),
		candlesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candles_dropped_total",
				Help:      "Candles rejected by price history",
			},
			[]string{"reason"},
		),
		patternCompletions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pattern_completions_total",
				Help:      "Pattern completion events per strategy",
			},
			[]string{"strategy", "action"},
		),
		candidatesSuppressed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_suppressed_total",
				Help:      "Completed patterns that produced no candidate signal",
			},
			[]string{"strategy", "reason"},
		),
		strategyFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "strategy_failures_total",
				Help:      "Strategy evaluations that panicked or errored",
			},
			[]string{"strategy"},
		),
		ensembleDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ensemble_decisions_total",
				Help:      "Ensemble decisions by action",
			},
			[]string{"action"},
		),
		filterRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Decisions held back after the ensemble, by reason",
			},
			[]string{"reason"},
		),
		signalsReleased: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "signals_released_total",
				Help:      "Final signals released to consumers",
			},
			[]string{"symbol", "action"},
		),
		sinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sink_errors_total",
				Help:      "Failed deliveries to release sinks",
			},
			[]string{"sink"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Time to evaluate one symbol through the pipeline",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
		),
		killSwitchActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "kill_switch_active",
				Help:      "1 while the user's drawdown kill switch is active",
			},
			[]string{"user"},
		),
		drawdown: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "drawdown_ratio",
				Help:      "Current drawdown from the tracked balance peak",
			},
			[]string{"user"},
		),
		strategyWeight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "strategy_weight",
				Help:      "Performance-derived ensemble weight",
			},
			[]string{"strategy"},
		),
		queueDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluation_queue_drops_total",
				Help:      "Evaluations not scheduled because the worker queue was full",
			},
		),
		feedErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_errors_total",
				Help:      "Candle feed failures by symbol",
			},
			[]string{"symbol"},
		),
	}

	reg.MustRegister(
		r.candlesIngested,
		r.candlesDropped,
		r.patternCompletions,
		r.candidatesSuppressed,
		r.strategyFailures,
		r.ensembleDecisions,
		r.filterRejections,
		r.signalsReleased,
		r.sinkErrors,
		r.evaluationDuration,
		r.killSwitchActive,
		r.drawdown,
		r.strategyWeight,
		r.queueDrops,
		r.feedErrors,
	)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

// RecordCandle records an accepted candle.
func (r *Registry) RecordCandle(symbol string) {
	if r == nil {
		return
	}
	r.candlesIngested.WithLabelValues(symbol).Inc()
}

// RecordCandleDropped records a candle the history refused.
func (r *Registry) RecordCandleDropped(reason string) {
	if r == nil {
		return
	}
	r.candlesDropped.WithLabelValues(reason).Inc()
}

// RecordCompletion records a pattern completion event.
func (r *Registry) RecordCompletion(strategy, action string) {
	if r == nil {
		return
	}
	r.patternCompletions.WithLabelValues(strategy, action).Inc()
}

// RecordSuppressed records a completion that yielded no candidate.
func (r *Registry) RecordSuppressed(strategy, reason string) {
	if r == nil {
		return
	}
	r.candidatesSuppressed.WithLabelValues(strategy, reason).Inc()
}

// RecordStrategyFailure records an isolated strategy failure.
func (r *Registry) RecordStrategyFailure(strategy string) {
	if r == nil {
		return
	}
	r.strategyFailures.WithLabelValues(strategy).Inc()
}

// RecordDecision records an ensemble decision.
func (r *Registry) RecordDecision(action string) {
	if r == nil {
		return
	}
	r.ensembleDecisions.WithLabelValues(action).Inc()
}

// RecordRejection records a decision held back after the ensemble.
func (r *Registry) RecordRejection(reason string) {
	if r == nil {
		return
	}
	r.filterRejections.WithLabelValues(reason).Inc()
}

// RecordRelease records a released signal.
func (r *Registry) RecordRelease(symbol, action string) {
	if r == nil {
		return
	}
	r.signalsReleased.WithLabelValues(symbol, action).Inc()
}

// RecordSinkError records a failed delivery.
func (r *Registry) RecordSinkError(sink string) {
	if r == nil {
		return
	}
	r.sinkErrors.WithLabelValues(sink).Inc()
}

// ObserveEvaluation records how long one evaluation took.
func (r *Registry) ObserveEvaluation(seconds float64) {
	if r == nil {
		return
	}
	r.evaluationDuration.Observe(seconds)
}

// SetKillSwitch publishes a user's kill switch state and drawdown.
func (r *Registry) SetKillSwitch(user string, active bool, drawdown float64) {
	if r == nil {
		return
	}
	v := 0.0
	if active {
		v = 1
	}
	r.killSwitchActive.WithLabelValues(user).Set(v)
	r.drawdown.WithLabelValues(user).Set(drawdown)
}

// SetStrategyWeights publishes the current weight of every strategy.
func (r *Registry) SetStrategyWeights(weights map[string]float64) {
	if r == nil {
		return
	}
	r.strategyWeight.Reset()
	for name, w := range weights {
		r.strategyWeight.WithLabelValues(name).Set(w)
	}
}

// RecordQueueDrop records an evaluation dropped by a full worker queue.
func (r *Registry) RecordQueueDrop() {
	if r == nil {
		return
	}
	r.queueDrops.Inc()
}

// RecordFeedError records a candle feed failure.
func (r *Registry) RecordFeedError(symbol string) {
	if r == nil {
		return
	}
	r.feedErrors.WithLabelValues(symbol).Inc()
}
