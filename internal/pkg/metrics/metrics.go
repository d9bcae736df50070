// Package metrics exposes Prometheus instruments for the observation engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "matchfeed"

// Tick results.
const (
	TickFound    = "found"
	TickNotFound = "not_found"
	TickError    = "error"
)

var (
	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ticks_total",
		Help:      "Poll loop ticks by result.",
	}, []string{"result"})

	StrategyHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "strategy_hits_total",
		Help:      "Successful extractions by strategy.",
	}, []string{"strategy"})

	ExtractDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "extract_duration_seconds",
		Help:      "Time spent evaluating extraction strategies per tick.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	})

	SessionOpens = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_opens_total",
		Help:      "Browser session open attempts by result.",
	}, []string{"result"})

	SessionsLost = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_lost_total",
		Help:      "Running sessions that ended without shutdown.",
	})

	AssetsBlocked = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assets_blocked_total",
		Help:      "Sub-resource requests aborted by the asset filter.",
	})

	SupervisorState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "supervisor_state",
		Help:      "Supervisor state: 0 idle, 1 starting, 2 running, 3 failed.",
	})

	LastSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful extraction.",
	})

	SinkErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sink_errors_total",
		Help:      "Failed snapshot deliveries by sink.",
	}, []string{"sink"})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Notifications dropped because the send queue was full.",
	})
)

// RecordTick counts one tick and, on success, the strategy and timestamp.
func RecordTick(result, strategy string, took time.Duration, at time.Time) {
	Ticks.WithLabelValues(result).Inc()
	ExtractDuration.Observe(took.Seconds())
	if result == TickFound {
		StrategyHits.WithLabelValues(strategy).Inc()
		LastSuccess.Set(float64(at.Unix()))
	}
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
