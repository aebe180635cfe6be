package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/digitalmktsapon-hash/shopee-dashboard-sub001/internal/metrics"
)

const metricsNamespace = "shopee_dashboard"

// Metric result sources.
const (
	SourceCache    = "cache"
	SourceSnapshot = "snapshot"
	SourceEngine   = "engine"
)

// Instrumentation holds the prometheus collectors of the report service on
// a dedicated registry.
type Instrumentation struct {
	registry *prometheus.Registry

	resultsServed   *prometheus.CounterVec
	computeDuration *prometheus.HistogramVec
	ordersEvaluated *prometheus.CounterVec
	ordersFlagged   *prometheus.CounterVec
	cacheErrors     prometheus.Counter
}

// NewInstrumentation registers the service collectors. A nil registry gets a
// fresh one so parallel tests never share counters.
func NewInstrumentation(registry *prometheus.Registry) *Instrumentation {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	in := &Instrumentation{
		registry: registry,
		resultsServed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "metric_results_total",
				Help:      "Metric results served, by where they came from.",
			},
			[]string{"source"},
		),
		computeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "compute_duration_seconds",
				Help:      "Time spent running the metrics engine over one report.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		ordersEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "orders_evaluated_total",
				Help:      "Orders evaluated by the engine, by realization outcome.",
			},
			[]string{"outcome"},
		),
		ordersFlagged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "orders_flagged_total",
				Help:      "Realized orders classified above SAFE, by tier.",
			},
			[]string{"tier"},
		),
		cacheErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "cache_errors_total",
				Help:      "Failed metric cache reads and writes.",
			},
		),
	}

	registry.MustRegister(
		in.resultsServed,
		in.computeDuration,
		in.ordersEvaluated,
		in.ordersFlagged,
		in.cacheErrors,
	)

	return in
}

// Registry returns the registry the collectors live on.
func (in *Instrumentation) Registry() *prometheus.Registry {
	return in.registry
}

// Handler exposes the registry in the prometheus text format.
func (in *Instrumentation) Handler() http.Handler {
	return promhttp.HandlerFor(in.registry, promhttp.HandlerOpts{Registry: in.registry})
}

func (in *Instrumentation) served(source string) {
	in.resultsServed.WithLabelValues(source).Inc()
}

func (in *Instrumentation) cacheFailed() {
	in.cacheErrors.Inc()
}

func (in *Instrumentation) observeCompute(operation string, start time.Time, report metrics.Report) {
	in.computeDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	for _, o := range report.Orders {
		in.ordersEvaluated.WithLabelValues(string(o.Realization.Outcome)).Inc()
		if o.Risk != nil && o.Risk.Tier != metrics.TierSafe {
			in.ordersFlagged.WithLabelValues(string(o.Risk.Tier)).Inc()
		}
	}
}
