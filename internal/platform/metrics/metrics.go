package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage labels for StageLatency.
const (
	StageNormalize = "normalize"
	StageResolve   = "resolve"
	StageClassify  = "classify"
	StagePublish   = "publish"
)

// Metrics holds the pipeline's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	// Ingestion outcomes by status (created, updated, noop, error) and error kind
	Ingestions *prometheus.CounterVec

	// Per-stage latency
	StageLatency *prometheus.HistogramVec

	// Resolver answers by endpoint and outcome (answered, empty, timeout, error)
	ResolverAnswers *prometheus.CounterVec

	// Ingestions that stored a domain with no addresses
	Degraded prometheus.Counter

	// Conditional writes rejected by the publisher
	PublishConflicts *prometheus.CounterVec

	// 1 while the classifier breaker is open
	ClassifierBreakerOpen prometheus.Gauge

	// Builds reported by the dataset repository CI
	Builds *prometheus.CounterVec

	// Ingest requests rejected by the per-client limit
	RateLimited prometheus.Counter
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Ingestions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "iplist_ingestions_total",
			Help: "Ingestion outcomes by status and error kind",
		}, []string{"status", "kind"}),

		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iplist_ingest_stage_duration_seconds",
			Help:    "Duration of ingestion pipeline stages",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"stage"}),

		ResolverAnswers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "iplist_resolver_answers_total",
			Help: "DNS resolver query outcomes by endpoint",
		}, []string{"resolver", "outcome"}),

		Degraded: f.NewCounter(prometheus.CounterOpts{
			Name: "iplist_resolution_degraded_total",
			Help: "Domains accepted without any resolved address",
		}),

		PublishConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "iplist_publish_conflicts_total",
			Help: "Revision conflicts reported by the publisher by category",
		}, []string{"category"}),

		ClassifierBreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "iplist_classifier_breaker_open",
			Help: "Whether the classifier circuit breaker is open",
		}),

		Builds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "iplist_builds_total",
			Help: "Dataset repository build results",
		}, []string{"conclusion"}),

		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "iplist_ingest_rate_limited_total",
			Help: "Ingest requests rejected by the per-client rate limit",
		}),
	}
}

func (m *Metrics) IncIngestion(status, kind string) {
	if m != nil {
		m.Ingestions.WithLabelValues(status, kind).Inc()
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) IncResolverAnswer(resolver, outcome string) {
	if m != nil {
		m.ResolverAnswers.WithLabelValues(resolver, outcome).Inc()
	}
}

func (m *Metrics) IncDegraded() {
	if m != nil {
		m.Degraded.Inc()
	}
}

func (m *Metrics) IncPublishConflict(category string) {
	if m != nil {
		m.PublishConflicts.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.ClassifierBreakerOpen.Set(1)
		return
	}
	m.ClassifierBreakerOpen.Set(0)
}

func (m *Metrics) IncBuild(conclusion string) {
	if m != nil {
		m.Builds.WithLabelValues(conclusion).Inc()
	}
}

func (m *Metrics) IncRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}
