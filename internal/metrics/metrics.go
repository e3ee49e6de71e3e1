// Package metrics provides Prometheus metrics for the tremor backend.
// It covers classification traffic (model and fallback paths), the LLM
// interpretation chain, and session persistence, exposed via the
// /metrics endpoint on the API server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the backend.
type Metrics struct {
	// Classification metrics
	Classifications        prometheus.Counter   // Total classification requests served
	ClassificationFailures prometheus.Counter   // Error-shaped classification results
	FallbackUse            prometheus.Counter   // Classifications answered by the rule-based fallback
	ClassifyLatency        prometheus.Histogram // End-to-end classification latency in seconds
	ModelAge               prometheus.Gauge     // Age of the loaded model artifact in seconds
	BatchWindows           prometheus.Histogram // Windows per batch classification request

	// Interpretation metrics
	AnalyzeRequests prometheus.Counter // Total /analyze requests
	LLMFailures     prometheus.Counter // LLM endpoint calls that fell through to the next backend

	// System metrics
	SessionsStored prometheus.Counter // Session records persisted
	ErrorsTotal    prometheus.Counter // Total errors encountered
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry, keeping tests
// isolated from the global registry.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Classifications: factory.NewCounter(prometheus.CounterOpts{
			Name: "classifications_total",
			Help: "Total classification requests served",
		}),
		ClassificationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "classification_failures_total",
			Help: "Classification requests that returned an error-shaped result",
		}),
		FallbackUse: factory.NewCounter(prometheus.CounterOpts{
			Name: "classification_fallback_total",
			Help: "Classifications answered by the rule-based fallback",
		}),
		ClassifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "classify_latency_seconds",
			Help:    "End-to-end classification latency in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		ModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}),
		BatchWindows: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_windows",
			Help:    "Windows per batch classification request",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		AnalyzeRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "analyze_requests_total",
			Help: "Total clinical analysis requests",
		}),
		LLMFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "llm_failures_total",
			Help: "LLM endpoint calls that fell through to the next backend",
		}),
		SessionsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "sessions_stored_total",
			Help: "Session records persisted",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// MLAdapter implements ml.MetricsInterface on top of Metrics, keeping the
// ml package free of a direct Prometheus dependency.
type MLAdapter struct {
	m *Metrics
}

// NewMLAdapter wraps the metrics for injection into the inference service.
func NewMLAdapter(m *Metrics) *MLAdapter {
	return &MLAdapter{m: m}
}

func (a *MLAdapter) ClassificationsInc()              { a.m.Classifications.Inc() }
func (a *MLAdapter) ClassificationFailuresInc()       { a.m.ClassificationFailures.Inc() }
func (a *MLAdapter) FallbackUseInc()                  { a.m.FallbackUse.Inc() }
func (a *MLAdapter) ClassifyLatencyObserve(v float64) { a.m.ClassifyLatency.Observe(v) }
func (a *MLAdapter) ModelAgeSet(v float64)            { a.m.ModelAge.Set(v) }

// InterpretAdapter implements interpret.MetricsInterface on top of Metrics,
// same split as MLAdapter.
type InterpretAdapter struct {
	m *Metrics
}

// NewInterpretAdapter wraps the metrics for injection into the
// interpretation client.
func NewInterpretAdapter(m *Metrics) *InterpretAdapter {
	return &InterpretAdapter{m: m}
}

func (a *InterpretAdapter) AnalyzeRequestsInc() { a.m.AnalyzeRequests.Inc() }
func (a *InterpretAdapter) LLMFailuresInc()     { a.m.LLMFailures.Inc() }
