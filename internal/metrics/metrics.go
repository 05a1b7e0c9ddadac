// Package metrics defines the Prometheus instruments of the chat pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "groundchat"

// Metrics holds every instrument. Create once per registry with New.
type Metrics struct {
	ChatRequests          *prometheus.CounterVec
	StreamDuration        *prometheus.HistogramVec
	PageFetches           *prometheus.CounterVec
	RewriteFallbacks      *prometheus.CounterVec
	HistoryAppendFailures prometheus.Counter
	RetrievalFailures     *prometheus.CounterVec
}

// New registers the instruments with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChatRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		StreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chat_stream_duration_seconds",
			Help:      "Duration of completion streams by strategy.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"strategy"}),
		PageFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "web_page_fetch_total",
			Help:      "Web page fetches by resulting status.",
		}, []string{"status"}),
		RewriteFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rewrite_fallback_total",
			Help:      "Query rewrite stages that fell back to their default.",
		}, []string{"stage"}),
		HistoryAppendFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_append_failures_total",
			Help:      "Completed exchanges that could not be persisted.",
		}),
		RetrievalFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_failures_total",
			Help:      "Grounding lookups that failed and fell back to no context.",
		}, []string{"source"}),
	}
}

// ObserveRequest records one finished chat request.
func (m *Metrics) ObserveRequest(strategy, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(strategy, outcome).Inc()
	m.StreamDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
}

// PageFetched records one page fetch result ("ok" or "degraded").
func (m *Metrics) PageFetched(status string) {
	if m == nil {
		return
	}
	m.PageFetches.WithLabelValues(status).Inc()
}

// RewriteFellBack records a rewrite stage ("intent", "rewrite" or "condense") using its fallback.
func (m *Metrics) RewriteFellBack(stage string) {
	if m == nil {
		return
	}
	m.RewriteFallbacks.WithLabelValues(stage).Inc()
}

// AppendFailed records an exchange that was answered but not persisted.
func (m *Metrics) AppendFailed() {
	if m == nil {
		return
	}
	m.HistoryAppendFailures.Inc()
}

// RetrievalFailed records a failed grounding lookup ("vector" or "web").
func (m *Metrics) RetrievalFailed(source string) {
	if m == nil {
		return
	}
	m.RetrievalFailures.WithLabelValues(source).Inc()
}
