package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("web", "completed", 2*time.Second)
	m.ObserveRequest("web", "completed", time.Second)
	m.PageFetched("degraded")
	m.RewriteFellBack("intent")
	m.AppendFailed()
	m.RetrievalFailed("vector")

	if got := testutil.ToFloat64(m.ChatRequests.WithLabelValues("web", "completed")); got != 2 {
		t.Errorf("chat requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PageFetches.WithLabelValues("degraded")); got != 1 {
		t.Errorf("page fetches = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RewriteFallbacks.WithLabelValues("intent")); got != 1 {
		t.Errorf("rewrite fallbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.HistoryAppendFailures); got != 1 {
		t.Errorf("append failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RetrievalFailures.WithLabelValues("vector")); got != 1 {
		t.Errorf("retrieval failures = %v, want 1", got)
	}
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("plain", "completed", time.Second)
	m.PageFetched("ok")
	m.RewriteFellBack("rewrite")
	m.AppendFailed()
	m.RetrievalFailed("web")
}
