package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

func scrape(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	return string(body)
}

func TestMiddlewareNormalizesSessionPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/v1/sessions/abc/history", nil))

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `path="/v1/sessions/{session_id}/history"`) {
		t.Fatalf("expected normalized session path, got:\n%s", out)
	}
	if !strings.Contains(out, `status="204"`) {
		t.Fatalf("expected recorded status 204, got:\n%s", out)
	}
}

func TestPublishRetrievalRecordsProvenanceAndScores(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	err := m.PublishRetrieval(context.Background(), domain.RetrievalEvent{
		Provenance:       domain.ProvenanceLegalAndNews,
		ConversionMethod: domain.ConversionRules,
		LegalScore:       0.5,
		NewsScore:        0.7,
		LegalCount:       2,
		NewsCount:        3,
		HybridUsed:       true,
		NewsSearched:     true,
		DurationMS:       12,
	})
	if err != nil {
		t.Fatalf("publish retrieval: %v", err)
	}

	out := scrape(t, m.Handler())
	for _, want := range []string{
		`jla_retrieval_requests_total{provenance="legal_and_news",service="api"} 1`,
		`jla_retrieval_query_conversions_total{method="rule_based",service="api"} 1`,
		`jla_retrieval_hybrid_used_total{service="api"} 1`,
		`jla_retrieval_news_searches_total{service="api"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in:\n%s", want, out)
		}
	}
}

func TestRecordCacheLookupAndChat(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordCacheLookup("query_embeddings", true)
	m.RecordCacheLookup("query_embeddings", false)
	m.RecordChat(nil)

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `jla_cache_lookups_total{cache="query_embeddings",result="hit",service="api"} 1`) {
		t.Fatalf("expected cache hit counter, got:\n%s", out)
	}
	if !strings.Contains(out, `jla_chat_answers_total{service="api",status="success"} 1`) {
		t.Fatalf("expected chat counter, got:\n%s", out)
	}
}

func TestWorkerMetricsTrackAuditEvents(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartEvent()
	m.ObserveEventLag(2 * time.Second)
	m.ObserveEventLag(-time.Second)
	m.FinishEvent(10*time.Millisecond, nil)

	out := scrape(t, m.Handler())
	if !strings.Contains(out, `jla_worker_audit_events_total{service="worker",status="success"} 1`) {
		t.Fatalf("expected audit counter, got:\n%s", out)
	}
	if !strings.Contains(out, `jla_worker_audit_in_flight{service="worker"} 0`) {
		t.Fatalf("expected in-flight gauge back to zero, got:\n%s", out)
	}
	if !strings.Contains(out, `jla_worker_event_lag_seconds_count{service="worker"} 1`) {
		t.Fatalf("expected one lag observation, got:\n%s", out)
	}
}
