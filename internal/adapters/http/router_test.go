package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/config"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

type retrieverFake struct {
	result domain.RetrievalResult
	calls  []string
}

func (f *retrieverFake) Retrieve(_ context.Context, query string) domain.RetrievalResult {
	f.calls = append(f.calls, query)
	return f.result
}

type chatFake struct {
	mu       sync.Mutex
	answer   *domain.ChatAnswer
	err      error
	requests []domain.ChatRequest
	history  map[string][]domain.SessionTurn
	cleared  []string
}

func (f *chatFake) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatAnswer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.answer, f.err
}

func (f *chatFake) History(_ context.Context, sessionID string) ([]domain.SessionTurn, error) {
	return f.history[sessionID], nil
}

func (f *chatFake) ClearHistory(_ context.Context, sessionID string) error {
	f.cleared = append(f.cleared, sessionID)
	return nil
}

type healthFake map[string]bool

func (f healthFake) Availability() map[string]bool { return f }

type metricsFake struct {
	chats []error
}

func (m *metricsFake) Middleware(next http.Handler) http.Handler { return next }
func (m *metricsFake) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jla_metrics"))
	})
}
func (m *metricsFake) RecordChat(err error) { m.chats = append(m.chats, err) }

func newTestHandler(t *testing.T, cfg config.Config, retriever *retrieverFake, chat *chatFake, opts ...RouterOption) http.Handler {
	t.Helper()
	if retriever == nil {
		retriever = &retrieverFake{}
	}
	if chat == nil {
		chat = &chatFake{}
	}
	rt, err := NewRouter(cfg, retriever, chat, healthFake{"legal": true, "news": false}, []string{"전세사기 당했을 때 대처방법은?"}, opts...)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return rt.Handler()
}

func postJSON(handler http.Handler, path string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestRetrieveReturnsResult(t *testing.T) {
	retriever := &retrieverFake{result: domain.RetrievalResult{
		Documents:  []domain.Document{{ID: "l1", Content: "주택임대차보호법 제3조"}},
		Provenance: domain.ProvenanceLegalOnly,
		LegalScore: 0.8,
	}}
	handler := newTestHandler(t, config.Config{}, retriever, nil)

	res := postJSON(handler, "/v1/legal/retrieve", map[string]string{"question": "집주인이 전세금을 안 돌려줘요"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var got domain.RetrievalResult
	if err := json.NewDecoder(res.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Provenance != domain.ProvenanceLegalOnly || len(got.Documents) != 1 {
		t.Fatalf("unexpected result: %+v", got)
	}
	if len(retriever.calls) != 1 || retriever.calls[0] != "집주인이 전세금을 안 돌려줘요" {
		t.Fatalf("unexpected retriever calls: %v", retriever.calls)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestRetrieveErrorProvenanceMapsTo503(t *testing.T) {
	retriever := &retrieverFake{result: domain.RetrievalResult{Provenance: domain.ProvenanceError, Error: "boom"}}
	handler := newTestHandler(t, config.Config{}, retriever, nil)

	res := postJSON(handler, "/v1/legal/retrieve", map[string]string{"question": "q"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestRetrieveRejectsMissingQuestion(t *testing.T) {
	retriever := &retrieverFake{}
	handler := newTestHandler(t, config.Config{}, retriever, nil)

	res := postJSON(handler, "/v1/legal/retrieve", map[string]string{"query": "wrong field"})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	res = postJSON(handler, "/v1/legal/retrieve", map[string]string{"question": "   "})
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank question, got %d", res.Code)
	}
	if len(retriever.calls) != 0 {
		t.Fatalf("retriever must not be called for invalid input")
	}
}

func TestRetrieveRejectsWrongMethod(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/legal/retrieve", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}

func TestChatMapsDomainErrors(t *testing.T) {
	metrics := &metricsFake{}
	chat := &chatFake{err: domain.WrapError(domain.ErrTemporary, "generate", errors.New("ollama down"))}
	handler := newTestHandler(t, config.Config{}, nil, chat, WithMetrics(metrics))

	res := postJSON(handler, "/v1/legal/chat", map[string]string{"question": "보증금을 돌려받을 수 있을까요?"})
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if len(metrics.chats) != 1 || metrics.chats[0] == nil {
		t.Fatalf("expected failed chat to be recorded, got %v", metrics.chats)
	}
}

func TestChatReturnsAnswer(t *testing.T) {
	chat := &chatFake{answer: &domain.ChatAnswer{SessionID: "s-1", Answer: "임차권등기명령을 신청하세요.", Provenance: domain.ProvenanceLegalOnly}}
	handler := newTestHandler(t, config.Config{}, nil, chat)

	res := postJSON(handler, "/v1/legal/chat", map[string]string{"session_id": "s-1", "question": "어떻게 하나요?"})
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if len(chat.requests) != 1 || chat.requests[0].SessionID != "s-1" {
		t.Fatalf("unexpected chat requests: %+v", chat.requests)
	}
}

func TestSessionHistoryGetAndDelete(t *testing.T) {
	chat := &chatFake{history: map[string][]domain.SessionTurn{
		"s-1": {{SessionID: "s-1", Role: domain.RoleUser, Content: "질문"}},
	}}
	handler := newTestHandler(t, config.Config{}, nil, chat)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1/history", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	var body struct {
		SessionID string               `json:"session_id"`
		Turns     []domain.SessionTurn `json:"turns"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if body.SessionID != "s-1" || len(body.Turns) != 1 {
		t.Fatalf("unexpected history: %+v", body)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodDelete, "/v1/sessions/s-1/history", nil))
	if res.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", res.Code)
	}
	if len(chat.cleared) != 1 || chat.cleared[0] != "s-1" {
		t.Fatalf("unexpected cleared sessions: %v", chat.cleared)
	}
}

func TestSessionHistoryUnknownPathReturns404(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/sessions/s-1/other", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestHealthzReportsDegradedStores(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body struct {
		Status string          `json:"status"`
		Stores map[string]bool `json:"stores"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if body.Status != "degraded" || body.Stores["legal"] != true || body.Stores["news"] != false {
		t.Fatalf("unexpected health: %+v", body)
	}
}

func TestExamplesAndOpenAPIDocument(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/legal/examples", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "전세사기") {
		t.Fatalf("unexpected examples response %d: %s", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "/v1/legal/retrieve") {
		t.Fatalf("unexpected openapi response %d", res.Code)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, nil, nil, WithMetrics(&metricsFake{}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK || res.Body.String() != "jla_metrics" {
		t.Fatalf("unexpected metrics response %d: %s", res.Code, res.Body.String())
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestHandler(t, config.Config{
		APIRateLimitRPS:   1,
		APIRateLimitBurst: 1,
	}, nil, nil)

	req1 := httptest.NewRequest(http.MethodGet, "/v1/legal/examples", nil)
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/v1/legal/examples", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}

	health := httptest.NewRecorder()
	handler.ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if health.Code != http.StatusOK {
		t.Fatalf("health checks must bypass the rate limit, got %d", health.Code)
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/legal/retrieve", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodPost, "/v1/legal/retrieve", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(bytes.NewReader(res2.Body.Bytes())).Decode(&resp); err != nil {
		t.Fatalf("decode overload response: %v", err)
	}
	if resp["error"] == "" {
		t.Fatalf("expected overload error message in response")
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}

func TestTimeoutMiddlewareSetsDeadline(t *testing.T) {
	var hasDeadline bool
	handler := timeoutMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasDeadline = r.Context().Deadline()
	}), time.Second)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/legal/examples", nil))
	if !hasDeadline {
		t.Fatalf("expected request context deadline")
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := map[error]int{
		domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")):     http.StatusBadRequest,
		domain.WrapError(domain.ErrNotFound, "op", errors.New("x")):         http.StatusNotFound,
		domain.WrapError(domain.ErrStoreUnavailable, "op", errors.New("x")): http.StatusServiceUnavailable,
		errors.New("plain"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		if got := mapErrorToHTTPStatus(err); got != want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", err, got, want)
		}
	}
}
