package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/jeonse-legal-assistant/internal/config"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
)

const (
	sessionsPrefix       = "/v1/sessions/"
	sessionHistorySuffix = "/history"
	maxRequestBodyBytes  = 64 << 10
	backpressureWait     = 250 * time.Millisecond
)

// Metrics is the subset of the metrics sink used by the router.
type Metrics interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
	RecordChat(err error)
}

type Router struct {
	cfg       config.Config
	retriever ports.LegalRetriever
	chat      ports.LegalChatService
	health    ports.StoreHealth
	examples  []string
	validator *requestValidator
	metrics   Metrics
	logger    *slog.Logger
}

type RouterOption func(*Router)

func WithMetrics(m Metrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func WithLogger(logger *slog.Logger) RouterOption {
	return func(rt *Router) {
		if logger != nil {
			rt.logger = logger
		}
	}
}

func NewRouter(
	cfg config.Config,
	retriever ports.LegalRetriever,
	chat ports.LegalChatService,
	health ports.StoreHealth,
	examples []string,
	opts ...RouterOption,
) (*Router, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}
	rt := &Router{
		cfg:       cfg,
		retriever: retriever,
		chat:      chat,
		health:    health,
		examples:  examples,
		validator: validator,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.json", serveOpenAPIDocument)
	mux.HandleFunc("/v1/legal/retrieve", rt.retrieve)
	mux.HandleFunc("/v1/legal/chat", rt.chatAnswer)
	mux.HandleFunc("/v1/legal/examples", rt.listExamples)
	mux.HandleFunc(sessionsPrefix, rt.sessionHistory)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var h http.Handler = mux
	h = rt.validator.Middleware(h)
	h = timeoutMiddleware(h, rt.cfg.APIRequestTimeout)
	h = backpressureMiddleware(h, rt.cfg.APIMaxInFlight, backpressureWait)
	h = rateLimitMiddleware(h, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	if rt.metrics != nil {
		h = rt.metrics.Middleware(h)
	}
	h = accessLogMiddleware(h, rt.logger)
	return requestIDMiddleware(h)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	stores := map[string]bool{}
	if rt.health != nil {
		stores = rt.health.Availability()
	}
	for _, up := range stores {
		if !up {
			status = "degraded"
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "stores": stores})
}

func (rt *Router) retrieve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	result := rt.retriever.Retrieve(r.Context(), req.Question)
	status := http.StatusOK
	if result.Provenance == domain.ProvenanceError {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

func (rt *Router) chatAnswer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req domain.ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	answer, err := rt.chat.Chat(r.Context(), req)
	if rt.metrics != nil {
		rt.metrics.RecordChat(err)
	}
	if err != nil {
		rt.logger.Error("chat_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) listExamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	questions := rt.examples
	if questions == nil {
		questions = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"questions": questions})
}

func (rt *Router) sessionHistory(w http.ResponseWriter, r *http.Request) {
	sessionID, err := sessionIDFromPath(r.URL.Path)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	switch r.Method {
	case http.MethodGet:
		turns, err := rt.chat.History(r.Context(), sessionID)
		if err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		if turns == nil {
			turns = []domain.SessionTurn{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "turns": turns})
	case http.MethodDelete:
		if err := rt.chat.ClearHistory(r.Context(), sessionID); err != nil {
			writeError(w, mapErrorToHTTPStatus(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// sessionIDFromPath extracts {session_id} from /v1/sessions/{session_id}/history.
func sessionIDFromPath(path string) (string, error) {
	rest := strings.TrimPrefix(path, sessionsPrefix)
	raw, ok := strings.CutSuffix(rest, sessionHistorySuffix)
	if !ok || raw == "" || strings.Contains(raw, "/") {
		return "", domain.WrapError(domain.ErrNotFound, "route", fmt.Errorf("no route for %s", path))
	}

	var sessionID string
	err := runtime.BindStyledParameterWithOptions("simple", "session_id", raw, &sessionID, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind session_id", err)
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind session_id", errors.New("session_id is required"))
	}
	return sessionID, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
