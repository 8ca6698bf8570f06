package httpadapter

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/greyhaven/game-analyst-agents/internal/core/domain"
	"github.com/greyhaven/game-analyst-agents/internal/core/ports"
	"github.com/greyhaven/game-analyst-agents/internal/observability/metrics"
)

const sessionIDHeader = "X-Session-Id"

const maxRequestBody = 1 << 20

// TrafficConfig bounds inbound load before requests reach the agent.
type TrafficConfig struct {
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
}

type Router struct {
	service     ports.AgentService
	serviceName string
	metrics     *metrics.ServerMetrics
	traffic     TrafficConfig
	logger      *slog.Logger
}

func NewRouter(
	service ports.AgentService,
	serviceName string,
	serverMetrics *metrics.ServerMetrics,
	traffic TrafficConfig,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		service:     service,
		serviceName: serviceName,
		metrics:     serverMetrics,
		traffic:     traffic,
		logger:      logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/invocations", rt.invocations)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	if rt.traffic.MaxInFlight > 0 {
		handler = backpressureMiddleware(handler, rt.traffic.MaxInFlight, rt.traffic.BackpressureWait)
	}
	if rt.traffic.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.traffic.RateLimitRPS, rt.traffic.RateLimitBurst)
	}
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(rt.serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) invocations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req domain.AgentRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt is required"})
		return
	}

	// Session identity comes from the hosting runtime, never the payload.
	sessionID := strings.TrimSpace(r.Header.Get(sessionIDHeader))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	req.SessionID = sessionID
	w.Header().Set(sessionIDHeader, sessionID)

	start := time.Now()
	resp, err := rt.service.Handle(r.Context(), req)
	if err != nil {
		rt.recordRun("error", 0, start)
		rt.logger.Error("invocation failed",
			"request_id", requestIDFromContext(r.Context()),
			"session_id", sessionID,
			"error", err,
		)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	rt.recordRun("success", len(resp.ToolMetrics), start)
	if rt.metrics != nil {
		rt.metrics.RecordTokenUsage(rt.serviceName, resp.Metrics.InputTokens, resp.Metrics.OutputTokens)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) recordRun(status string, delegations int, start time.Time) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordAgentRun(rt.serviceName, status, delegations, time.Since(start))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
