// Package httpapi is the minimal HTTP surface over the step engine: agent
// creation and the message endpoint, which streams step events back as
// server-sent events.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haasonsaas/mnemos/internal/auth"
	"github.com/haasonsaas/mnemos/internal/engine"
	"github.com/haasonsaas/mnemos/internal/heartbeat"
	"github.com/haasonsaas/mnemos/internal/observability"
	"github.com/haasonsaas/mnemos/internal/presets"
	"github.com/haasonsaas/mnemos/internal/ratelimit"
	"github.com/haasonsaas/mnemos/pkg/models"
)

// Server hosts the HTTP surface.
type Server struct {
	engine   *engine.Engine
	auth     *auth.Service
	presets  *presets.Library
	logger   *observability.Logger
	metrics  *observability.Metrics
	limiter  *ratelimit.Limiter
	defaults Defaults
}

// Defaults are applied to agents created without explicit configuration.
type Defaults struct {
	LLM       engine.LLMConfig
	Embedding engine.EmbeddingConfig
}

// NewServer wires the HTTP surface.
func NewServer(eng *engine.Engine, authService *auth.Service, library *presets.Library, logger *observability.Logger, metrics *observability.Metrics, defaults Defaults) *Server {
	return &Server{
		engine:   eng,
		auth:     authService,
		presets:  library,
		logger:   logger,
		metrics:  metrics,
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		defaults: defaults,
	}
}

// Handler builds the route tree with auth and metrics middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agents", s.handleCreateAgent)
	mux.HandleFunc("POST /agents/{agent_id}/message", s.handleMessage)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := auth.Middleware(s.auth, s.logger)(mux)
	return s.instrument(handler)
}

func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, routePattern(r), strconv.Itoa(recorder.status), time.Since(start).Seconds())
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func routePattern(r *http.Request) string {
	if pattern := r.Pattern; pattern != "" {
		return pattern
	}
	return r.URL.Path
}

type createAgentRequest struct {
	Name    string `json:"name"`
	Preset  string `json:"preset,omitempty"`
	Persona string `json:"persona,omitempty"`
	Human   string `json:"human,omitempty"`
}

type createAgentResponse struct {
	AgentID string `json:"agent_id"`
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	owner := s.ownerID(r)
	if owner == "" {
		http.Error(w, "invalid credentials", http.StatusForbidden)
		return
	}

	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	preset, err := s.presets.Get(req.Preset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	persona := req.Persona
	if persona == "" {
		persona = preset.Persona
	}
	human := req.Human
	if human == "" {
		human = preset.Human
	}

	record := &engine.AgentRecord{
		ID:        uuid.NewString(),
		OwnerID:   owner,
		Name:      req.Name,
		Preset:    preset.Name,
		LLM:       s.defaults.LLM,
		Embedding: s.defaults.Embedding,
		CreatedAt: time.Now().UTC(),
		State: engine.StateBlob{
			Persona:   persona,
			Human:     human,
			System:    preset.System,
			Functions: s.engine.SchemasFor(preset.Functions),
		},
	}

	if _, err := s.engine.CreateAgent(r.Context(), record); err != nil {
		s.internalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(createAgentResponse{AgentID: record.ID})
}

type messageRequest struct {
	Message string `json:"message"`
	Role    string `json:"role,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	owner := s.ownerID(r)
	if owner == "" {
		http.Error(w, "invalid credentials", http.StatusForbidden)
		return
	}
	agentID := r.PathValue("agent_id")

	if !s.limiter.Allow(owner) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	role := models.Role(req.Role)
	if req.Role == "" {
		role = models.RoleUser
	}
	if err := engine.ValidateRole(role); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := engine.ValidateUserInput(req.Message); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	now := time.Now()
	var payload string
	switch role {
	case models.RoleSystem:
		payload = heartbeat.SystemAlert(req.Message, now)
	default:
		payload = heartbeat.PackageUserMessage(req.Message, "", now)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	stream := newStreamInterface(w)

	err := s.engine.WithAgentLock(r.Context(), owner, agentID, func(ag *engine.Agent) error {
		result, err := s.engine.RunChain(r.Context(), ag, engine.Input{Raw: payload}, stream)
		if err != nil {
			return err
		}
		if s.metrics != nil {
			s.metrics.RecordChain(result.Steps)
		}
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, engine.ErrAgentBusy):
			// Headers are already committed to the event stream; surface
			// the retryable condition as a terminal frame.
			if s.metrics != nil {
				s.metrics.RecordBusyRejection()
			}
			stream.InternalError("agent is currently busy, retry shortly")
		case errors.Is(err, engine.ErrAgentNotFound):
			stream.InternalError("agent not found")
		default:
			if s.logger != nil {
				s.logger.Error(r.Context(), "message request failed", "agent_id", agentID, "error", err)
			}
			stream.InternalError(err.Error())
		}
	}
	// Stream terminates by closing the response; the final frame above is
	// the sentinel for error paths.
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	if s.logger != nil {
		s.logger.Error(r.Context(), "internal server error", "error", err)
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) ownerID(r *http.Request) string {
	if user, ok := auth.UserFromContext(r.Context()); ok && user != nil {
		return user.ID
	}
	// Auth disabled (local runs): a fixed anonymous owner.
	if s.auth == nil || !s.auth.Enabled() {
		return "00000000-0000-0000-0000-000000000000"
	}
	return ""
}
