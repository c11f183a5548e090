// Package chatapi serves the agent over HTTP.
package chatapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/martinemde/chatagent/agentloop"
	"github.com/martinemde/chatagent/unifiedllm"
)

// Runner answers a conversation. *agentloop.Agent implements it.
type Runner interface {
	Run(ctx context.Context, messages []agentloop.ChatMessage, model string, temperature *float64) (*agentloop.Reply, error)
}

// RequestRecorder receives one observation per finished HTTP request.
type RequestRecorder interface {
	ObserveRequest(path string, status int, elapsed time.Duration)
}

// Server is the chat HTTP API.
type Server struct {
	address  string
	runner   Runner
	catalog  *unifiedllm.Catalog
	logger   zerolog.Logger
	recorder RequestRecorder
	gatherer prometheus.Gatherer

	server *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for request and lifecycle lines.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRequestRecorder records request counts and latencies.
func WithRequestRecorder(r RequestRecorder) Option {
	return func(s *Server) { s.recorder = r }
}

// WithMetrics exposes g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// NewServer creates a server listening on address once started.
func NewServer(address string, runner Runner, catalog *unifiedllm.Catalog, opts ...Option) *Server {
	s := &Server{
		address: address,
		runner:  runner,
		catalog: catalog,
		logger:  log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.server = &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Long enough for a full agent run with retries.
		WriteTimeout: 5 * time.Minute,
	}
	return s
}

// Handler returns the routed handler with CORS and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /models", s.handleModels)
	mux.HandleFunc("POST /chat", s.handleChat)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return s.withLogging(withCORS(mux))
}

// Start serves until Shutdown is called. It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.address).
		Int("models", len(s.catalog.Names())).
		Msg("AI Chat API starting up")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "serve")
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("AI Chat API shutting down")
	return s.server.Shutdown(ctx)
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages    []agentloop.ChatMessage `json:"messages"`
	Model       string                  `json:"model,omitempty"`
	Temperature *float64                `json:"temperature,omitempty"`
}

// ChatResponse is the body of a successful POST /chat.
type ChatResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// ModelsResponse is the body of GET /models.
type ModelsResponse struct {
	Models  []string `json:"models"`
	Default string   `json:"default"`
}

type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	zerolog.Ctx(r.Context()).Debug().Msg("Health check")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	zerolog.Ctx(r.Context()).Debug().Msg("Models requested")
	s.writeJSON(w, http.StatusOK, ModelsResponse{Models: s.catalog.Names(), Default: s.catalog.Default()})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return
	}
	if req.Messages == nil {
		s.writeError(w, http.StatusUnprocessableEntity, "field required: messages")
		return
	}
	if req.Model == "" {
		req.Model = s.catalog.Default()
	}
	if _, ok := s.catalog.Lookup(req.Model); !ok {
		s.writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("Unknown model '%s'. Call GET /models for available options.", req.Model))
		return
	}
	for _, m := range req.Messages {
		if !agentloop.ValidRole(m.Role) {
			s.writeError(w, http.StatusUnprocessableEntity, unknownRoleDetail(m.Role))
			return
		}
	}

	ev := logger.Info().Str("model", req.Model).Int("messages", len(req.Messages))
	if req.Temperature != nil {
		ev = ev.Float64("temperature", *req.Temperature)
	}
	ev.Msg("Chat request")

	reply, err := s.runner.Run(r.Context(), req.Messages, req.Model, req.Temperature)
	if err != nil {
		var roleErr *agentloop.UnknownRoleError
		if errors.As(err, &roleErr) {
			s.writeError(w, http.StatusUnprocessableEntity, unknownRoleDetail(roleErr.Role))
			return
		}
		logger.Error().Err(err).Str("model", req.Model).Msg("Chat error")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info().Str("model", req.Model).Int("reply_chars", len(reply.Content)).Msg("Chat response")
	s.writeJSON(w, http.StatusOK, ChatResponse{Content: reply.Content, Model: req.Model})
}

func unknownRoleDetail(role string) string {
	return fmt.Sprintf("Unknown role '%s'. Must be 'user', 'assistant', or 'system'.", role)
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorBody{Detail: detail})
}

// writeJSON encodes v; encode errors mean the client went away and are only
// logged at debug level.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write JSON response")
	}
}
