// Package api exposes the orchestrator over HTTP. Every response body
// is JSON; failures use a single error envelope so clients can parse
// errors without inspecting status codes.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/redsunjin/NestClaw/pkg/auth"
	"github.com/redsunjin/NestClaw/pkg/engine"
	"github.com/redsunjin/NestClaw/pkg/ratelimit"
)

// maxBodyBytes caps request bodies well above any legal payload.
const maxBodyBytes = 1 << 20

// Server wires the engine, actor resolver, and HTTP plumbing together.
type Server struct {
	engine   *engine.Engine
	resolver *auth.Resolver
	logger   *slog.Logger
	limiter  ratelimit.Store
	policy   ratelimit.Policy
	origins  []string
	schemas  *requestSchemas
}

// Option configures optional server behavior.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRateLimit enables per-client throttling backed by the given
// store.
func WithRateLimit(store ratelimit.Store, policy ratelimit.Policy) Option {
	return func(s *Server) {
		s.limiter = store
		s.policy = policy
	}
}

// WithCORSOrigins restricts cross-origin access to the given origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

// NewServer builds the HTTP surface over an engine. It fails only if
// the embedded request schemas do not compile.
func NewServer(eng *engine.Engine, resolver *auth.Resolver, opts ...Option) (*Server, error) {
	s := &Server{
		engine:   eng,
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	schemas, err := compileRequestSchemas()
	if err != nil {
		return nil, err
	}
	s.schemas = schemas
	return s, nil
}

// Handler assembles the middleware chain around the route table.
// Order matters: the request id must exist before anything logs or
// fails, and rate limiting runs before authentication so floods are
// cheap to reject. /health bypasses both limits and credentials.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleNotFound)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/task/create", s.handleCreateTask)
	mux.HandleFunc("/api/v1/task/run", s.handleRunTask)
	mux.HandleFunc("/api/v1/task/status/", s.handleTaskStatus)
	mux.HandleFunc("/api/v1/task/events/", s.handleTaskEvents)
	mux.HandleFunc("/api/v1/approvals", s.handleListApprovals)
	mux.HandleFunc("/api/v1/approvals/", s.handleApprovalDecision)
	mux.HandleFunc("/api/v1/audit/summary", s.handleAuditSummary)

	var h http.Handler = mux
	h = s.authMiddleware(h)
	h = s.rateLimitMiddleware(h)
	h = corsMiddleware(s.origins)(h)
	h = s.loggingMiddleware(h)
	h = requestIDMiddleware(h)
	return h
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotFound, CodeNotFound, "unknown route: "+r.URL.Path)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody reads, schema-validates, and binds a JSON request body.
// It writes the 400 envelope itself and reports success to the caller.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema *jsonschema.Schema, dst any) bool {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "read request body: "+err.Error())
		return false
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return false
	}
	if err := schema.Validate(raw); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, err.Error())
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, CodeInvalidRequest, "invalid JSON body")
		return false
	}
	return true
}
