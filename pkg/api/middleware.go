package api

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redsunjin/NestClaw/pkg/auth"
	"github.com/redsunjin/NestClaw/pkg/ratelimit"
	"github.com/redsunjin/NestClaw/pkg/task"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// RequestIDFrom returns the request id assigned by the middleware
// chain, or an empty string outside of it.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requestIDMiddleware assigns every request an id and echoes it back
// in the X-Request-ID header. A caller-supplied id is kept so clients
// can correlate retries.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = task.NewRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
// for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestIDFrom(r.Context()),
		)
	})
}

// corsMiddleware handles Cross-Origin Resource Sharing. An empty
// origin list allows all origins.
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && isOriginAllowed(origin, allowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-SSO-Token, X-SSO-User, X-SSO-Role, X-Actor-ID, X-Actor-Role, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", "Retry-After, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "86400")

			// Handle preflight
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isOriginAllowed checks if the origin matches the allowed list.
func isOriginAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

// rateLimitMiddleware enforces a per-client budget keyed by remote IP.
// It runs before authentication so unauthenticated floods are turned
// away without touching the resolver. Limiter failures fail open.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter == nil || r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := s.limiter.Allow(r.Context(), clientIP(r), s.policy)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, failing open", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(s.policy)))
			writeError(w, r, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func retryAfterSeconds(policy ratelimit.Policy) int {
	if policy.RPS <= 0 {
		return 1
	}
	retry := int(1 / policy.RPS)
	if retry < 1 {
		retry = 1
	}
	return retry
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// authMiddleware resolves the calling actor and stores it on the
// request context. The health probe stays reachable without
// credentials.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		actor, err := s.resolver.Resolve(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, CodeUnauthorized, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithActor(r.Context(), actor)))
	})
}
