package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/recircuit/internal/api"
	"github.com/teemow/recircuit/internal/logging"
)

// observeRequests records the HTTP request metric and a debug log line per
// request. The route pattern is used as the path label to bound cardinality.
func (s *Server) observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)
		duration := time.Since(start)

		s.cfg.Metrics.RecordHTTPRequest(r.Context(), r.Method, path, status, duration)
		s.logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", path),
			slog.Int(logging.KeyStatus, status),
			slog.Duration(logging.KeyDuration, duration),
			logging.RequestID(middleware.GetReqID(r.Context())))
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.SetSecurityHeaders(w)
		next.ServeHTTP(w, r)
	})
}
