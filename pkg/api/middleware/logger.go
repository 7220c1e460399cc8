// Package middleware provides HTTP middleware components.
package middleware

import (
	"net/http"
	"time"

	"github.com/softreason/softreason/pkg/logger"
)

// Logger returns a middleware that logs HTTP requests. Server errors are
// logged at error level, client errors at warn, probes at debug.
func Logger(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newStatusWriter(w)

			next.ServeHTTP(wrapped, r)

			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"size", wrapped.size,
				"remote_addr", r.RemoteAddr,
			}
			ctx := r.Context()

			switch {
			case wrapped.status >= http.StatusInternalServerError:
				log.ErrorContext(ctx, "HTTP request", args...)
			case wrapped.status >= http.StatusBadRequest:
				log.WarnContext(ctx, "HTTP request", args...)
			case isProbePath(r.URL.Path):
				log.DebugContext(ctx, "HTTP request", args...)
			default:
				log.InfoContext(ctx, "HTTP request", append(args, "user_agent", r.UserAgent())...)
			}
		})
	}
}

func isProbePath(path string) bool {
	return path == "/health" || path == "/ready"
}
