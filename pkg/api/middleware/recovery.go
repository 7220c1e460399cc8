package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/softreason/softreason/pkg/api/response"
	"github.com/softreason/softreason/pkg/logger"
)

// Recovery returns a middleware that turns a handler panic into a 500. The
// panic value is logged but never echoed to the client.
func Recovery(log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.ErrorContext(r.Context(), "Panic recovered",
					"error", rec,
					"path", r.URL.Path,
					"method", r.Method,
					"stack", string(debug.Stack()),
				)

				response.Error(w,
					http.StatusInternalServerError,
					response.ErrCodeInternalServer,
					"Internal server error",
					GetRequestID(r.Context()),
				)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
