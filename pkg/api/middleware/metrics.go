package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests that matched no chi route.
const unmatchedRoute = "unmatched"

// RequestRecorder receives one sample per finished request.
type RequestRecorder interface {
	ObserveHTTP(ctx context.Context, method, route string, status int, elapsed time.Duration)
	AddHTTPInFlight(delta float64)
}

// Metrics reports every request except scrapes of /metrics to rec. Requests
// are labelled with the matched chi route so label cardinality stays bounded.
func Metrics(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/metrics") {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rec.AddHTTPInFlight(1)
			sw := newStatusWriter(w)
			status := http.StatusInternalServerError
			defer func() {
				rec.AddHTTPInFlight(-1)
				rec.ObserveHTTP(r.Context(), r.Method, routeLabel(r), status, time.Since(start))
			}()

			next.ServeHTTP(sw, r)
			status = sw.status
		})
	}
}

// routeLabel returns the chi pattern that served r. Call it after the router
// has dispatched.
func routeLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return unmatchedRoute
}
