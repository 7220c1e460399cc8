package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/softreason/softreason/pkg/api/response"
	"github.com/softreason/softreason/pkg/ratelimit"
)

// RateLimit returns a middleware that answers 429 once a client exhausts
// its bucket. Probe endpoints are never limited.
func RateLimit(l *ratelimit.Keyed) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(l.RetryAfter() / time.Second))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbePath(r.URL.Path) || l.Allow(clientIP(r)) {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Retry-After", retryAfter)
			response.Error(w,
				http.StatusTooManyRequests,
				response.ErrCodeRateLimited,
				"Rate limit exceeded",
				GetRequestID(r.Context()),
			)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
