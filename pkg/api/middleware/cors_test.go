package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/softreason/softreason/config"
)

func corsRequest(cfg *config.CORSConfig, method, origin string, preflight bool) (*httptest.ResponseRecorder, bool) {
	called := false
	h := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/v1/memories", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, called
}

func TestCORS_Origins(t *testing.T) {
	cfg := &config.CORSConfig{
		Enabled: true,
		AllowedOrigins: []string{
			"http://localhost:3000",
			" HTTPS://UI.Example.com ",
			"https://*.tenant.example",
		},
		AllowCredentials: true,
	}
	tests := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"https://ui.example.com", true},
		{"https://a.tenant.example", true},
		{"https://deep.a.tenant.example", true},
		{"https://tenant.example", false},
		{"http://a.tenant.example", false},
		{"http://localhost:3001", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			w, called := corsRequest(cfg, http.MethodGet, tt.origin, false)

			assert.True(t, called)
			assert.Equal(t, "Origin", w.Header().Get("Vary"))
			if tt.want {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
				assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
				return
			}
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Empty(t, w.Header().Get("Access-Control-Allow-Credentials"))
		})
	}
}

func TestCORS_Disabled(t *testing.T) {
	cfg := &config.CORSConfig{AllowedOrigins: []string{"*"}}

	w, called := corsRequest(cfg, http.MethodOptions, "http://localhost:3000", true)

	assert.True(t, called, "disabled CORS leaves preflights to the router")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, w.Header().Get("Vary"))
}

func TestCORS_Preflight(t *testing.T) {
	cfg := &config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         600,
	}

	w, called := corsRequest(cfg, http.MethodOptions, "http://localhost:3000", true)

	assert.False(t, called, "preflight must not reach the handler")
	assert.Equal(t, http.StatusNoContent, w.Code)
	h := w.Header()
	assert.Equal(t, "http://localhost:3000", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, DELETE", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, X-Request-ID", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "X-Request-ID", h.Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "600", h.Get("Access-Control-Max-Age"))
}

func TestCORS_PlainOptionsIsForwarded(t *testing.T) {
	cfg := &config.CORSConfig{Enabled: true, AllowedOrigins: []string{"*"}, MaxAge: 600}

	w, called := corsRequest(cfg, http.MethodOptions, "http://localhost:3000", false)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Max-Age"))
}
