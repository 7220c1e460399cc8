package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/softreason/softreason/config"
	"github.com/softreason/softreason/pkg/api/handlers"
	"github.com/softreason/softreason/pkg/api/response"
	"github.com/softreason/softreason/pkg/embedding"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/reasoning"
	"github.com/softreason/softreason/pkg/vectorstore/memstore"
)

func testLogger() logger.Logger {
	return logger.New(&logger.Config{
		Level:  logger.ErrorLevel,
		Format: "json",
		Output: "stdout",
	})
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.HTTP.RequestTimeout = 5 * time.Second
	return cfg
}

// createTestHandlers wires handlers around a real in-memory engine.
func createTestHandlers(t *testing.T) *Handlers {
	t.Helper()

	eng, err := reasoning.New(
		memstore.New(0),
		embedding.Single(embedding.NewHash(64)),
		reasoning.DefaultRecallConfig(),
		reasoning.DefaultWritebackConfig(),
		reasoning.WithLogger(logger.Nop()),
		reasoning.WithAsyncWorkers(2, 8),
	)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	return &Handlers{
		Memory: handlers.NewMemoryHandler(eng, testLogger(), 0),
		Health: handlers.NewHealthHandler(eng),
	}
}

func TestNewRouter(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), &Handlers{})
	if router == nil {
		t.Fatal("NewRouter returned nil")
	}

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	var errResp response.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("404 body is not JSON: %v", err)
	}
	if errResp.Error.RequestID == "" {
		t.Error("expected request id on 404")
	}
}

func TestRegisterRoutes_HealthEndpoints(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), createTestHandlers(t))

	for _, path := range []string{"/health", "/ready", "/status"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("GET %s status = %d, want 200", path, w.Code)
			}
			if w.Header().Get("X-Request-ID") == "" {
				t.Errorf("GET %s missing X-Request-ID", path)
			}
		})
	}
}

func TestRegisterRoutes_SwaggerDocs(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), createTestHandlers(t))

	req := httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json status = %d, want 200", w.Code)
	}

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatalf("doc.json is not JSON: %v", err)
	}
	if doc.Info.Title != "Soft Reasoning API" {
		t.Errorf("title = %q", doc.Info.Title)
	}

	// Every versioned route must be documented.
	err := chi.Walk(router, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if !strings.HasPrefix(route, "/api/") {
			return nil
		}
		path := strings.TrimSuffix(route, "/")
		if _, ok := doc.Paths[path][strings.ToLower(method)]; !ok {
			t.Errorf("%s %s missing from the OpenAPI spec", method, path)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk routes: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "swagger") {
		t.Errorf("GET /swagger/index.html status = %d", w.Code)
	}
}

func TestRegisterRoutes_MemoryEndpoints(t *testing.T) {
	router := NewRouter(testConfig(), testLogger(), createTestHandlers(t))

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodPost, "/api/v1/memories", `{"text":"grafana dashboards are provisioned from git"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/memories/batch", `{"items":[{"text":"alerts page the primary on-call"}]}`, http.StatusOK},
		{http.MethodPost, "/api/v1/memories/query", `{"text":"grafana"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/memories/prune", ``, http.StatusOK},
		{http.MethodDelete, "/api/v1/memories", `{"ids":["missing"]}`, http.StatusNoContent},
		{http.MethodGet, "/api/v1/memories", ``, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("%s %s status = %d, want %d, body: %s", tt.method, tt.path, w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestNewRouter_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Server.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 1}
	router := NewRouter(cfg, testLogger(), createTestHandlers(t))

	send := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "203.0.113.9:40000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send("/status"); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := send("/status"); code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", code)
	}
	if code := send("/health"); code != http.StatusOK {
		t.Fatalf("health probe status = %d, want 200 despite limit", code)
	}
}

func TestNewRouter_CORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORS = config.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"http://console.local"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
	}
	router := NewRouter(cfg, testLogger(), createTestHandlers(t))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/memories/query", nil)
	req.Header.Set("Origin", "http://console.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://console.local" {
		t.Error("missing allow-origin on preflight")
	}
}

type countingRecorder struct {
	requests int
}

func (c *countingRecorder) ObserveHTTP(context.Context, string, string, int, time.Duration) {
	c.requests++
}

func (c *countingRecorder) AddHTTPInFlight(float64) {}

func TestNewRouter_MetricsMiddleware(t *testing.T) {
	h := createTestHandlers(t)
	rec := &countingRecorder{}
	h.Metrics = rec
	router := NewRouter(testConfig(), testLogger(), h)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.requests != 2 {
		t.Errorf("recorded %d requests, want 2", rec.requests)
	}
}
