// Package api provides HTTP API server components.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/softreason/softreason/config"
	_ "github.com/softreason/softreason/docs/swagger" // registers the generated OpenAPI spec
	"github.com/softreason/softreason/pkg/api/handlers"
	"github.com/softreason/softreason/pkg/api/middleware"
	"github.com/softreason/softreason/pkg/api/response"
	"github.com/softreason/softreason/pkg/logger"
	"github.com/softreason/softreason/pkg/ratelimit"
)

// Handlers holds all HTTP handlers.
type Handlers struct {
	// Memory handles ingest, query and maintenance endpoints
	Memory *handlers.MemoryHandler

	// Health handles health check endpoints
	Health *handlers.HealthHandler

	// WebSocket streams engine events
	WebSocket *handlers.WebSocketHandler

	// Metrics is the optional request recorder
	Metrics middleware.RequestRecorder
}

// NewRouter creates a new chi router with middleware and routes.
func NewRouter(cfg *config.Config, log logger.Logger, h *Handlers) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))

	if h.Metrics != nil {
		r.Use(middleware.Metrics(h.Metrics))
	}
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing(middleware.UntracedPaths...))
	}

	r.Use(middleware.CORS(&cfg.Server.CORS))

	if rl := cfg.Server.RateLimit; rl.Enabled {
		r.Use(middleware.RateLimit(ratelimit.New(rl.RequestsPerSecond, rl.Burst)))
	}

	r.Use(middleware.Timeout(cfg.Server.HTTP.RequestTimeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, http.StatusNotFound, response.ErrCodeNotFound,
			"Route not found", middleware.GetRequestID(req.Context()))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, response.ErrCodeMethodNotAllowed,
			"Method not allowed", middleware.GetRequestID(req.Context()))
	})

	RegisterRoutes(r, h)

	return r
}

// RegisterRoutes registers all API routes.
func RegisterRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		if h.Memory != nil {
			r.Route("/memories", func(r chi.Router) {
				r.Post("/", h.Memory.Ingest)
				r.Delete("/", h.Memory.Delete)
				r.Post("/batch", h.Memory.BatchIngest)
				r.Post("/query", h.Memory.Query)
				r.Post("/prune", h.Memory.Prune)
			})
		}
	})

	// Health check routes (not versioned)
	if h.Health != nil {
		r.Get("/health", h.Health.Health)
		r.Get("/ready", h.Health.Ready)
		r.Get("/status", h.Health.Status)
	}

	if h.WebSocket != nil {
		r.Handle("/ws/events", h.WebSocket)
	}

	r.Get("/swagger/*", httpSwagger.WrapHandler)
}
