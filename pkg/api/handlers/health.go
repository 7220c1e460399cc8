// Package handlers provides HTTP request handlers.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/softreason/softreason/pkg/api/response"
	"github.com/softreason/softreason/pkg/reasoning"
	"github.com/softreason/softreason/pkg/version"
)

// HealthSource reports engine health.
type HealthSource interface {
	Health(ctx context.Context) reasoning.Health
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	engine  HealthSource
	started time.Time
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(eng HealthSource) *HealthHandler {
	return &HealthHandler{
		engine:  eng,
		started: time.Now(),
	}
}

type statusResponse struct {
	Status        string            `json:"status"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Version       map[string]string `json:"version"`
	Engine        reasoning.Health  `json:"engine"`
}

// Health handles the /health endpoint (liveness probe). It answers as long
// as the process can serve HTTP.
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Ready handles the /ready endpoint. The service is ready once the store
// can be counted.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} map[string]bool
// @Failure 503 {object} map[string]any "Vector store unavailable"
// @Router /ready [get]
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.engine.Health(r.Context()).StoreCount < 0 {
		response.JSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready":  false,
			"reason": "vector store unavailable",
		})
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{
		"ready": true,
	})
}

// Status handles the /status endpoint (detailed status).
// @Summary Detailed status
// @Description Version, uptime and the engine health snapshot.
// @Tags health
// @Produce json
// @Success 200 {object} statusResponse
// @Router /status [get]
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	snapshot := h.engine.Health(r.Context())
	status := "ok"
	if snapshot.StoreCount < 0 {
		status = "degraded"
	}
	response.JSON(w, http.StatusOK, statusResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		Version:       version.Info(),
		Engine:        snapshot,
	})
}
