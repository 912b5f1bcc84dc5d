package handlers

import (
	"net/http"
	"time"

	"github.com/meaze0507/itchysats/internal/api/response"
	"github.com/meaze0507/itchysats/internal/service/sandbox"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	hub       *sandbox.Hub
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(hub *sandbox.Hub, version string) *HealthHandler {
	return &HealthHandler{
		hub:       hub,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status        string           `json:"status"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Timestamp     time.Time        `json:"timestamp"`
	Feed          sandbox.HubStats `json:"feed"`
}

// Health returns liveness with feed statistics
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Timestamp:     time.Now(),
		Feed:          h.hub.GetStats(),
	})
}
