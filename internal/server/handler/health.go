package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// SyncStatus exposes the coordinator state the health endpoint reports.
type SyncStatus interface {
	Loaded() bool
	LastUpdated() time.Time
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	status SyncStatus
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler over the coordinator status.
func NewHealthHandler(status SyncStatus, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{status: status, logger: logHandler(logger, "health")}
}

// HealthCheck reports liveness plus the age of the synchronized view.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"loaded":    h.status.Loaded(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if last := h.status.LastUpdated(); !last.IsZero() {
		resp["last_updated"] = last.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}
