package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
)

// DomainView is what the read-side handlers need from the coordinator.
type DomainView interface {
	Snapshot() []domain.Domain
	Resync(ctx context.Context) error
}

// DomainHandler serves the synchronized domain view.
type DomainHandler struct {
	view   DomainView
	logger *slog.Logger
}

// NewDomainHandler creates a DomainHandler over the coordinator view.
func NewDomainHandler(view DomainView, logger *slog.Logger) *DomainHandler {
	return &DomainHandler{view: view, logger: logHandler(logger, "domains")}
}

// listDomainsResponse wraps the domain list response.
type listDomainsResponse struct {
	Domains []marketplace.APIDomain `json:"domains"`
	Count   int                     `json:"count"`
}

// ListDomains returns the current view, optionally filtered to one display
// bucket: pending, active, ended_unsold or sold.
// GET /api/domains?bucket=active
func (h *DomainHandler) ListDomains(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")
	now := time.Now()

	var out []domain.Domain
	for _, d := range h.view.Snapshot() {
		if bucket == "" || domain.Bucket(d, now) == bucket {
			out = append(out, d)
		}
	}

	wire := marketplace.FromDomainList(out)
	if wire == nil {
		wire = []marketplace.APIDomain{}
	}
	writeJSON(w, http.StatusOK, listDomainsResponse{Domains: wire, Count: len(wire)})
}

// GetDomain returns a single record by ID.
// GET /api/domains/{id}
func (h *DomainHandler) GetDomain(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	for _, d := range h.view.Snapshot() {
		if d.ID == id {
			writeJSON(w, http.StatusOK, marketplace.FromDomain(d))
			return
		}
	}
	writeError(w, http.StatusNotFound, "domain not found")
}

// Resync forces a full refetch from the backend.
// POST /api/resync
func (h *DomainHandler) Resync(w http.ResponseWriter, r *http.Request) {
	if err := h.view.Resync(r.Context()); err != nil {
		h.logger.ErrorContext(r.Context(), "handler: resync failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadGateway, "resync failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resynced"})
}
