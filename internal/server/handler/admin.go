package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
)

// AdminService defines what the moderation handler requires from the service
// layer.
type AdminService interface {
	Approve(ctx context.Context, id int64, actor domain.Profile) (domain.Domain, error)
	Reject(ctx context.Context, id int64, actor domain.Profile) error
	Feature(ctx context.Context, id int64, actor domain.Profile) (domain.Domain, error)
	Delete(ctx context.Context, id int64, actor domain.Profile) error
}

// AdminHandler serves moderation endpoints. Requests reaching it have already
// passed the admin-token middleware, so it acts as a fixed admin profile.
type AdminHandler struct {
	admin  AdminService
	actor  domain.Profile
	logger *slog.Logger
}

// NewAdminHandler creates an AdminHandler acting as the named admin.
func NewAdminHandler(admin AdminService, adminUser string, logger *slog.Logger) *AdminHandler {
	if adminUser == "" {
		adminUser = "admin"
	}
	return &AdminHandler{
		admin: admin,
		actor: domain.Profile{
			Username: adminUser,
			Role:     domain.RoleAdmin,
		},
		logger: logHandler(logger, "admin"),
	}
}

// Approve moves a pending listing into the live auction set.
// POST /api/domains/{id}/approve
func (h *AdminHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	d, err := h.admin.Approve(r.Context(), id, h.actor)
	if err != nil {
		h.logError(r, "approve", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, marketplace.FromDomain(d))
}

// Reject removes a pending listing entirely.
// POST /api/domains/{id}/reject
func (h *AdminHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	if err := h.admin.Reject(r.Context(), id, h.actor); err != nil {
		h.logError(r, "reject", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// Feature toggles the featured flag on a listing.
// POST /api/domains/{id}/feature
func (h *AdminHandler) Feature(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	d, err := h.admin.Feature(r.Context(), id, h.actor)
	if err != nil {
		h.logError(r, "feature", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, marketplace.FromDomain(d))
}

// Delete removes a listing in any state.
// DELETE /api/domains/{id}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	if err := h.admin.Delete(r.Context(), id, h.actor); err != nil {
		h.logError(r, "delete", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) logError(r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), "handler: "+op+" rejected",
		slog.String("error", err.Error()),
	)
}
