package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
)

// AuthHandler serves sign-in, sign-up and sign-out over any Authenticator
// implementation.
type AuthHandler struct {
	auth   domain.Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth domain.Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logHandler(logger, "auth")}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

func (c credentialsRequest) toDomain() domain.Credentials {
	return domain.Credentials{
		Username: c.Username,
		Email:    c.Email,
		Password: c.Password,
	}
}

// SignIn authenticates a returning user.
// POST /api/auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.auth.SignIn(r.Context(), req.toDomain())
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: sign-in rejected",
			slog.String("username", req.Username),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, marketplace.FromDomainProfile(p))
}

// SignUp registers a new user.
// POST /api/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	p, err := h.auth.SignUp(r.Context(), req.toDomain())
	if err != nil {
		h.logger.WarnContext(r.Context(), "handler: sign-up rejected",
			slog.String("username", req.Username),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, marketplace.FromDomainProfile(p))
}

// SignOut ends the current session.
// POST /api/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context()); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}
