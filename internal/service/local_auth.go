package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kovacsd/domainbid/internal/domain"
)

// LocalAuth implements domain.Authenticator over a bare profile store for
// deployments that talk straight to Postgres instead of the hosted auth API.
// Passwords are stored as bcrypt hashes on the profile row.
type LocalAuth struct {
	profiles domain.ProfileStore
	logger   *slog.Logger
}

// NewLocalAuth creates a LocalAuth backed by the given profile store.
func NewLocalAuth(profiles domain.ProfileStore, logger *slog.Logger) *LocalAuth {
	return &LocalAuth{
		profiles: profiles,
		logger:   logger.With(slog.String("component", "local_auth")),
	}
}

// SignIn verifies the password against the stored hash.
func (a *LocalAuth) SignIn(ctx context.Context, creds domain.Credentials) (domain.Profile, error) {
	p, err := a.profiles.GetByUsername(ctx, creds.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Profile{}, domain.ErrNotAuthenticated
		}
		return domain.Profile{}, fmt.Errorf("local_auth: sign in %q: %w", creds.Username, err)
	}

	if bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(creds.Password)) != nil {
		return domain.Profile{}, domain.ErrNotAuthenticated
	}

	p.PasswordHash = ""
	return p, nil
}

// SignUp registers a new profile with a hashed password.
func (a *LocalAuth) SignUp(ctx context.Context, creds domain.Credentials) (domain.Profile, error) {
	username := strings.TrimSpace(creds.Username)
	if username == "" || creds.Password == "" {
		return domain.Profile{}, fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	if _, err := a.profiles.GetByUsername(ctx, username); err == nil {
		return domain.Profile{}, fmt.Errorf("%w: username %q is taken", domain.ErrValidation, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("local_auth: hash password: %w", err)
	}

	profile := domain.Profile{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        creds.Email,
		Role:         domain.RoleUser,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	persisted, err := a.profiles.Upsert(ctx, profile)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("local_auth: sign up %q: %w", username, err)
	}

	a.logger.InfoContext(ctx, "profile created", slog.String("username", username))

	persisted.PasswordHash = ""
	return persisted, nil
}

// SignOut is a no-op: local sessions hold no server-side state.
func (a *LocalAuth) SignOut(ctx context.Context) error {
	return nil
}

var _ domain.Authenticator = (*LocalAuth)(nil)
