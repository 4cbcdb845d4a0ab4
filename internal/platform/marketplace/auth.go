package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/kovacsd/domainbid/internal/domain"
)

// AuthClient talks to the backend's GoTrue-style auth endpoints. It holds
// the access token of the signed-in session so SignOut can revoke it.
type AuthClient struct {
	c *Client

	mu          sync.Mutex
	accessToken string
}

// NewAuthClient creates an AuthClient sharing the data-API transport.
func NewAuthClient(c *Client) *AuthClient {
	return &AuthClient{c: c}
}

// authSession is the token response shape shared by sign-in and sign-up.
type authSession struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Meta  struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user_metadata"`
	} `json:"user"`
}

// SignIn exchanges credentials for a session and returns the profile shape
// the core consumes.
func (a *AuthClient) SignIn(ctx context.Context, creds domain.Credentials) (domain.Profile, error) {
	payload := map[string]string{
		"email":    creds.Email,
		"password": creds.Password,
	}

	body, err := a.c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", payload, nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("marketplace/auth: sign in: %w", err)
	}
	return a.storeSession(body)
}

// SignUp registers a new account. Username and role travel in user metadata.
func (a *AuthClient) SignUp(ctx context.Context, creds domain.Credentials) (domain.Profile, error) {
	payload := map[string]any{
		"email":    creds.Email,
		"password": creds.Password,
		"data": map[string]string{
			"username": creds.Username,
			"role":     string(domain.RoleUser),
		},
	}

	body, err := a.c.do(ctx, http.MethodPost, "/auth/v1/signup", payload, nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("marketplace/auth: sign up: %w", err)
	}
	return a.storeSession(body)
}

// SignOut revokes the held session token. A no-op when nothing is signed in.
func (a *AuthClient) SignOut(ctx context.Context) error {
	a.mu.Lock()
	token := a.accessToken
	a.accessToken = ""
	a.mu.Unlock()

	if token == "" {
		return nil
	}

	_, err := a.c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	if err != nil {
		return fmt.Errorf("marketplace/auth: sign out: %w", err)
	}
	return nil
}

func (a *AuthClient) storeSession(body []byte) (domain.Profile, error) {
	var sess authSession
	if err := json.Unmarshal(body, &sess); err != nil {
		return domain.Profile{}, fmt.Errorf("marketplace/auth: decode session: %w", err)
	}

	a.mu.Lock()
	a.accessToken = sess.AccessToken
	a.mu.Unlock()

	role := domain.Role(sess.User.Meta.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.Profile{
		ID:       sess.User.ID,
		Username: sess.User.Meta.Username,
		Email:    sess.User.Email,
		Role:     role,
	}, nil
}

var _ domain.Authenticator = (*AuthClient)(nil)
