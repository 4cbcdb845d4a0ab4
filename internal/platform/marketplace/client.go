package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kovacsd/domainbid/internal/domain"
)

// requestTimeout bounds every data-API call. The backend publishes no SLA,
// so a hung request must not stall the coordinator.
const requestTimeout = 30 * time.Second

// Client is the REST client for the marketplace data API. It implements
// domain.DomainStore and domain.ProfileStore over PostgREST-style endpoints.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a data-API client.
//
// baseURL is the API root, e.g. "https://abc.supabase.co"; apiKey is the
// project API key sent on every request.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// FetchAll returns every auction listing, oldest first.
func (c *Client) FetchAll(ctx context.Context) ([]domain.Domain, error) {
	body, err := c.do(ctx, http.MethodGet, "/rest/v1/domains?select=*&order=id.asc", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("marketplace: fetch domains: %w", err)
	}

	var rows []APIDomain
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("marketplace: decode domains: %w", err)
	}
	return ToDomainList(rows), nil
}

// Insert creates a new listing. The backend assigns ID and CreatedAt; the
// returned record carries them.
func (c *Client) Insert(ctx context.Context, d domain.Domain) (domain.Domain, error) {
	row := FromDomain(d)
	row.ID = 0         // server-assigned
	row.CreatedAt = "" // server-assigned

	body, err := c.do(ctx, http.MethodPost, "/rest/v1/domains", row, map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return domain.Domain{}, fmt.Errorf("marketplace: insert domain %q: %w", d.Name, err)
	}

	return decodeSingle(body)
}

// Update replaces the mutable fields of an existing listing.
func (c *Client) Update(ctx context.Context, d domain.Domain) (domain.Domain, error) {
	path := fmt.Sprintf("/rest/v1/domains?id=eq.%d", d.ID)
	body, err := c.do(ctx, http.MethodPatch, path, FromDomain(d), map[string]string{
		"Prefer": "return=representation",
	})
	if err != nil {
		return domain.Domain{}, fmt.Errorf("marketplace: update domain %d: %w", d.ID, err)
	}

	return decodeSingle(body)
}

// UpsertBatch inserts or updates a batch of listings keyed by ID.
func (c *Client) UpsertBatch(ctx context.Context, domains []domain.Domain) error {
	if len(domains) == 0 {
		return nil
	}
	_, err := c.do(ctx, http.MethodPost, "/rest/v1/domains", FromDomainList(domains), map[string]string{
		"Prefer": "resolution=merge-duplicates",
	})
	if err != nil {
		return fmt.Errorf("marketplace: upsert %d domains: %w", len(domains), err)
	}
	return nil
}

// Delete removes a listing row.
func (c *Client) Delete(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/rest/v1/domains?id=eq.%d", id)
	if _, err := c.do(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("marketplace: delete domain %d: %w", id, err)
	}
	return nil
}

// FetchAllProfiles returns every profile row.
func (c *Client) FetchAllProfiles(ctx context.Context) ([]domain.Profile, error) {
	body, err := c.do(ctx, http.MethodGet, "/rest/v1/profiles?select=*", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("marketplace: fetch profiles: %w", err)
	}

	var rows []APIProfile
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("marketplace: decode profiles: %w", err)
	}
	out := make([]domain.Profile, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomainProfile())
	}
	return out, nil
}

// GetProfileByUsername looks up one profile, case-insensitively.
func (c *Client) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	path := "/rest/v1/profiles?username=ilike." + url.QueryEscape(username)
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("marketplace: get profile %q: %w", username, err)
	}

	var rows []APIProfile
	if err := json.Unmarshal(body, &rows); err != nil {
		return domain.Profile{}, fmt.Errorf("marketplace: decode profile: %w", err)
	}
	if len(rows) == 0 {
		return domain.Profile{}, domain.ErrNotFound
	}
	return rows[0].ToDomainProfile(), nil
}

// UpsertProfile inserts or updates a profile row keyed by username.
func (c *Client) UpsertProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	body, err := c.do(ctx, http.MethodPost, "/rest/v1/profiles", FromDomainProfile(p), map[string]string{
		"Prefer": "resolution=merge-duplicates,return=representation",
	})
	if err != nil {
		return domain.Profile{}, fmt.Errorf("marketplace: upsert profile %q: %w", p.Username, err)
	}

	var rows []APIProfile
	if err := json.Unmarshal(body, &rows); err != nil {
		return domain.Profile{}, fmt.Errorf("marketplace: decode profile: %w", err)
	}
	if len(rows) == 0 {
		return p, nil
	}
	return rows[0].ToDomainProfile(), nil
}

// do issues one data-API request and returns the raw response body. Non-2xx
// responses are returned as errors with the body text attached.
func (c *Client) do(ctx context.Context, method, path string, payload any, headers map[string]string) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// decodeSingle unwraps the single-element array PostgREST returns for
// return=representation writes.
func decodeSingle(body []byte) (domain.Domain, error) {
	var rows []APIDomain
	if err := json.Unmarshal(body, &rows); err != nil {
		// Some deployments return a bare object instead of an array.
		var row APIDomain
		if err2 := json.Unmarshal(body, &row); err2 != nil {
			return domain.Domain{}, fmt.Errorf("marketplace: decode domain: %w", err)
		}
		return row.ToDomain(), nil
	}
	if len(rows) == 0 {
		return domain.Domain{}, domain.ErrNotFound
	}
	return rows[0].ToDomain(), nil
}

// ProfileClient adapts the profile endpoints to domain.ProfileStore.
type ProfileClient struct {
	c *Client
}

// NewProfileClient wraps a Client as a domain.ProfileStore.
func NewProfileClient(c *Client) *ProfileClient {
	return &ProfileClient{c: c}
}

func (p *ProfileClient) FetchAll(ctx context.Context) ([]domain.Profile, error) {
	return p.c.FetchAllProfiles(ctx)
}

func (p *ProfileClient) GetByUsername(ctx context.Context, username string) (domain.Profile, error) {
	return p.c.GetProfileByUsername(ctx, username)
}

func (p *ProfileClient) Upsert(ctx context.Context, prof domain.Profile) (domain.Profile, error) {
	return p.c.UpsertProfile(ctx, prof)
}

// Compile-time interface checks.
var (
	_ domain.DomainStore  = (*Client)(nil)
	_ domain.ProfileStore = (*ProfileClient)(nil)
)
