package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kovacsd/domainbid/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeView serves a fixed snapshot and records resyncs.
type fakeView struct {
	domains   []domain.Domain
	resyncErr error
	resyncs   int
}

func (f *fakeView) Snapshot() []domain.Domain { return domain.CloneList(f.domains) }

func (f *fakeView) Resync(ctx context.Context) error {
	f.resyncs++
	return f.resyncErr
}

func fixtureDomains() []domain.Domain {
	now := time.Now()
	active := domain.Domain{ID: 1, Name: "live.com", Status: domain.StatusActive, EndTime: now.Add(time.Hour)}
	pending := domain.Domain{ID: 2, Name: "wait.com", Status: domain.StatusPending, EndTime: now.Add(time.Hour)}
	expired := domain.Domain{ID: 3, Name: "gone.com", Status: domain.StatusActive, EndTime: now.Add(-time.Hour)}
	return []domain.Domain{active, pending, expired}
}

func TestListDomains(t *testing.T) {
	h := NewDomainHandler(&fakeView{domains: fixtureDomains()}, testLogger())

	t.Run("no filter returns everything", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ListDomains(rec, httptest.NewRequest(http.MethodGet, "/api/domains", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp listDomainsResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, 3, resp.Count)
	})

	t.Run("bucket filter narrows the result", func(t *testing.T) {
		for bucket, wantName := range map[string]string{
			"active":       "live.com",
			"pending":      "wait.com",
			"ended_unsold": "gone.com",
		} {
			rec := httptest.NewRecorder()
			h.ListDomains(rec, httptest.NewRequest(http.MethodGet, "/api/domains?bucket="+bucket, nil))

			require.Equal(t, http.StatusOK, rec.Code)
			var resp listDomainsResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, 1, resp.Count, bucket)
			assert.Equal(t, wantName, resp.Domains[0].Name)
		}
	})

	t.Run("unknown bucket yields an empty list, not null", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ListDomains(rec, httptest.NewRequest(http.MethodGet, "/api/domains?bucket=nope", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"domains":[]`)
	})
}

func TestGetDomain(t *testing.T) {
	h := NewDomainHandler(&fakeView{domains: fixtureDomains()}, testLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/domains/{id}", h.GetDomain)

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/domains/1", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "live.com")
	})

	t.Run("missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/domains/99", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("garbage id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/domains/xyz", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestResync(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		view := &fakeView{}
		h := NewDomainHandler(view, testLogger())

		rec := httptest.NewRecorder()
		h.Resync(rec, httptest.NewRequest(http.MethodPost, "/api/resync", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, view.resyncs)
	})

	t.Run("backend failure maps to bad gateway", func(t *testing.T) {
		view := &fakeView{resyncErr: errors.New("backend down")}
		h := NewDomainHandler(view, testLogger())

		rec := httptest.NewRecorder()
		h.Resync(rec, httptest.NewRequest(http.MethodPost, "/api/resync", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		domain.ErrNotFound:          http.StatusNotFound,
		domain.ErrValidation:        http.StatusBadRequest,
		domain.ErrBidTooLow:         http.StatusBadRequest,
		domain.ErrNoBuyNowPrice:     http.StatusBadRequest,
		domain.ErrNotPending:        http.StatusBadRequest,
		domain.ErrNotAuthenticated:  http.StatusUnauthorized,
		domain.ErrForbidden:         http.StatusForbidden,
		domain.ErrAuctionEnded:      http.StatusConflict,
		errors.New("anything else"): http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}

	// Wrapped sentinels map the same way.
	wrapped := fmt.Errorf("context: %w", domain.ErrBidTooLow)
	assert.Equal(t, http.StatusBadRequest, statusFor(wrapped))
}
