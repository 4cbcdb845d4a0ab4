package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
)

// AuctionService defines what the auction handler requires from the service
// layer.
type AuctionService interface {
	Submit(ctx context.Context, sub domain.Submission, listedBy string) (domain.Domain, error)
	Bid(ctx context.Context, id int64, amount float64, bidder string) (domain.Domain, error)
	ProxyBid(ctx context.Context, id int64, ceiling float64, bidder string) (domain.Domain, error)
	BuyNow(ctx context.Context, id int64, buyer string) (domain.Domain, error)
}

// AuctionHandler serves listing submission and bidding endpoints.
type AuctionHandler struct {
	auctions AuctionService
	viewer   string
	logger   *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler. viewer is the default acting
// identity used when a request does not name one.
func NewAuctionHandler(auctions AuctionService, viewer string, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctions: auctions,
		viewer:   viewer,
		logger:   logHandler(logger, "auctions"),
	}
}

type submitRequest struct {
	Name          string   `json:"name"`
	StartPrice    float64  `json:"start_price"`
	BuyNowPrice   *float64 `json:"buy_now_price,omitempty"`
	DurationHours int      `json:"duration_hours,omitempty"`
	IsFixedPrice  bool     `json:"is_fixed_price,omitempty"`
	ListedBy      string   `json:"listed_by,omitempty"`
}

// SubmitDomain accepts a new listing for moderation.
// POST /api/domains
func (h *AuctionHandler) SubmitDomain(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sub := domain.Submission{
		Name:         req.Name,
		StartPrice:   req.StartPrice,
		BuyNowPrice:  req.BuyNowPrice,
		IsFixedPrice: req.IsFixedPrice,
	}
	if req.DurationHours > 0 {
		sub.Duration = time.Duration(req.DurationHours) * time.Hour
	}

	d, err := h.auctions.Submit(r.Context(), sub, h.actor(req.ListedBy))
	if err != nil {
		h.logError(r, "submit", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, marketplace.FromDomain(d))
}

type bidRequest struct {
	Amount float64 `json:"amount"`
	Bidder string  `json:"bidder,omitempty"`
}

// PlaceBid places a direct bid on an active auction.
// POST /api/domains/{id}/bid
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	var req bidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	d, err := h.auctions.Bid(r.Context(), id, req.Amount, h.actor(req.Bidder))
	if err != nil {
		h.logError(r, "bid", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, marketplace.FromDomain(d))
}

type proxyBidRequest struct {
	MaxAmount float64 `json:"max_amount"`
	Bidder    string  `json:"bidder,omitempty"`
}

// PlaceProxyBid places a bid capped at the caller's maximum; the effective
// amount is one increment above the current bid, clamped to the cap.
// POST /api/domains/{id}/proxy-bid
func (h *AuctionHandler) PlaceProxyBid(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	var req proxyBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	d, err := h.auctions.ProxyBid(r.Context(), id, req.MaxAmount, h.actor(req.Bidder))
	if err != nil {
		h.logError(r, "proxy bid", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, marketplace.FromDomain(d))
}

type buyNowRequest struct {
	Buyer string `json:"buyer,omitempty"`
}

// BuyNow purchases a listing outright at its buy-now price.
// POST /api/domains/{id}/buy
func (h *AuctionHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid domain id")
		return
	}

	var req buyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	d, err := h.auctions.BuyNow(r.Context(), id, h.actor(req.Buyer))
	if err != nil {
		h.logError(r, "buy now", err)
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, marketplace.FromDomain(d))
}

// actor picks the request-supplied identity, defaulting to the configured
// viewer.
func (h *AuctionHandler) actor(requested string) string {
	if requested != "" {
		return requested
	}
	return h.viewer
}

func (h *AuctionHandler) logError(r *http.Request, op string, err error) {
	h.logger.WarnContext(r.Context(), "handler: "+op+" rejected",
		slog.String("error", err.Error()),
	)
}
