// Package marketplace is the client for the hosted marketplace backend: a
// PostgREST-style data API, a GoTrue-style auth API, and helpers shared with
// the live change feed. It owns the wire representation of auction records
// (snake_case fields, RFC 3339 timestamp strings) and the mapping to and
// from the in-memory domain types.
package marketplace

import (
	"time"

	"github.com/kovacsd/domainbid/internal/domain"
)

// APIDomain is an auction listing as it appears on the wire.
type APIDomain struct {
	ID            int64    `json:"id,omitempty"`
	Name          string   `json:"name"`
	CurrentBid    float64  `json:"current_bid"`
	EndTime       string   `json:"end_time"`
	BidHistory    []APIBid `json:"bid_history"`
	Status        string   `json:"status"`
	CurrentBidder *string  `json:"current_bidder,omitempty"`
	BidTimestamp  *string  `json:"bid_timestamp,omitempty"`
	BuyNowPrice   *float64 `json:"buy_now_price,omitempty"`
	FinalPrice    *float64 `json:"final_price,omitempty"`
	PurchaseDate  *string  `json:"purchase_date,omitempty"`
	Featured      bool     `json:"featured"`
	CreatedAt     string   `json:"created_at,omitempty"`
	ListedBy      string   `json:"listed_by"`
	IsFixedPrice  bool     `json:"is_fixed_price"`
}

// APIBid is one bid history entry on the wire.
type APIBid struct {
	Bidder    string  `json:"bidder"`
	Amount    float64 `json:"amount"`
	Timestamp string  `json:"timestamp"`
}

// APIProfile is a user profile row on the wire.
type APIProfile struct {
	ID        string `json:"id,omitempty"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

// ToDomain converts a wire record to the in-memory representation. Missing
// optional fields map to absent, a null bid history maps to an empty
// sequence, and the legacy "featured" status value is normalized to an
// active record with the featured flag set.
func (a *APIDomain) ToDomain() domain.Domain {
	d := domain.Domain{
		ID:           a.ID,
		Name:         a.Name,
		CurrentBid:   a.CurrentBid,
		BidHistory:   []domain.Bid{},
		Status:       domain.DomainStatus(a.Status),
		Featured:     a.Featured,
		ListedBy:     a.ListedBy,
		IsFixedPrice: a.IsFixedPrice,
	}

	if a.Status == "featured" {
		d.Status = domain.StatusActive
		d.Featured = true
	}

	d.EndTime = parseWireTime(a.EndTime)
	d.CreatedAt = parseWireTime(a.CreatedAt)

	for _, b := range a.BidHistory {
		d.BidHistory = append(d.BidHistory, domain.Bid{
			Bidder:    b.Bidder,
			Amount:    b.Amount,
			Timestamp: parseWireTime(b.Timestamp),
		})
	}

	if a.CurrentBidder != nil {
		d.CurrentBidder = *a.CurrentBidder
	}
	if a.BidTimestamp != nil {
		t := parseWireTime(*a.BidTimestamp)
		d.BidTimestamp = &t
	}
	if a.BuyNowPrice != nil {
		p := *a.BuyNowPrice
		d.BuyNowPrice = &p
	}
	if a.FinalPrice != nil {
		p := *a.FinalPrice
		d.FinalPrice = &p
	}
	if a.PurchaseDate != nil {
		t := parseWireTime(*a.PurchaseDate)
		d.PurchaseDate = &t
	}

	return d
}

// FromDomain converts an in-memory record to its wire representation.
func FromDomain(d domain.Domain) APIDomain {
	a := APIDomain{
		ID:           d.ID,
		Name:         d.Name,
		CurrentBid:   d.CurrentBid,
		EndTime:      formatWireTime(d.EndTime),
		BidHistory:   make([]APIBid, 0, len(d.BidHistory)),
		Status:       string(d.Status),
		Featured:     d.Featured,
		CreatedAt:    formatWireTime(d.CreatedAt),
		ListedBy:     d.ListedBy,
		IsFixedPrice: d.IsFixedPrice,
	}

	for _, b := range d.BidHistory {
		a.BidHistory = append(a.BidHistory, APIBid{
			Bidder:    b.Bidder,
			Amount:    b.Amount,
			Timestamp: formatWireTime(b.Timestamp),
		})
	}

	if d.CurrentBidder != "" {
		bidder := d.CurrentBidder
		a.CurrentBidder = &bidder
	}
	if d.BidTimestamp != nil {
		s := formatWireTime(*d.BidTimestamp)
		a.BidTimestamp = &s
	}
	if d.BuyNowPrice != nil {
		p := *d.BuyNowPrice
		a.BuyNowPrice = &p
	}
	if d.FinalPrice != nil {
		p := *d.FinalPrice
		a.FinalPrice = &p
	}
	if d.PurchaseDate != nil {
		s := formatWireTime(*d.PurchaseDate)
		a.PurchaseDate = &s
	}

	return a
}

// ToDomainList converts a wire list in order.
func ToDomainList(rows []APIDomain) []domain.Domain {
	out := make([]domain.Domain, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

// FromDomainList converts an in-memory list to wire records in order.
func FromDomainList(domains []domain.Domain) []APIDomain {
	out := make([]APIDomain, 0, len(domains))
	for i := range domains {
		out = append(out, FromDomain(domains[i]))
	}
	return out
}

// ToDomainProfile converts a wire profile row.
func (a *APIProfile) ToDomainProfile() domain.Profile {
	role := domain.Role(a.Role)
	if role == "" {
		role = domain.RoleUser
	}
	return domain.Profile{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		Role:      role,
		CreatedAt: parseWireTime(a.CreatedAt),
	}
}

// FromDomainProfile converts an in-memory profile to its wire row.
func FromDomainProfile(p domain.Profile) APIProfile {
	return APIProfile{
		ID:        p.ID,
		Username:  p.Username,
		Email:     p.Email,
		Role:      string(p.Role),
		CreatedAt: formatWireTime(p.CreatedAt),
	}
}

func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func formatWireTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
