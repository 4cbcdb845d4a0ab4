package domain

import "time"

// DomainStatus represents the persisted lifecycle state of a listing.
// "Ended" and "sold by expiry" are derived from EndTime and BidHistory at
// classification time, never stored as a status value.
type DomainStatus string

const (
	StatusPending DomainStatus = "pending"
	StatusActive  DomainStatus = "active"
	StatusSold    DomainStatus = "sold"
)

// Domain represents one auction listing on the marketplace.
type Domain struct {
	ID            int64
	Name          string
	CurrentBid    float64
	EndTime       time.Time
	BidHistory    []Bid // append-only, insertion order is chronological
	Status        DomainStatus
	CurrentBidder string // empty until the first bid
	BidTimestamp  *time.Time
	BuyNowPrice   *float64
	FinalPrice    *float64 // set only on sale
	PurchaseDate  *time.Time
	Featured      bool
	CreatedAt     time.Time
	ListedBy      string
	IsFixedPrice  bool
}

// Ended reports whether the auction clock has run out at the given instant.
func (d Domain) Ended(now time.Time) bool {
	return !d.EndTime.After(now)
}

// Sold reports whether the listing has a persisted sale.
func (d Domain) Sold() bool {
	return d.Status == StatusSold
}

// Clone returns a deep copy of the domain, including its bid history, so
// callers can mutate the copy without aliasing the original.
func (d Domain) Clone() Domain {
	out := d
	if d.BidHistory != nil {
		out.BidHistory = make([]Bid, len(d.BidHistory))
		copy(out.BidHistory, d.BidHistory)
	}
	if d.BidTimestamp != nil {
		t := *d.BidTimestamp
		out.BidTimestamp = &t
	}
	if d.BuyNowPrice != nil {
		p := *d.BuyNowPrice
		out.BuyNowPrice = &p
	}
	if d.FinalPrice != nil {
		p := *d.FinalPrice
		out.FinalPrice = &p
	}
	if d.PurchaseDate != nil {
		t := *d.PurchaseDate
		out.PurchaseDate = &t
	}
	return out
}

// CloneList deep-copies a domain list.
func CloneList(domains []Domain) []Domain {
	if domains == nil {
		return nil
	}
	out := make([]Domain, len(domains))
	for i := range domains {
		out[i] = domains[i].Clone()
	}
	return out
}
