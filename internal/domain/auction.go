package domain

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultAuctionDuration is the end-time offset applied when a submission
// does not carry an explicit duration.
const DefaultAuctionDuration = 24 * time.Hour

// ProxyBidIncrement is the step a proxy bid advances over the current bid.
const ProxyBidIncrement = 10

// domainNameRe accepts dot-separated labels of letters, digits, and hyphens
// with no leading or trailing hyphen, ending in a top-level label of at
// least two letters.
var domainNameRe = regexp.MustCompile(`^([a-zA-Z0-9]([a-zA-Z0-9-]*[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}$`)

// ValidDomainName reports whether name is a well-formed domain name.
func ValidDomainName(name string) bool {
	return domainNameRe.MatchString(name)
}

// Submission holds the parameters of a new listing. BuyNowPrice is optional;
// Duration of zero means DefaultAuctionDuration.
type Submission struct {
	Name         string
	StartPrice   float64
	BuyNowPrice  *float64
	Duration     time.Duration
	IsFixedPrice bool
}

// Every transition below takes the full current domain list and returns the
// next list plus the affected record. A violated precondition yields a typed
// error and leaves the input untouched; transitions never partially mutate.

// Submit validates a new listing and appends a pending record to the list.
// The returned record carries a zero ID; the backend assigns the real one on
// insert.
func Submit(domains []Domain, sub Submission, listedBy string, now time.Time) ([]Domain, Domain, error) {
	if listedBy == "" {
		return nil, Domain{}, ErrNotAuthenticated
	}
	if !ValidDomainName(sub.Name) {
		return nil, Domain{}, fmt.Errorf("%w: malformed domain name %q", ErrValidation, sub.Name)
	}
	if sub.StartPrice <= 0 {
		return nil, Domain{}, fmt.Errorf("%w: starting price must be positive", ErrValidation)
	}
	if sub.BuyNowPrice != nil && *sub.BuyNowPrice <= sub.StartPrice {
		return nil, Domain{}, fmt.Errorf("%w: buy-now price must exceed starting price", ErrValidation)
	}

	duration := sub.Duration
	if duration <= 0 {
		duration = DefaultAuctionDuration
	}

	record := Domain{
		Name:         sub.Name,
		CurrentBid:   sub.StartPrice,
		EndTime:      now.Add(duration),
		BidHistory:   []Bid{},
		Status:       StatusPending,
		BuyNowPrice:  sub.BuyNowPrice,
		CreatedAt:    now,
		ListedBy:     listedBy,
		IsFixedPrice: sub.IsFixedPrice,
	}

	next := CloneList(domains)
	next = append(next, record)
	return next, record, nil
}

// Approve moves a pending listing to active.
func Approve(domains []Domain, id int64) ([]Domain, Domain, error) {
	return replace(domains, id, func(d Domain) (Domain, error) {
		if d.Status != StatusPending {
			return d, ErrNotPending
		}
		d.Status = StatusActive
		return d, nil
	})
}

// Reject removes a pending listing from the set entirely.
func Reject(domains []Domain, id int64) ([]Domain, Domain, error) {
	idx := indexOf(domains, id)
	if idx < 0 {
		return nil, Domain{}, ErrNotFound
	}
	if domains[idx].Status != StatusPending {
		return nil, Domain{}, ErrNotPending
	}
	rejected := domains[idx].Clone()
	next := make([]Domain, 0, len(domains)-1)
	for i := range domains {
		if i != idx {
			next = append(next, domains[i].Clone())
		}
	}
	return next, rejected, nil
}

// PlaceBid applies a bid to an active listing. CurrentBid is strictly
// increasing across successful bids and each success appends exactly one
// entry to the bid history.
func PlaceBid(domains []Domain, id int64, amount float64, bidder string, now time.Time) ([]Domain, Domain, error) {
	return replace(domains, id, func(d Domain) (Domain, error) {
		if d.Sold() || now.After(d.EndTime) {
			return d, ErrAuctionEnded
		}
		if bidder == "" {
			return d, ErrNotAuthenticated
		}
		if amount <= d.CurrentBid {
			return d, fmt.Errorf("%w: %.2f does not exceed current bid %.2f", ErrBidTooLow, amount, d.CurrentBid)
		}

		ts := now
		d.CurrentBid = amount
		d.CurrentBidder = bidder
		d.BidTimestamp = &ts
		d.BidHistory = append(d.BidHistory, Bid{Bidder: bidder, Amount: amount, Timestamp: now})
		return d, nil
	})
}

// PlaceProxyBid bids on the caller's behalf up to a ceiling. The effective
// amount is min(currentBid+increment, ceiling); a bid is recorded only if
// that amount exceeds the current bid.
func PlaceProxyBid(domains []Domain, id int64, ceiling float64, bidder string, now time.Time) ([]Domain, Domain, error) {
	idx := indexOf(domains, id)
	if idx < 0 {
		return nil, Domain{}, ErrNotFound
	}
	effective := domains[idx].CurrentBid + ProxyBidIncrement
	if effective > ceiling {
		effective = ceiling
	}
	return PlaceBid(domains, id, effective, bidder, now)
}

// BuyNow closes a listing at its fixed price. Terminal: no bids are
// accepted afterwards.
func BuyNow(domains []Domain, id int64, buyer string, now time.Time) ([]Domain, Domain, error) {
	return replace(domains, id, func(d Domain) (Domain, error) {
		if d.Sold() || now.After(d.EndTime) {
			return d, ErrAuctionEnded
		}
		if d.BuyNowPrice == nil {
			return d, ErrNoBuyNowPrice
		}
		if buyer == "" {
			return d, ErrNotAuthenticated
		}

		price := *d.BuyNowPrice
		ts := now
		d.Status = StatusSold
		d.CurrentBidder = buyer
		d.FinalPrice = &price
		d.PurchaseDate = &ts
		return d, nil
	})
}

// ToggleFeatured flips the featured flag. Admin only.
func ToggleFeatured(domains []Domain, id int64, actor Profile) ([]Domain, Domain, error) {
	if !actor.IsAdmin() {
		return nil, Domain{}, ErrForbidden
	}
	return replace(domains, id, func(d Domain) (Domain, error) {
		d.Featured = !d.Featured
		return d, nil
	})
}

// Delete removes a listing unconditionally. Admin only.
func Delete(domains []Domain, id int64, actor Profile) ([]Domain, Domain, error) {
	if !actor.IsAdmin() {
		return nil, Domain{}, ErrForbidden
	}
	idx := indexOf(domains, id)
	if idx < 0 {
		return nil, Domain{}, ErrNotFound
	}
	deleted := domains[idx].Clone()
	next := make([]Domain, 0, len(domains)-1)
	for i := range domains {
		if i != idx {
			next = append(next, domains[i].Clone())
		}
	}
	return next, deleted, nil
}

// SettleExpired produces the settled form of an expired auction that
// received bids: status sold, final price fixed at the winning bid. The
// second return is false when the record is not eligible (still running,
// already sold, or never bid on), which makes the settlement step idempotent.
func SettleExpired(d Domain, now time.Time) (Domain, bool) {
	if d.Sold() || !d.Ended(now) || d.Status != StatusActive || len(d.BidHistory) == 0 {
		return d, false
	}
	out := d.Clone()
	price := out.CurrentBid
	ts := now
	out.Status = StatusSold
	out.FinalPrice = &price
	out.PurchaseDate = &ts
	return out, true
}

// replace applies fn to the record with the given ID, deep-copying the list
// on success so the input is never aliased or partially mutated.
func replace(domains []Domain, id int64, fn func(Domain) (Domain, error)) ([]Domain, Domain, error) {
	idx := indexOf(domains, id)
	if idx < 0 {
		return nil, Domain{}, ErrNotFound
	}
	updated, err := fn(domains[idx].Clone())
	if err != nil {
		return nil, Domain{}, err
	}
	next := CloneList(domains)
	next[idx] = updated
	return next, updated, nil
}

func indexOf(domains []Domain, id int64) int {
	for i := range domains {
		if domains[i].ID == id {
			return i
		}
	}
	return -1
}
