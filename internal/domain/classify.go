package domain

import "time"

// Buckets is the display partition of the domain set. Every record falls
// into exactly one bucket.
type Buckets struct {
	Pending     []Domain
	Active      []Domain
	EndedUnsold []Domain
	Sold        []Domain
}

// Classify partitions domains against the given instant. An expired active
// auction with at least one bid counts as sold to the highest bidder even if
// no explicit sale transition ran; settlement persists that outcome
// separately.
func Classify(domains []Domain, now time.Time) Buckets {
	var b Buckets
	for _, d := range domains {
		switch {
		case d.Status == StatusPending:
			b.Pending = append(b.Pending, d)
		case d.Status == StatusSold:
			b.Sold = append(b.Sold, d)
		case d.Status == StatusActive && !d.Ended(now):
			b.Active = append(b.Active, d)
		case len(d.BidHistory) == 0:
			b.EndedUnsold = append(b.EndedUnsold, d)
		default:
			b.Sold = append(b.Sold, d)
		}
	}
	return b
}

// Bucket returns the single bucket name for one record, using the same rules
// as Classify.
func Bucket(d Domain, now time.Time) string {
	switch {
	case d.Status == StatusPending:
		return "pending"
	case d.Status == StatusSold:
		return "sold"
	case d.Status == StatusActive && !d.Ended(now):
		return "active"
	case len(d.BidHistory) == 0:
		return "ended_unsold"
	default:
		return "sold"
	}
}
