package domain

import "time"

// Bid is one accepted bid on a listing. Immutable once appended to a
// domain's bid history.
type Bid struct {
	Bidder    string
	Amount    float64
	Timestamp time.Time
}
