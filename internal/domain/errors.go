package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrAuctionEnded     = errors.New("auction ended")
	ErrBidTooLow        = errors.New("bid too low")
	ErrNoBuyNowPrice    = errors.New("no buy-now price set")
	ErrNotPending       = errors.New("listing is not pending")
	ErrLockHeld         = errors.New("lock already held")
	ErrChannelClosed    = errors.New("live channel closed")
	ErrChannelGaveUp    = errors.New("live channel exhausted reconnect attempts")
)
