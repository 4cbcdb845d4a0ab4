package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func activeDomain(id int64, bid float64) Domain {
	return Domain{
		ID:         id,
		Name:       "example.com",
		CurrentBid: bid,
		EndTime:    testNow.Add(time.Hour),
		BidHistory: []Bid{},
		Status:     StatusActive,
		ListedBy:   "seller",
		CreatedAt:  testNow.Add(-time.Hour),
	}
}

func TestSubmit(t *testing.T) {
	t.Run("valid submission appends a pending record", func(t *testing.T) {
		next, rec, err := Submit(nil, Submission{Name: "shiny.io", StartPrice: 50}, "alice", testNow)
		require.NoError(t, err)
		require.Len(t, next, 1)

		assert.Equal(t, StatusPending, rec.Status)
		assert.Equal(t, 50.0, rec.CurrentBid)
		assert.Equal(t, testNow.Add(DefaultAuctionDuration), rec.EndTime)
		assert.Equal(t, "alice", rec.ListedBy)
		assert.NotNil(t, rec.BidHistory)
		assert.Empty(t, rec.BidHistory)
	})

	t.Run("explicit duration wins over the default", func(t *testing.T) {
		_, rec, err := Submit(nil, Submission{Name: "shiny.io", StartPrice: 50, Duration: 72 * time.Hour}, "alice", testNow)
		require.NoError(t, err)
		assert.Equal(t, testNow.Add(72*time.Hour), rec.EndTime)
	})

	t.Run("malformed names are rejected", func(t *testing.T) {
		for _, name := range []string{"", "nodot", "-bad.com", "bad-.com", "spaces in.com", "trailingdot."} {
			_, _, err := Submit(nil, Submission{Name: name, StartPrice: 50}, "alice", testNow)
			assert.ErrorIs(t, err, ErrValidation, "name %q", name)
		}
	})

	t.Run("non-positive start price is rejected", func(t *testing.T) {
		_, _, err := Submit(nil, Submission{Name: "ok.com", StartPrice: 0}, "alice", testNow)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("buy-now at or below start price is rejected", func(t *testing.T) {
		bn := 50.0
		_, _, err := Submit(nil, Submission{Name: "ok.com", StartPrice: 50, BuyNowPrice: &bn}, "alice", testNow)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("anonymous submission is rejected", func(t *testing.T) {
		_, _, err := Submit(nil, Submission{Name: "ok.com", StartPrice: 50}, "", testNow)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestApproveReject(t *testing.T) {
	pending := Domain{ID: 1, Name: "ok.com", Status: StatusPending, EndTime: testNow.Add(time.Hour)}

	t.Run("approve moves pending to active", func(t *testing.T) {
		next, rec, err := Approve([]Domain{pending}, 1)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, rec.Status)
		assert.Equal(t, StatusActive, next[0].Status)
	})

	t.Run("approve rejects non-pending records", func(t *testing.T) {
		_, _, err := Approve([]Domain{activeDomain(1, 50)}, 1)
		assert.ErrorIs(t, err, ErrNotPending)
	})

	t.Run("reject removes the record", func(t *testing.T) {
		next, rec, err := Reject([]Domain{pending, activeDomain(2, 50)}, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), rec.ID)
		require.Len(t, next, 1)
		assert.Equal(t, int64(2), next[0].ID)
	})

	t.Run("reject of an unknown id fails", func(t *testing.T) {
		_, _, err := Reject([]Domain{pending}, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPlaceBid(t *testing.T) {
	t.Run("higher bid advances the auction", func(t *testing.T) {
		in := []Domain{activeDomain(1, 100)}
		next, rec, err := PlaceBid(in, 1, 110, "bob", testNow)
		require.NoError(t, err)

		assert.Equal(t, 110.0, rec.CurrentBid)
		assert.Equal(t, "bob", rec.CurrentBidder)
		require.NotNil(t, rec.BidTimestamp)
		assert.Equal(t, testNow, *rec.BidTimestamp)
		require.Len(t, rec.BidHistory, 1)
		assert.Equal(t, Bid{Bidder: "bob", Amount: 110, Timestamp: testNow}, rec.BidHistory[0])

		// Input untouched.
		assert.Equal(t, 100.0, in[0].CurrentBid)
		assert.Empty(t, in[0].BidHistory)
		assert.Equal(t, 110.0, next[0].CurrentBid)
	})

	t.Run("bid equal to current bid fails, one cent more succeeds", func(t *testing.T) {
		in := []Domain{activeDomain(1, 100)}
		_, _, err := PlaceBid(in, 1, 100, "bob", testNow)
		assert.ErrorIs(t, err, ErrBidTooLow)

		_, rec, err := PlaceBid(in, 1, 100.01, "bob", testNow)
		require.NoError(t, err)
		assert.Equal(t, 100.01, rec.CurrentBid)
	})

	t.Run("current bid is strictly monotonic across successive bids", func(t *testing.T) {
		view := []Domain{activeDomain(1, 100)}
		last := 100.0
		for i := 0; i < 10; i++ {
			var err error
			view, _, err = PlaceBid(view, 1, last+5, "bob", testNow)
			require.NoError(t, err)
			require.Greater(t, view[0].CurrentBid, last)
			last = view[0].CurrentBid
		}
		assert.Len(t, view[0].BidHistory, 10)
	})

	t.Run("bid on an expired auction fails", func(t *testing.T) {
		d := activeDomain(1, 100)
		d.EndTime = testNow.Add(-time.Minute)
		_, _, err := PlaceBid([]Domain{d}, 1, 110, "bob", testNow)
		assert.ErrorIs(t, err, ErrAuctionEnded)
	})

	t.Run("bid exactly at the end instant is still accepted", func(t *testing.T) {
		d := activeDomain(1, 100)
		d.EndTime = testNow
		_, _, err := PlaceBid([]Domain{d}, 1, 110, "bob", testNow)
		assert.NoError(t, err)
	})

	t.Run("bid on a sold listing fails", func(t *testing.T) {
		d := activeDomain(1, 100)
		price := 100.0
		ts := testNow.Add(-time.Minute)
		d.Status = StatusSold
		d.FinalPrice = &price
		d.PurchaseDate = &ts
		_, _, err := PlaceBid([]Domain{d}, 1, 110, "bob", testNow)
		assert.ErrorIs(t, err, ErrAuctionEnded)
	})

	t.Run("anonymous bid fails", func(t *testing.T) {
		_, _, err := PlaceBid([]Domain{activeDomain(1, 100)}, 1, 110, "", testNow)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("unknown id fails", func(t *testing.T) {
		_, _, err := PlaceBid([]Domain{activeDomain(1, 100)}, 7, 110, "bob", testNow)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("failed bid leaves the history length unchanged", func(t *testing.T) {
		in := []Domain{activeDomain(1, 100)}
		_, _, err := PlaceBid(in, 1, 90, "bob", testNow)
		require.ErrorIs(t, err, ErrBidTooLow)
		assert.Empty(t, in[0].BidHistory)
	})
}

func TestPlaceProxyBid(t *testing.T) {
	t.Run("bids one increment over the current bid", func(t *testing.T) {
		_, rec, err := PlaceProxyBid([]Domain{activeDomain(1, 100)}, 1, 500, "bob", testNow)
		require.NoError(t, err)
		assert.Equal(t, 110.0, rec.CurrentBid)
	})

	t.Run("clamps to the ceiling", func(t *testing.T) {
		_, rec, err := PlaceProxyBid([]Domain{activeDomain(1, 100)}, 1, 104, "bob", testNow)
		require.NoError(t, err)
		assert.Equal(t, 104.0, rec.CurrentBid)
	})

	t.Run("ceiling at or below the current bid cannot win", func(t *testing.T) {
		_, _, err := PlaceProxyBid([]Domain{activeDomain(1, 100)}, 1, 100, "bob", testNow)
		assert.ErrorIs(t, err, ErrBidTooLow)
	})
}

func TestBuyNow(t *testing.T) {
	withBuyNow := func() Domain {
		d := activeDomain(1, 100)
		bn := 1000.0
		d.BuyNowPrice = &bn
		return d
	}

	t.Run("closes the listing at the fixed price", func(t *testing.T) {
		_, rec, err := BuyNow([]Domain{withBuyNow()}, 1, "carol", testNow)
		require.NoError(t, err)

		assert.Equal(t, StatusSold, rec.Status)
		assert.Equal(t, "carol", rec.CurrentBidder)
		require.NotNil(t, rec.FinalPrice)
		assert.Equal(t, 1000.0, *rec.FinalPrice)
		require.NotNil(t, rec.PurchaseDate)
		assert.Equal(t, testNow, *rec.PurchaseDate)
		assert.True(t, rec.Sold())
	})

	t.Run("is terminal", func(t *testing.T) {
		next, _, err := BuyNow([]Domain{withBuyNow()}, 1, "carol", testNow)
		require.NoError(t, err)

		_, _, err = PlaceBid(next, 1, 2000, "bob", testNow)
		assert.ErrorIs(t, err, ErrAuctionEnded)
		_, _, err = BuyNow(next, 1, "bob", testNow)
		assert.ErrorIs(t, err, ErrAuctionEnded)
	})

	t.Run("fails without a buy-now price", func(t *testing.T) {
		_, _, err := BuyNow([]Domain{activeDomain(1, 100)}, 1, "carol", testNow)
		assert.ErrorIs(t, err, ErrNoBuyNowPrice)
	})

	t.Run("fails on an expired listing", func(t *testing.T) {
		d := withBuyNow()
		d.EndTime = testNow.Add(-time.Minute)
		_, _, err := BuyNow([]Domain{d}, 1, "carol", testNow)
		assert.ErrorIs(t, err, ErrAuctionEnded)
	})
}

func TestAdminTransitions(t *testing.T) {
	admin := Profile{Username: "root", Role: RoleAdmin}
	user := Profile{Username: "bob", Role: RoleUser}

	t.Run("feature toggles and requires admin", func(t *testing.T) {
		_, rec, err := ToggleFeatured([]Domain{activeDomain(1, 100)}, 1, admin)
		require.NoError(t, err)
		assert.True(t, rec.Featured)

		_, rec, err = ToggleFeatured([]Domain{rec}, 1, admin)
		require.NoError(t, err)
		assert.False(t, rec.Featured)

		_, _, err = ToggleFeatured([]Domain{activeDomain(1, 100)}, 1, user)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("delete removes any record and requires admin", func(t *testing.T) {
		next, _, err := Delete([]Domain{activeDomain(1, 100), activeDomain(2, 60)}, 1, admin)
		require.NoError(t, err)
		require.Len(t, next, 1)
		assert.Equal(t, int64(2), next[0].ID)

		_, _, err = Delete([]Domain{activeDomain(1, 100)}, 1, user)
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestSettleExpired(t *testing.T) {
	expiredWithBids := func() Domain {
		d := activeDomain(1, 150)
		d.EndTime = testNow.Add(-time.Minute)
		d.CurrentBidder = "bob"
		d.BidHistory = []Bid{{Bidder: "bob", Amount: 150, Timestamp: testNow.Add(-2 * time.Minute)}}
		return d
	}

	t.Run("settles an expired auction with bids at the winning amount", func(t *testing.T) {
		out, ok := SettleExpired(expiredWithBids(), testNow)
		require.True(t, ok)
		assert.Equal(t, StatusSold, out.Status)
		require.NotNil(t, out.FinalPrice)
		assert.Equal(t, 150.0, *out.FinalPrice)
		assert.True(t, out.Sold())
	})

	t.Run("is idempotent", func(t *testing.T) {
		out, ok := SettleExpired(expiredWithBids(), testNow)
		require.True(t, ok)
		_, ok = SettleExpired(out, testNow)
		assert.False(t, ok)
	})

	t.Run("skips running, unbid and pending records", func(t *testing.T) {
		_, ok := SettleExpired(activeDomain(1, 100), testNow)
		assert.False(t, ok, "still running")

		unbid := activeDomain(1, 100)
		unbid.EndTime = testNow.Add(-time.Minute)
		_, ok = SettleExpired(unbid, testNow)
		assert.False(t, ok, "no bids")

		pending := Domain{ID: 1, Status: StatusPending, EndTime: testNow.Add(-time.Minute)}
		_, ok = SettleExpired(pending, testNow)
		assert.False(t, ok, "pending")
	})
}

func TestValidDomainName(t *testing.T) {
	valid := []string{"example.com", "a.io", "sub.domain.co.uk", "x-y.dev", "123.net"}
	for _, name := range valid {
		assert.True(t, ValidDomainName(name), name)
	}
	invalid := []string{"example", ".com", "ex..com", "-x.com", "x-.com", "x.c", "x.com-"}
	for _, name := range invalid {
		assert.False(t, ValidDomainName(name), name)
	}
}
