package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kovacsd/domainbid/internal/domain"
)

// DomainStore implements domain.DomainStore using PostgreSQL.
type DomainStore struct {
	pool *pgxpool.Pool
}

// NewDomainStore creates a DomainStore backed by the given connection pool.
func NewDomainStore(pool *pgxpool.Pool) *DomainStore {
	return &DomainStore{pool: pool}
}

// bidRow is the JSONB shape of one bid history entry.
type bidRow struct {
	Bidder    string    `json:"bidder"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

const domainColumns = `
	id, name, current_bid, end_time, bid_history, status,
	current_bidder, bid_timestamp, buy_now_price, final_price,
	purchase_date, featured, created_at, listed_by, is_fixed_price`

// FetchAll returns every listing, oldest first.
func (s *DomainStore) FetchAll(ctx context.Context) ([]domain.Domain, error) {
	rows, err := s.pool.Query(ctx, `SELECT`+domainColumns+` FROM domains ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch domains: %w", err)
	}
	defer rows.Close()

	var domains []domain.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan domain: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch domains: %w", err)
	}
	return domains, nil
}

// Insert persists a new listing; the database assigns id and created_at.
func (s *DomainStore) Insert(ctx context.Context, d domain.Domain) (domain.Domain, error) {
	history, err := marshalHistory(d.BidHistory)
	if err != nil {
		return domain.Domain{}, fmt.Errorf("postgres: insert domain %q: %w", d.Name, err)
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO domains (
			name, current_bid, end_time, bid_history, status,
			current_bidder, bid_timestamp, buy_now_price, final_price,
			purchase_date, featured, listed_by, is_fixed_price
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13
		)
		RETURNING`+domainColumns,
		d.Name, d.CurrentBid, d.EndTime, history, string(d.Status),
		nullString(d.CurrentBidder), d.BidTimestamp, d.BuyNowPrice, d.FinalPrice,
		d.PurchaseDate, d.Featured, d.ListedBy, d.IsFixedPrice,
	)

	inserted, err := scanDomain(row)
	if err != nil {
		return domain.Domain{}, fmt.Errorf("postgres: insert domain %q: %w", d.Name, err)
	}
	return inserted, nil
}

// Update replaces the mutable fields of an existing listing.
func (s *DomainStore) Update(ctx context.Context, d domain.Domain) (domain.Domain, error) {
	history, err := marshalHistory(d.BidHistory)
	if err != nil {
		return domain.Domain{}, fmt.Errorf("postgres: update domain %d: %w", d.ID, err)
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE domains SET
			name           = $2,
			current_bid    = $3,
			end_time       = $4,
			bid_history    = $5,
			status         = $6,
			current_bidder = $7,
			bid_timestamp  = $8,
			buy_now_price  = $9,
			final_price    = $10,
			purchase_date  = $11,
			featured       = $12,
			is_fixed_price = $13
		WHERE id = $1
		RETURNING`+domainColumns,
		d.ID,
		d.Name, d.CurrentBid, d.EndTime, history, string(d.Status),
		nullString(d.CurrentBidder), d.BidTimestamp, d.BuyNowPrice, d.FinalPrice,
		d.PurchaseDate, d.Featured, d.IsFixedPrice,
	)

	updated, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Domain{}, domain.ErrNotFound
		}
		return domain.Domain{}, fmt.Errorf("postgres: update domain %d: %w", d.ID, err)
	}
	return updated, nil
}

// UpsertBatch inserts or updates multiple listings in a single batch.
func (s *DomainStore) UpsertBatch(ctx context.Context, domains []domain.Domain) error {
	if len(domains) == 0 {
		return nil
	}

	const query = `
		INSERT INTO domains (
			id, name, current_bid, end_time, bid_history, status,
			current_bidder, bid_timestamp, buy_now_price, final_price,
			purchase_date, featured, created_at, listed_by, is_fixed_price
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15
		)
		ON CONFLICT (id) DO UPDATE SET
			name           = EXCLUDED.name,
			current_bid    = EXCLUDED.current_bid,
			end_time       = EXCLUDED.end_time,
			bid_history    = EXCLUDED.bid_history,
			status         = EXCLUDED.status,
			current_bidder = EXCLUDED.current_bidder,
			bid_timestamp  = EXCLUDED.bid_timestamp,
			buy_now_price  = EXCLUDED.buy_now_price,
			final_price    = EXCLUDED.final_price,
			purchase_date  = EXCLUDED.purchase_date,
			featured       = EXCLUDED.featured,
			is_fixed_price = EXCLUDED.is_fixed_price`

	batch := &pgx.Batch{}
	for _, d := range domains {
		history, err := marshalHistory(d.BidHistory)
		if err != nil {
			return fmt.Errorf("postgres: upsert domain %d: %w", d.ID, err)
		}
		batch.Queue(query,
			d.ID, d.Name, d.CurrentBid, d.EndTime, history, string(d.Status),
			nullString(d.CurrentBidder), d.BidTimestamp, d.BuyNowPrice, d.FinalPrice,
			d.PurchaseDate, d.Featured, d.CreatedAt, d.ListedBy, d.IsFixedPrice,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range domains {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert domain batch item %d: %w", i, err)
		}
	}
	return nil
}

// Delete removes a listing row.
func (s *DomainStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete domain %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// scanDomain scans a single listing row.
func scanDomain(row pgx.Row) (domain.Domain, error) {
	var (
		d             domain.Domain
		history       []byte
		status        string
		currentBidder *string
	)

	err := row.Scan(
		&d.ID, &d.Name, &d.CurrentBid, &d.EndTime, &history, &status,
		&currentBidder, &d.BidTimestamp, &d.BuyNowPrice, &d.FinalPrice,
		&d.PurchaseDate, &d.Featured, &d.CreatedAt, &d.ListedBy, &d.IsFixedPrice,
	)
	if err != nil {
		return domain.Domain{}, err
	}

	d.Status = domain.DomainStatus(status)
	if currentBidder != nil {
		d.CurrentBidder = *currentBidder
	}

	var bids []bidRow
	if len(history) > 0 {
		if err := json.Unmarshal(history, &bids); err != nil {
			return domain.Domain{}, fmt.Errorf("decode bid history: %w", err)
		}
	}
	d.BidHistory = make([]domain.Bid, 0, len(bids))
	for _, b := range bids {
		d.BidHistory = append(d.BidHistory, domain.Bid{
			Bidder:    b.Bidder,
			Amount:    b.Amount,
			Timestamp: b.Timestamp,
		})
	}

	return d, nil
}

func marshalHistory(bids []domain.Bid) ([]byte, error) {
	rows := make([]bidRow, 0, len(bids))
	for _, b := range bids {
		rows = append(rows, bidRow{
			Bidder:    b.Bidder,
			Amount:    b.Amount,
			Timestamp: b.Timestamp,
		})
	}
	return json.Marshal(rows)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time interface check.
var _ domain.DomainStore = (*DomainStore)(nil)
