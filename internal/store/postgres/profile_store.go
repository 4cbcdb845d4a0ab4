package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kovacsd/domainbid/internal/domain"
)

// ProfileStore implements domain.ProfileStore using PostgreSQL.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a ProfileStore backed by the given connection pool.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

const profileColumns = `id, username, email, role, password_hash, created_at`

// FetchAll returns every profile row.
func (s *ProfileStore) FetchAll(ctx context.Context) ([]domain.Profile, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch profiles: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan profile: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: fetch profiles: %w", err)
	}
	return profiles, nil
}

// GetByUsername looks up one profile, case-insensitively.
func (s *ProfileStore) GetByUsername(ctx context.Context, username string) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE LOWER(username) = LOWER($1)`,
		username,
	)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: get profile %q: %w", username, err)
	}
	return p, nil
}

// Upsert inserts or updates a profile keyed by id.
func (s *ProfileStore) Upsert(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, username, email, role, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			username      = EXCLUDED.username,
			email         = EXCLUDED.email,
			role          = EXCLUDED.role,
			password_hash = EXCLUDED.password_hash
		RETURNING `+profileColumns,
		p.ID, p.Username, p.Email, string(p.Role), nullString(p.PasswordHash), p.CreatedAt,
	)

	out, err := scanProfile(row)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("postgres: upsert profile %q: %w", p.Username, err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (domain.Profile, error) {
	var (
		p     domain.Profile
		role  string
		email *string
		hash  *string
	)

	if err := row.Scan(&p.ID, &p.Username, &email, &role, &hash, &p.CreatedAt); err != nil {
		return domain.Profile{}, err
	}

	p.Role = domain.Role(role)
	if email != nil {
		p.Email = *email
	}
	if hash != nil {
		p.PasswordHash = *hash
	}
	return p, nil
}

// Compile-time interface check.
var _ domain.ProfileStore = (*ProfileStore)(nil)
