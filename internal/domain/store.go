package domain

import "context"

// DomainStore is the durable backend for auction listings. Implemented over
// a direct Postgres DSN and over the marketplace's REST data API; the core
// never cares which.
type DomainStore interface {
	FetchAll(ctx context.Context) ([]Domain, error)
	// Insert persists a new listing; the backend assigns ID and CreatedAt.
	Insert(ctx context.Context, d Domain) (Domain, error)
	Update(ctx context.Context, d Domain) (Domain, error)
	UpsertBatch(ctx context.Context, domains []Domain) error
	Delete(ctx context.Context, id int64) error
}

// ProfileStore is the durable backend for identities.
type ProfileStore interface {
	FetchAll(ctx context.Context) ([]Profile, error)
	GetByUsername(ctx context.Context, username string) (Profile, error)
	Upsert(ctx context.Context, p Profile) (Profile, error)
}

// Credentials is the input to sign-in and sign-up.
type Credentials struct {
	Username string
	Email    string
	Password string
}

// Authenticator is the identity collaborator. Opaque to the core beyond the
// Profile shape it produces.
type Authenticator interface {
	SignIn(ctx context.Context, creds Credentials) (Profile, error)
	SignUp(ctx context.Context, creds Credentials) (Profile, error)
	SignOut(ctx context.Context) error
}
