package domain

import (
	"context"
	"io"
)

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver writes settled auction records to cold storage.
type Archiver interface {
	ArchiveSettled(ctx context.Context, domains []Domain) error
}
