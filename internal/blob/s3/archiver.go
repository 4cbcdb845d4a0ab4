package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kovacsd/domainbid/internal/domain"
	"github.com/kovacsd/domainbid/internal/platform/marketplace"
)

// Archiver writes settled auction records to cold storage as JSONL, one
// object per settlement pass, keyed by date.
type Archiver struct {
	writer domain.BlobWriter
	prefix string
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing under the given key prefix
// (default "settlements").
func NewArchiver(writer domain.BlobWriter, prefix string, logger *slog.Logger) *Archiver {
	if prefix == "" {
		prefix = "settlements"
	}
	return &Archiver{
		writer: writer,
		prefix: prefix,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSettled uploads the given settled records. Records are stored in
// their wire representation so the archive is readable without this code.
func (a *Archiver) ArchiveSettled(ctx context.Context, domains []domain.Domain) error {
	if len(domains) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range domains {
		if err := enc.Encode(marketplace.FromDomain(d)); err != nil {
			return fmt.Errorf("s3blob: encode settled domain %d: %w", d.ID, err)
		}
	}

	now := time.Now().UTC()
	key := fmt.Sprintf("%s/%s/%s.jsonl", a.prefix, now.Format("2006/01/02"), uuid.New().String())

	if err := a.writer.Put(ctx, key, &buf, "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive settled: %w", err)
	}

	a.logger.InfoContext(ctx, "archived settled auctions",
		slog.Int("count", len(domains)),
		slog.String("key", key),
	)
	return nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
