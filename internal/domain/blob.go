package domain

import (
	"context"
	"io"
	"time"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports historical engine records to blob storage as JSONL.
// Archival never deletes from the primary store; the audit trail is
// retained indefinitely.
type Archiver interface {
	ArchiveTrades(ctx context.Context, before time.Time) (int64, error)
	ArchiveOracleRequests(ctx context.Context, before time.Time) (int64, error)
}
