package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/veritasmkt/veritas/internal/domain"
)

// ArchiveImpl implements domain.Archiver by querying the audit stores for
// cold records, serializing them to JSONL, and uploading the result to S3.
//
// Records are never deleted from the primary store; the archive is a
// long-term export, not a retention mechanism.
type ArchiveImpl struct {
	writer domain.BlobWriter
	trades domain.TradeStore
	oracle domain.OracleRequestStore
	logger *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, trades domain.TradeStore, oracle domain.OracleRequestStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		trades: trades,
		oracle: oracle,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTrades queries all trades executed before the cutoff, serializes
// them to JSONL, and uploads the file to archive/trades/YYYY-MM.jsonl. It
// returns the number of archived records.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	trades, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(trades))
	a.logger.InfoContext(ctx, "trades archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.String("before", before.Format(time.RFC3339)),
	)
	return count, nil
}

// ArchiveOracleRequests queries all oracle requests finalized before the
// cutoff, serializes them to JSONL, and uploads the file to
// archive/oracle_requests/YYYY-MM.jsonl. It returns the number of archived
// records.
func (a *ArchiveImpl) ArchiveOracleRequests(ctx context.Context, before time.Time) (int64, error) {
	reqs, err := a.oracle.ListFinalizedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive oracle requests query: %w", err)
	}
	if len(reqs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(reqs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive oracle requests marshal: %w", err)
	}

	path := archivePath("oracle_requests", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive oracle requests upload: %w", err)
	}

	count := int64(len(reqs))
	a.logger.InfoContext(ctx, "oracle requests archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.String("before", before.Format(time.RFC3339)),
	)
	return count, nil
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/trades/2025-01.jsonl
//	archive/oracle_requests/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
