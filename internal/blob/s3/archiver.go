package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/SynergiaOS/solana-hft-ninja/internal/domain"
)

// Archiver periodically snapshots the fill journal and audit log to
// S3-compatible storage as newline-delimited JSON. Records are not deleted
// from the primary store; archives are an independent copy for post-trade
// analysis.
type Archiver struct {
	writer   domain.BlobWriter
	fills    domain.FillStore
	audit    domain.AuditStore
	interval time.Duration
	logger   *slog.Logger

	lastRun time.Time
}

// NewArchiver creates an Archiver that snapshots every interval.
func NewArchiver(writer domain.BlobWriter, fills domain.FillStore, audit domain.AuditStore, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:   writer,
		fills:    fills,
		audit:    audit,
		interval: interval,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Run archives on a fixed interval until ctx is cancelled. A failed snapshot
// is logged and retried on the next tick; the window start is only advanced
// after a successful upload.
func (a *Archiver) Run(ctx context.Context) error {
	a.lastRun = time.Now().UTC().Add(-a.interval)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := time.Now().UTC()
			if err := a.snapshot(ctx, a.lastRun, now); err != nil {
				a.logger.Error("archive snapshot failed", slog.String("error", err.Error()))
				continue
			}
			a.lastRun = now
		}
	}
}

func (a *Archiver) snapshot(ctx context.Context, since, now time.Time) error {
	if err := a.archiveFills(ctx, since, now); err != nil {
		return err
	}
	return a.archiveAudit(ctx, since, now)
}

func (a *Archiver) archiveFills(ctx context.Context, since, now time.Time) error {
	fills, err := a.fills.ListSince(ctx, since, 10000)
	if err != nil {
		return fmt.Errorf("s3blob: archive fills query: %w", err)
	}
	if len(fills) == 0 {
		return nil
	}

	buf, err := marshalJSONL(fills)
	if err != nil {
		return fmt.Errorf("s3blob: archive fills marshal: %w", err)
	}

	path := archivePath("fills", now)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive fills upload: %w", err)
	}
	a.logger.Info("archived fills", slog.String("path", path), slog.Int("count", len(fills)))
	return nil
}

func (a *Archiver) archiveAudit(ctx context.Context, since, now time.Time) error {
	entries, err := a.audit.ListSince(ctx, since, 10000)
	if err != nil {
		return fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	buf, err := marshalJSONL(entries)
	if err != nil {
		return fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", now)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive audit upload: %w", err)
	}
	a.logger.Info("archived audit log", slog.String("path", path), slog.Int("count", len(entries)))
	return nil
}

// archivePath builds the S3 key for an archive file, partitioned by day and
// stamped with the snapshot time.
//
//	fills/2025/01/15/093000.jsonl
//	audit/2025/01/15/093000.jsonl
func archivePath(kind string, at time.Time) string {
	return fmt.Sprintf("%s/%s/%s.jsonl", kind, at.Format("2006/01/02"), at.Format("150405"))
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
