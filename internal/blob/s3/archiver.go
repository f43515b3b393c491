package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// multipartThreshold is the payload size above which archives are uploaded
// via multipart instead of a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// ---------------------------------------------------------------------------
// Narrow store interfaces required by the archiver. The Postgres stores
// satisfy them implicitly.
// ---------------------------------------------------------------------------

// EventArchiveStore provides read and prune access to the event log.
type EventArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Event, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BetArchiveStore provides read access to settled bets.
type BetArchiveStore interface {
	ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Bet, error)
}

// Archiver implements domain.Archiver: it serializes old records to JSONL
// and uploads them to object storage, partitioned by the cutoff's year-month.
type Archiver struct {
	writer domain.BlobWriter
	events EventArchiveStore
	bets   BetArchiveStore
	logger *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, events EventArchiveStore, bets BetArchiveStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		events: events,
		bets:   bets,
		logger: logger,
	}
}

// eventPageSize bounds how many events one archive pass loads into memory.
const eventPageSize = 50_000

// ArchiveEvents uploads all events older than the cutoff to
// archive/events/YYYY-MM.jsonl, then prunes them from the event log. The
// upload happens before the delete so a failed upload loses nothing.
func (a *Archiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	events, err := a.events.ListBefore(ctx, before, eventPageSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events marshal: %w", err)
	}

	path := archivePath("events", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive events upload: %w", err)
	}

	deleted, err := a.events.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events prune: %w", err)
	}

	a.logger.Info("events archived", "path", path, "count", len(events), "pruned", deleted)
	return int64(len(events)), nil
}

// ArchiveSettledBets uploads resolved bets older than the cutoff to
// archive/settled_bets/YYYY-MM.jsonl. Bet rows stay in the store; they are
// protocol state, the archive is a copy.
func (a *Archiver) ArchiveSettledBets(ctx context.Context, before time.Time) (int64, error) {
	bets, err := a.bets.ListResolvedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled bets query: %w", err)
	}
	if len(bets) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(bets)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive settled bets marshal: %w", err)
	}

	path := archivePath("settled_bets", before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive settled bets upload: %w", err)
	}

	a.logger.Info("settled bets archived", "path", path, "count", len(bets))
	return int64(len(bets)), nil
}

func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if len(buf) >= multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/events/2026-09.jsonl
//	archive/settled_bets/2026-09.jsonl
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
var _ domain.Archiver = (*Archiver)(nil)
