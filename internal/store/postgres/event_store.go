package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. Payloads are
// stored as JSONB and come back as json.RawMessage.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates an EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

// Insert appends one event to the log.
func (s *EventStore) Insert(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal event %s payload: %w", ev.ID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (id, kind, bet_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, string(ev.Kind), int64(ev.BetID), payload, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert event %s: %w", ev.ID, err)
	}
	return nil
}

// ListByBet returns a bet's events, oldest first.
func (s *EventStore) ListByBet(ctx context.Context, betID uint64, opts domain.ListOpts) ([]domain.Event, error) {
	query := `SELECT id, kind, bet_id, payload, created_at
		FROM events WHERE bet_id = $1 ORDER BY created_at ASC`
	args := []any{int64(betID)}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	return s.query(ctx, query, args...)
}

// ListBefore returns up to limit events created before the cutoff, oldest
// first. The archiver pages through the log with it.
func (s *EventStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.Event, error) {
	return s.query(ctx, `
		SELECT id, kind, bet_id, payload, created_at
		FROM events WHERE created_at < $1
		ORDER BY created_at ASC LIMIT $2`,
		before, limit)
}

// DeleteBefore removes events created before the cutoff and reports how many
// rows went away.
func (s *EventStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM events WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete events before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func (s *EventStore) query(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var (
			ev      domain.Event
			kind    string
			betID   int64
			payload json.RawMessage
		)
		if err := rows.Scan(&ev.ID, &kind, &betID, &payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		ev.Kind = domain.EventKind(kind)
		ev.BetID = uint64(betID)
		ev.Payload = payload
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}
