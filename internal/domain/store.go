package domain

import (
	"context"
	"io"
	"time"

	"github.com/gagliardetto/solana-go"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// BetStore reads bet records.
type BetStore interface {
	GetByID(ctx context.Context, id uint64) (Bet, error)
	GetByAddress(ctx context.Context, addr solana.PublicKey) (Bet, error)
	List(ctx context.Context, opts ListOpts) ([]Bet, error)
	ListUnresolved(ctx context.Context, opts ListOpts) ([]Bet, error)
	Count(ctx context.Context) (int64, error)
}

// VoteStore reads vote records.
type VoteStore interface {
	Get(ctx context.Context, betID uint64, user solana.PublicKey) (Vote, error)
	ListByBet(ctx context.Context, betID uint64, opts ListOpts) ([]Vote, error)
	ListByUser(ctx context.Context, user solana.PublicKey, opts ListOpts) ([]Vote, error)
}

// ConfigStore reads the singleton protocol config.
type ConfigStore interface {
	Get(ctx context.Context) (ProtocolConfig, error)
}

// EventStore persists the append-only protocol event log.
type EventStore interface {
	Insert(ctx context.Context, ev Event) error
	ListByBet(ctx context.Context, betID uint64, opts ListOpts) ([]Event, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]Event, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// BetCache provides fast bet lookups in front of the authoritative store.
type BetCache interface {
	Set(ctx context.Context, bet Bet) error
	Get(ctx context.Context, id uint64) (Bet, error)
	Invalidate(ctx context.Context, id uint64) error
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams for event fanout.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// Archiver moves old data from the database to cold storage.
type Archiver interface {
	ArchiveEvents(ctx context.Context, before time.Time) (int64, error)
	ArchiveSettledBets(ctx context.Context, before time.Time) (int64, error)
}
