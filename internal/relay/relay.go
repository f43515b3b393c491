// Package relay fans engine events out to the durable event log, the Redis
// signal bus, and the bet cache. It sits between the engine and every
// consumer so the engine never blocks on fanout.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// queueSize bounds the in-flight event buffer. The engine drops into the
// error log instead of blocking when the relay falls this far behind.
const queueSize = 1024

// Relay consumes protocol events and distributes them. It implements
// escrow.EventSink.
type Relay struct {
	events domain.EventStore
	bus    domain.SignalBus
	cache  domain.BetCache
	bets   domain.BetStore
	logger *slog.Logger
	queue  chan domain.Event
}

// New creates a Relay with all required dependencies. bus and cache may be
// nil when Redis is not configured; fanout then stops at the event log.
func New(events domain.EventStore, bus domain.SignalBus, cache domain.BetCache, bets domain.BetStore, logger *slog.Logger) *Relay {
	return &Relay{
		events: events,
		bus:    bus,
		cache:  cache,
		bets:   bets,
		logger: logger,
		queue:  make(chan domain.Event, queueSize),
	}
}

// Emit implements escrow.EventSink. It never blocks the caller: when the
// queue is full the event is logged and dropped from fanout (the operation
// itself has already committed).
func (r *Relay) Emit(_ context.Context, ev domain.Event) {
	select {
	case r.queue <- ev:
	default:
		r.logger.Error("relay queue full, dropping event",
			"event_id", ev.ID, "kind", string(ev.Kind), "bet_id", ev.BetID)
	}
}

// Run drains the queue until the context is cancelled. It should be called
// in a goroutine.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.queue:
			r.dispatch(ctx, ev)
		}
	}
}

func (r *Relay) dispatch(ctx context.Context, ev domain.Event) {
	if err := r.events.Insert(ctx, ev); err != nil {
		r.logger.Error("relay: persist event", "event_id", ev.ID, "error", err)
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		r.logger.Error("relay: marshal event", "event_id", ev.ID, "error", err)
		return
	}

	if r.bus != nil {
		for _, ch := range channelsFor(ev) {
			if err := r.bus.Publish(ctx, ch, payload); err != nil {
				r.logger.Error("relay: publish", "channel", ch, "error", err)
			}
		}
		if err := r.bus.StreamAppend(ctx, domain.StreamEvents, payload); err != nil {
			r.logger.Error("relay: stream append", "error", err)
		}
	}

	r.refreshCache(ctx, ev.BetID)
}

// refreshCache re-reads the bet from the authoritative store so cached reads
// reflect the event that just happened.
func (r *Relay) refreshCache(ctx context.Context, betID uint64) {
	if r.cache == nil {
		return
	}
	bet, err := r.bets.GetByID(ctx, betID)
	if err != nil {
		r.logger.Warn("relay: refresh cache read", "bet_id", betID, "error", err)
		return
	}
	if err := r.cache.Set(ctx, bet); err != nil {
		r.logger.Warn("relay: refresh cache write", "bet_id", betID, "error", err)
	}
}

func channelsFor(ev domain.Event) []string {
	channels := []string{domain.ChannelForBet(ev.BetID)}
	switch ev.Kind {
	case domain.EventBetCreated, domain.EventBetResolved:
		channels = append(channels, domain.ChannelBets)
	case domain.EventBetPlaced:
		channels = append(channels, domain.ChannelStakes)
	case domain.EventRewardClaimed:
		channels = append(channels, domain.ChannelClaims)
	}
	return channels
}
