package domain

import (
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
)

// EventKind names the four protocol events.
type EventKind string

const (
	EventBetCreated    EventKind = "bet_created"
	EventBetPlaced     EventKind = "bet_placed"
	EventBetResolved   EventKind = "bet_resolved"
	EventRewardClaimed EventKind = "reward_claimed"
)

// Pub/sub channels and the durable stream used for event fanout.
const (
	ChannelBets   = "ch:bets"   // bet_created, bet_resolved
	ChannelStakes = "ch:stakes" // bet_placed
	ChannelClaims = "ch:claims" // reward_claimed
	StreamEvents  = "stream:events"
)

// ChannelForBet names the per-bet pub/sub channel carrying every event of
// one bet.
func ChannelForBet(betID uint64) string {
	return "ch:bet:" + strconv.FormatUint(betID, 10)
}

// Event is an append-only protocol event. Payload is one of the *Event
// structs below, encoded as JSON on every surface (event log, pub/sub,
// streams, archives).
type Event struct {
	ID        string    `json:"id"` // UUID for dedup
	Kind      EventKind `json:"kind"`
	BetID     uint64    `json:"bet_id"`
	Payload   any       `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// BetCreatedEvent is emitted once per successful create_market.
type BetCreatedEvent struct {
	BetID   uint64           `json:"bet_id"`
	Creator solana.PublicKey `json:"creator"`
	EndTime int64            `json:"end_time"`
}

// BetPlacedEvent is emitted once per successful stake.
type BetPlacedEvent struct {
	BetID  uint64           `json:"bet_id"`
	User   solana.PublicKey `json:"user"`
	Side   bool             `json:"side"`
	Amount uint64           `json:"amount"`
}

// BetResolvedEvent is emitted once per bet, on resolution.
type BetResolvedEvent struct {
	BetID   uint64  `json:"bet_id"`
	Outcome Outcome `json:"outcome"`
}

// RewardClaimedEvent is emitted once per winning vote, on claim.
type RewardClaimedEvent struct {
	BetID  uint64           `json:"bet_id"`
	User   solana.PublicKey `json:"user"`
	Amount uint64           `json:"amount"` // full payout: stake + share
}
