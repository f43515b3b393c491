// Package domain defines the core types of the sekadotfun escrow protocol:
// bets, votes, the protocol config, token accounts, events, and the
// interfaces implemented by the storage and cache layers.
package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Outcome is the set-once resolution state of a bet. It is a tagged variant
// rather than a nullable bool so the one-way Unresolved -> Yes/No transition
// is explicit in the type system.
type Outcome uint8

const (
	OutcomeUnresolved Outcome = iota
	OutcomeYes
	OutcomeNo
)

// OutcomeFromBool maps a resolution value onto the variant.
func OutcomeFromBool(yes bool) Outcome {
	if yes {
		return OutcomeYes
	}
	return OutcomeNo
}

// Resolved reports whether the outcome has been set.
func (o Outcome) Resolved() bool {
	return o != OutcomeUnresolved
}

// Yes reports whether the resolved outcome is YES. Only meaningful when
// Resolved() is true.
func (o Outcome) Yes() bool {
	return o == OutcomeYes
}

// String returns the wire representation used in JSON responses and events.
func (o Outcome) String() string {
	switch o {
	case OutcomeYes:
		return "yes"
	case OutcomeNo:
		return "no"
	default:
		return "unresolved"
	}
}

// MarshalText implements encoding.TextMarshaler so Outcome renders as its
// string form in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// BetStatus is the derived lifecycle state of a bet. It is not persisted;
// it is computed from the outcome and end time.
type BetStatus string

const (
	BetStatusOpen               BetStatus = "open"
	BetStatusAwaitingResolution BetStatus = "awaiting_resolution"
	BetStatusResolved           BetStatus = "resolved"
)

// Bet is the authoritative record for one binary prediction market.
// Field order follows the on-chain account layout (creator, id, totals,
// outcome, end time, escrow, layout version).
type Bet struct {
	Address        solana.PublicKey `json:"address"`
	Creator        solana.PublicKey `json:"creator"`
	ID             uint64           `json:"bet_id"`
	TotalYesStaked uint64           `json:"total_yes_staked"`
	TotalNoStaked  uint64           `json:"total_no_staked"`
	Outcome        Outcome          `json:"outcome"`
	EndTime        int64            `json:"end_time"` // unix seconds
	Escrow         solana.PublicKey `json:"escrow"`
	LayoutVersion  uint8            `json:"-"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Status derives the lifecycle state at the given instant.
func (b Bet) Status(now time.Time) BetStatus {
	if b.Outcome.Resolved() {
		return BetStatusResolved
	}
	if now.Unix() > b.EndTime {
		return BetStatusAwaitingResolution
	}
	return BetStatusOpen
}

// Pool returns the total staked on both sides. The engine guarantees the sum
// never overflows (stakes are rejected before totals can wrap).
func (b Bet) Pool() uint64 {
	return b.TotalYesStaked + b.TotalNoStaked
}
