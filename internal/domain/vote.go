package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// Vote is one user's stake in one bet. A user stakes at most once per bet;
// side and amount are fixed at creation and Claimed transitions false -> true
// exactly once. Field order follows the on-chain account layout.
type Vote struct {
	Address       solana.PublicKey `json:"address"`
	User          solana.PublicKey `json:"user"`
	BetID         uint64           `json:"bet_id"`
	Side          bool             `json:"side"` // true = YES
	Amount        uint64           `json:"amount"`
	Claimed       bool             `json:"claimed"`
	LayoutVersion uint8            `json:"-"`
	CreatedAt     time.Time        `json:"created_at"`
	ClaimedAt     *time.Time       `json:"claimed_at,omitempty"`
}

// Won reports whether this vote is on the winning side of the given outcome.
func (v Vote) Won(outcome Outcome) bool {
	return outcome.Resolved() && v.Side == outcome.Yes()
}
