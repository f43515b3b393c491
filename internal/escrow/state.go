// Package escrow implements the protocol engine: the five operations over
// bets, votes, the protocol config, and the simulated token ledger. All
// account mutations for one operation happen inside one State transaction;
// any error discards the whole operation.
package escrow

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// State is the authoritative account store. RunInTx runs fn inside a single
// transaction: every read inside fn sees a consistent snapshot, writes become
// visible only if fn returns nil, and concurrent transactions touching the
// same bet are serialized.
type State interface {
	RunInTx(ctx context.Context, fn func(tx StateTx) error) error
}

// StateTx is the account store surface available inside one transaction.
// Lookups return domain.ErrNotFound for missing accounts; inserts return
// domain.ErrAlreadyExists for occupied addresses.
type StateTx interface {
	Config(ctx context.Context) (domain.ProtocolConfig, error)
	InitConfig(ctx context.Context, cfg domain.ProtocolConfig) error

	Bet(ctx context.Context, betID uint64) (domain.Bet, error)
	InsertBet(ctx context.Context, bet domain.Bet) error
	UpdateBet(ctx context.Context, bet domain.Bet) error

	Vote(ctx context.Context, betID uint64, user solana.PublicKey) (domain.Vote, error)
	InsertVote(ctx context.Context, vote domain.Vote) error
	UpdateVote(ctx context.Context, vote domain.Vote) error

	TokenAccount(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error)
	CreateTokenAccount(ctx context.Context, acct domain.TokenAccount) error
	// Credit adds freshly issued tokens to an account. Only the faucet uses it.
	Credit(ctx context.Context, addr solana.PublicKey, amount uint64) error
	// Transfer moves tokens between two accounts of the same mint. It fails
	// with domain.ErrInsufficientFunds when the source balance is too small.
	Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error
}

// EventSink receives protocol events after their transaction has committed.
type EventSink interface {
	Emit(ctx context.Context, ev domain.Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(ctx context.Context, ev domain.Event)

// Emit implements EventSink.
func (f EventSinkFunc) Emit(ctx context.Context, ev domain.Event) { f(ctx, ev) }
