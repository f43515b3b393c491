package domain

import "errors"

// Protocol errors. The first block mirrors the escrow program's own error
// set; the second covers account/ledger conditions surfaced by the state
// layer. All operations fail closed: any error discards the whole operation.
var (
	ErrInvalidAmount   = errors.New("invalid bet amount")
	ErrAlreadyResolved = errors.New("bet is already resolved")
	ErrBetClosed       = errors.New("bet is closed for staking")
	ErrUnauthorized    = errors.New("unauthorized to resolve bet")
	ErrNotResolved     = errors.New("bet not resolved yet")
	ErrNotWinner       = errors.New("vote is not on the winning side")
	ErrNoWinners       = errors.New("no winners for this outcome")
	ErrMathOverflow    = errors.New("math overflow in pool or payout calculation")
	ErrBetStillOpen    = errors.New("bet not closed yet")
	ErrAlreadyClaimed  = errors.New("reward already claimed")
	ErrInvalidEndTime  = errors.New("end time must be in the future")

	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInsufficientFunds = errors.New("insufficient token balance")
	ErrWrongMint         = errors.New("token account has wrong mint")
	ErrBadSignature      = errors.New("signature verification failed")

	// ErrEscrowUnderfunded indicates the conservation invariant was broken.
	// It is unreachable while the engine is the only writer and must be
	// surfaced loudly, never recovered from silently.
	ErrEscrowUnderfunded = errors.New("escrow underfunded: conservation invariant broken")
)
