package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// ProtocolConfig is the singleton protocol configuration: the admin authority
// allowed to initialize the protocol and resolve any bet, and the one token
// mint every escrow and stake must use. Exactly one exists per deployment.
type ProtocolConfig struct {
	Address       solana.PublicKey `json:"address"`
	Admin         solana.PublicKey `json:"admin"`
	AcceptedMint  solana.PublicKey `json:"accepted_mint"`
	LayoutVersion uint8            `json:"-"`
	CreatedAt     time.Time        `json:"created_at"`
}

// TokenAccount is a balance-holding account in the simulated token ledger.
// Escrow accounts are token accounts owned by the protocol and logically
// owned by their bet.
type TokenAccount struct {
	Address   solana.PublicKey `json:"address"`
	Owner     solana.PublicKey `json:"owner"`
	Mint      solana.PublicKey `json:"mint"`
	Balance   uint64           `json:"balance"`
	CreatedAt time.Time        `json:"created_at"`
}
