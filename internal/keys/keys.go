// Package keys derives the protocol's deterministic account addresses.
// All parties derive the same addresses from the same inputs; none of the
// derivations require network access or randomness.
package keys

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ProgramID is the escrow program's address. All PDAs are derived against it.
var ProgramID = solana.MustPublicKeyFromBase58("4YmcnLt2J7ziAXpMF7AyNKNkuuiMoQ8bshyhkn6TrNvP")

// Seed prefixes for each account class.
var (
	seedBet    = []byte("bet")
	seedVote   = []byte("vote")
	seedConfig = []byte("config")
)

func betIDSeed(betID uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], betID)
	return b[:]
}

// BetAddress derives the bet account address for a bet id.
func BetAddress(betID uint64) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{seedBet, betIDSeed(betID)}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("keys: derive bet %d: %w", betID, err)
	}
	return addr, bump, nil
}

// VoteAddress derives the vote account address for a (bet, user) pair. One
// address per pair enforces the single-stake-per-user rule.
func VoteAddress(betID uint64, user solana.PublicKey) (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{seedVote, betIDSeed(betID), user.Bytes()}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("keys: derive vote %d/%s: %w", betID, user, err)
	}
	return addr, bump, nil
}

// ConfigAddress derives the singleton protocol config address.
func ConfigAddress() (solana.PublicKey, uint8, error) {
	addr, bump, err := solana.FindProgramAddress([][]byte{seedConfig}, ProgramID)
	if err != nil {
		return solana.PublicKey{}, 0, fmt.Errorf("keys: derive config: %w", err)
	}
	return addr, bump, nil
}

// TokenAddress derives the associated token address holding owner's balance
// of mint.
func TokenAddress(owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("keys: derive token address for %s: %w", owner, err)
	}
	return addr, nil
}

// EscrowAddress derives a bet's escrow token account: the associated token
// address of the bet account for the accepted mint.
func EscrowAddress(bet, mint solana.PublicKey) (solana.PublicKey, error) {
	return TokenAddress(bet, mint)
}
