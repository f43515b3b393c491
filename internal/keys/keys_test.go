package keys

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBetAddressDeterministic(t *testing.T) {
	a1, bump1, err := BetAddress(42)
	require.NoError(t, err)
	a2, bump2, err := BetAddress(42)
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.Equal(t, bump1, bump2)
	assert.False(t, a1.IsZero())
}

func TestBetAddressDistinctPerID(t *testing.T) {
	a1, _, err := BetAddress(1)
	require.NoError(t, err)
	a2, _, err := BetAddress(2)
	require.NoError(t, err)

	assert.NotEqual(t, a1, a2)
}

func TestVoteAddressBindsBetAndUser(t *testing.T) {
	user1 := solana.NewWallet().PublicKey()
	user2 := solana.NewWallet().PublicKey()

	sameUserSameBet1, _, err := VoteAddress(7, user1)
	require.NoError(t, err)
	sameUserSameBet2, _, err := VoteAddress(7, user1)
	require.NoError(t, err)
	otherUser, _, err := VoteAddress(7, user2)
	require.NoError(t, err)
	otherBet, _, err := VoteAddress(8, user1)
	require.NoError(t, err)

	assert.Equal(t, sameUserSameBet1, sameUserSameBet2)
	assert.NotEqual(t, sameUserSameBet1, otherUser)
	assert.NotEqual(t, sameUserSameBet1, otherBet)
}

func TestConfigAddressSingleton(t *testing.T) {
	a1, _, err := ConfigAddress()
	require.NoError(t, err)
	a2, _, err := ConfigAddress()
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
}

func TestEscrowAddressPerBetAndMint(t *testing.T) {
	bet1, _, err := BetAddress(1)
	require.NoError(t, err)
	bet2, _, err := BetAddress(2)
	require.NoError(t, err)
	mint := solana.NewWallet().PublicKey()

	e1, err := EscrowAddress(bet1, mint)
	require.NoError(t, err)
	e1again, err := EscrowAddress(bet1, mint)
	require.NoError(t, err)
	e2, err := EscrowAddress(bet2, mint)
	require.NoError(t, err)

	assert.Equal(t, e1, e1again)
	assert.NotEqual(t, e1, e2)
}
