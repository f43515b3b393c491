package crypto

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerifyDigest(t *testing.T) {
	wallet := solana.NewWallet()
	signer, err := NewSigner(wallet.PrivateKey.String())
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), signer.PublicKey())

	digest := ApplyBetDigest(7, wallet.PublicKey(), true, 1_000)
	sig, err := signer.Sign(digest)
	require.NoError(t, err)

	assert.True(t, Verify(wallet.PublicKey(), digest, sig))

	// Wrong key fails.
	other := solana.NewWallet()
	assert.False(t, Verify(other.PublicKey(), digest, sig))

	// Tampered digest fails.
	tampered := ApplyBetDigest(7, wallet.PublicKey(), true, 1_001)
	assert.False(t, Verify(wallet.PublicKey(), tampered, sig))
}

func TestDigestsAreDomainSeparated(t *testing.T) {
	user := solana.NewWallet().PublicKey()

	claim := ClaimRewardDigest(1, user)
	// create_bet with the same leading fields must not collide with claim.
	create := CreateBetDigest(1, 0, user)

	assert.NotEqual(t, claim, create)
	assert.Len(t, claim, 32)
}

func TestDigestDeterminism(t *testing.T) {
	admin := solana.NewWallet().PublicKey()
	d1 := FinishBetDigest(42, true, admin)
	d2 := FinishBetDigest(42, true, admin)
	d3 := FinishBetDigest(42, false, admin)

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
}

func TestKeyEncryptRoundTrip(t *testing.T) {
	wallet := solana.NewWallet()
	blob, err := EncryptKey(wallet.PrivateKey.String(), "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, wallet.PrivateKey.String(), got)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestAdminAuthRoundTrip(t *testing.T) {
	auth := &AdminAuth{Key: "admin-1", Secret: "s3cret"}
	now := time.Unix(1_700_000_000, 0)

	h := auth.HeadersAt("POST", "/api/admin/faucet", `{"amount":5}`, now.Unix())
	err := auth.Authenticate(
		h["X-SEKAD-API-KEY"], h["X-SEKAD-TIMESTAMP"], h["X-SEKAD-SIGNATURE"],
		"POST", "/api/admin/faucet", `{"amount":5}`, now, 30*time.Second,
	)
	assert.NoError(t, err)

	// Stale timestamp rejected.
	err = auth.Authenticate(
		h["X-SEKAD-API-KEY"], h["X-SEKAD-TIMESTAMP"], h["X-SEKAD-SIGNATURE"],
		"POST", "/api/admin/faucet", `{"amount":5}`, now.Add(5*time.Minute), 30*time.Second,
	)
	assert.Error(t, err)

	// Body tamper rejected.
	err = auth.Authenticate(
		h["X-SEKAD-API-KEY"], h["X-SEKAD-TIMESTAMP"], h["X-SEKAD-SIGNATURE"],
		"POST", "/api/admin/faucet", `{"amount":9}`, now, 30*time.Second,
	)
	assert.Error(t, err)
}
