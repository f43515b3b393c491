package crypto

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"
)

// --------------------------------------------------------------------------
// Operation domain tags (pre-computed keccak256 of the canonical tag strings).
// Each operation digest starts with its tag so a signature for one operation
// can never be replayed as another.
// --------------------------------------------------------------------------

var (
	createBetTag   = keccak256([]byte("sekad:create_bet:v1"))
	applyBetTag    = keccak256([]byte("sekad:apply_bet:v1"))
	finishBetTag   = keccak256([]byte("sekad:finish_bet:v1"))
	claimRewardTag = keccak256([]byte("sekad:claim_reward:v1"))
	initConfigTag  = keccak256([]byte("sekad:initialize_config:v1"))
)

// CreateBetDigest is the canonical digest a creator signs to open a market.
// Integers are encoded little-endian to match the account seed encoding.
func CreateBetDigest(betID uint64, endTime int64, creator solana.PublicKey) []byte {
	return keccak256(concatBytes(
		createBetTag,
		u64LE(betID),
		i64LE(endTime),
		creator.Bytes(),
	))
}

// ApplyBetDigest is the canonical digest a user signs to stake on a bet.
func ApplyBetDigest(betID uint64, user solana.PublicKey, side bool, amount uint64) []byte {
	return keccak256(concatBytes(
		applyBetTag,
		u64LE(betID),
		user.Bytes(),
		boolByte(side),
		u64LE(amount),
	))
}

// FinishBetDigest is the canonical digest the resolver signs to set a bet's
// outcome. The resolver is the bet's creator or the config admin.
func FinishBetDigest(betID uint64, outcome bool, resolver solana.PublicKey) []byte {
	return keccak256(concatBytes(
		finishBetTag,
		u64LE(betID),
		boolByte(outcome),
		resolver.Bytes(),
	))
}

// ClaimRewardDigest is the canonical digest a winner signs to claim a payout.
func ClaimRewardDigest(betID uint64, user solana.PublicKey) []byte {
	return keccak256(concatBytes(
		claimRewardTag,
		u64LE(betID),
		user.Bytes(),
	))
}

// InitializeConfigDigest is the canonical digest the admin signs to
// initialize the protocol config.
func InitializeConfigDigest(admin, mint solana.PublicKey) []byte {
	return keccak256(concatBytes(
		initConfigTag,
		admin.Bytes(),
		mint.Bytes(),
	))
}

// Signer signs operation digests with an ed25519 key.
type Signer struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewSigner creates a Signer from a base58-encoded ed25519 private key.
func NewSigner(privateKeyBase58 string) (*Signer, error) {
	pk, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: invalid private key: %w", err)
	}
	return &Signer{
		privateKey: pk,
		publicKey:  pk.PublicKey(),
	}, nil
}

// PublicKey returns the signer's public key.
func (s *Signer) PublicKey() solana.PublicKey {
	return s.publicKey
}

// Sign signs a digest and returns the base58-encoded signature.
func (s *Signer) Sign(digest []byte) (string, error) {
	sig, err := s.privateKey.Sign(digest)
	if err != nil {
		return "", fmt.Errorf("crypto/signer: signing: %w", err)
	}
	return sig.String(), nil
}

// Verify checks a base58-encoded ed25519 signature over a digest.
func Verify(pub solana.PublicKey, digest []byte, signatureBase58 string) bool {
	sig, err := solana.SignatureFromBase58(signatureBase58)
	if err != nil {
		return false
	}
	return sig.Verify(pub, digest)
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

func keccak256(data []byte) []byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	return h.Sum(nil)
}

func u64LE(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func i64LE(v int64) []byte {
	return u64LE(uint64(v))
}

func boolByte(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// concatBytes concatenates multiple byte slices into one.
func concatBytes(slices ...[]byte) []byte {
	total := 0
	for _, s := range slices {
		total += len(s)
	}
	buf := make([]byte, 0, total)
	for _, s := range slices {
		buf = append(buf, s...)
	}
	return buf
}
