package escrow_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
	"github.com/ubadineke/sekadotfun-escrow/internal/escrow"
	"github.com/ubadineke/sekadotfun-escrow/internal/keys"
	"github.com/ubadineke/sekadotfun-escrow/internal/store/memory"

	sekcrypto "github.com/ubadineke/sekadotfun-escrow/internal/crypto"
)

// captureSink records emitted events for assertions.
type captureSink struct {
	mu     sync.Mutex
	events []domain.Event
}

func (c *captureSink) Emit(_ context.Context, ev domain.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureSink) kinds() []domain.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.EventKind, len(c.events))
	for i, ev := range c.events {
		out[i] = ev.Kind
	}
	return out
}

// fixture wires an engine over an in-memory state with a movable clock and
// an initialized config.
type fixture struct {
	t      *testing.T
	engine *escrow.Engine
	state  *memory.State
	sink   *captureSink
	admin  solana.PublicKey
	mint   solana.PublicKey
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:     t,
		state: memory.NewState(),
		sink:  &captureSink{},
		admin: solana.NewWallet().PublicKey(),
		mint:  solana.NewWallet().PublicKey(),
		now:   time.Unix(1_900_000_000, 0),
	}
	f.engine = escrow.NewEngine(
		f.state,
		f.sink,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		escrow.WithClock(func() time.Time { return f.now }),
		escrow.WithoutSignatureVerification(),
	)

	_, err := f.engine.InitializeConfig(context.Background(), escrow.InitializeConfigParams{
		Admin: f.admin,
		Mint:  f.mint,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) createBet(betID uint64, ttl time.Duration) domain.Bet {
	f.t.Helper()
	bet, err := f.engine.CreateMarket(context.Background(), escrow.CreateMarketParams{
		BetID:   betID,
		Creator: solana.NewWallet().PublicKey(),
		EndTime: f.now.Add(ttl).Unix(),
	})
	require.NoError(f.t, err)
	return bet
}

func (f *fixture) fundedUser(amount uint64) solana.PublicKey {
	f.t.Helper()
	user := solana.NewWallet().PublicKey()
	_, err := f.engine.Faucet(context.Background(), user, amount)
	require.NoError(f.t, err)
	return user
}

func (f *fixture) stake(betID uint64, user solana.PublicKey, side bool, amount uint64) error {
	_, err := f.engine.Stake(context.Background(), escrow.StakeParams{
		BetID:  betID,
		User:   user,
		Side:   side,
		Amount: amount,
	})
	return err
}

func (f *fixture) resolveAs(betID uint64, outcome bool, resolver solana.PublicKey) error {
	_, err := f.engine.Resolve(context.Background(), escrow.ResolveParams{
		BetID:    betID,
		Outcome:  outcome,
		Resolver: resolver,
	})
	return err
}

func (f *fixture) resolve(betID uint64, outcome bool) error {
	return f.resolveAs(betID, outcome, f.admin)
}

func (f *fixture) claim(betID uint64, user solana.PublicKey) (uint64, error) {
	return f.engine.Claim(context.Background(), escrow.ClaimParams{BetID: betID, User: user})
}

func (f *fixture) userBalance(user solana.PublicKey) uint64 {
	f.t.Helper()
	addr, err := keys.TokenAddress(user, f.mint)
	require.NoError(f.t, err)
	acct, err := f.state.GetTokenAccount(context.Background(), addr)
	require.NoError(f.t, err)
	return acct.Balance
}

func (f *fixture) escrowBalance(betID uint64) uint64 {
	f.t.Helper()
	bet, err := f.state.GetBet(context.Background(), betID)
	require.NoError(f.t, err)
	acct, err := f.state.GetTokenAccount(context.Background(), bet.Escrow)
	require.NoError(f.t, err)
	return acct.Balance
}

func TestInitializeConfigOnce(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.InitializeConfig(context.Background(), escrow.InitializeConfigParams{
		Admin: f.admin,
		Mint:  f.mint,
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCreateMarket(t *testing.T) {
	f := newFixture(t)

	bet := f.createBet(1, time.Hour)
	assert.Equal(t, uint64(1), bet.ID)
	assert.Equal(t, domain.OutcomeUnresolved, bet.Outcome)
	assert.Zero(t, bet.TotalYesStaked)
	assert.Zero(t, bet.TotalNoStaked)

	wantAddr, _, err := keys.BetAddress(1)
	require.NoError(t, err)
	assert.Equal(t, wantAddr, bet.Address)

	wantEscrow, err := keys.EscrowAddress(wantAddr, f.mint)
	require.NoError(t, err)
	assert.Equal(t, wantEscrow, bet.Escrow)
	assert.Zero(t, f.escrowBalance(1))

	assert.Equal(t, []domain.EventKind{domain.EventBetCreated}, f.sink.kinds())
}

func TestCreateMarketRejectsPastEndTime(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.CreateMarket(context.Background(), escrow.CreateMarketParams{
		BetID:   1,
		Creator: solana.NewWallet().PublicKey(),
		EndTime: f.now.Unix(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEndTime)
}

func TestCreateMarketRejectsDuplicateID(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	_, err := f.engine.CreateMarket(context.Background(), escrow.CreateMarketParams{
		BetID:   1,
		Creator: solana.NewWallet().PublicKey(),
		EndTime: f.now.Add(time.Hour).Unix(),
	})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestStakeMovesTokensAndUpdatesPools(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	user := f.fundedUser(500)

	require.NoError(t, f.stake(1, user, true, 200))

	bet, err := f.state.GetBet(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), bet.TotalYesStaked)
	assert.Zero(t, bet.TotalNoStaked)
	assert.Equal(t, uint64(300), f.userBalance(user))
	assert.Equal(t, uint64(200), f.escrowBalance(1))
}

func TestStakeRejectsZeroAmount(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	err := f.stake(1, f.fundedUser(100), true, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestStakeRejectsSecondStakeBySameUser(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	user := f.fundedUser(500)

	require.NoError(t, f.stake(1, user, true, 100))
	err := f.stake(1, user, true, 100)
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	// The failed stake must not move tokens or totals.
	assert.Equal(t, uint64(400), f.userBalance(user))
	bet, err2 := f.state.GetBet(context.Background(), 1)
	require.NoError(t, err2)
	assert.Equal(t, uint64(100), bet.TotalYesStaked)
}

func TestStakeRejectsAfterEndTime(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	user := f.fundedUser(100)

	f.advance(time.Hour + time.Second)
	err := f.stake(1, user, true, 50)
	assert.ErrorIs(t, err, domain.ErrBetClosed)
}

func TestStakeAllowedExactlyAtEndTime(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	user := f.fundedUser(100)

	f.advance(time.Hour)
	assert.NoError(t, f.stake(1, user, true, 50))
}

func TestStakeRejectsInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	user := f.fundedUser(10)

	err := f.stake(1, user, false, 50)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, uint64(10), f.userBalance(user))
}

func TestFaucetRejectsBalanceOverflow(t *testing.T) {
	f := newFixture(t)
	user := f.fundedUser(math.MaxUint64)

	_, err := f.engine.Faucet(context.Background(), user, 1)
	assert.ErrorIs(t, err, domain.ErrMathOverflow)
	assert.Equal(t, uint64(math.MaxUint64), f.userBalance(user))
}

func TestResolveAuthority(t *testing.T) {
	f := newFixture(t)
	bet := f.createBet(1, time.Hour)
	f.advance(2 * time.Hour)

	// A stranger holds no resolution authority.
	err := f.resolveAs(1, true, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// The creator decides their own market.
	assert.NoError(t, f.resolveAs(1, true, bet.Creator))
}

func TestResolveByConfigAdmin(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	f.advance(2 * time.Hour)

	assert.NoError(t, f.resolve(1, true))
}

func TestResolveRejectsBeforeEndTime(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	err := f.resolve(1, true)
	assert.ErrorIs(t, err, domain.ErrBetStillOpen)
}

func TestResolveAllowedExactlyAtEndTime(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	f.advance(time.Hour)

	assert.NoError(t, f.resolve(1, true))
}

func TestResolveOnlyOnce(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	f.advance(2 * time.Hour)

	require.NoError(t, f.resolve(1, true))
	err := f.resolve(1, false)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	bet, err2 := f.state.GetBet(context.Background(), 1)
	require.NoError(t, err2)
	assert.Equal(t, domain.OutcomeYes, bet.Outcome)
}

func TestClaimPaysProRataShare(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	winner := f.fundedUser(100)
	coWinner := f.fundedUser(200)
	loser := f.fundedUser(100)

	require.NoError(t, f.stake(1, winner, true, 100))
	require.NoError(t, f.stake(1, coWinner, true, 200))
	require.NoError(t, f.stake(1, loser, false, 100))

	f.advance(2 * time.Hour)
	require.NoError(t, f.resolve(1, true))

	// winner: 100 + 100*100/300 = 133
	paid, err := f.claim(1, winner)
	require.NoError(t, err)
	assert.Equal(t, uint64(133), paid)
	assert.Equal(t, uint64(133), f.userBalance(winner))

	// coWinner: 200 + 200*100/300 = 266
	paid, err = f.claim(1, coWinner)
	require.NoError(t, err)
	assert.Equal(t, uint64(266), paid)

	// 400 in, 399 out, remainder 1 stays in escrow.
	assert.Equal(t, uint64(1), f.escrowBalance(1))
}

func TestClaimRejectsLoser(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	winner := f.fundedUser(100)
	loser := f.fundedUser(100)
	require.NoError(t, f.stake(1, winner, true, 100))
	require.NoError(t, f.stake(1, loser, false, 100))

	f.advance(2 * time.Hour)
	require.NoError(t, f.resolve(1, true))

	_, err := f.claim(1, loser)
	assert.ErrorIs(t, err, domain.ErrNotWinner)
	assert.Zero(t, f.userBalance(loser))
}

func TestClaimRejectsBeforeResolution(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	user := f.fundedUser(100)
	require.NoError(t, f.stake(1, user, true, 100))

	_, err := f.claim(1, user)
	assert.ErrorIs(t, err, domain.ErrNotResolved)
}

func TestClaimRejectsDoubleClaim(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	winner := f.fundedUser(100)
	loser := f.fundedUser(100)
	require.NoError(t, f.stake(1, winner, true, 100))
	require.NoError(t, f.stake(1, loser, false, 100))

	f.advance(2 * time.Hour)
	require.NoError(t, f.resolve(1, true))

	paid, err := f.claim(1, winner)
	require.NoError(t, err)
	assert.Equal(t, uint64(200), paid)

	_, err = f.claim(1, winner)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)
	assert.Equal(t, uint64(200), f.userBalance(winner))
}

func TestClaimRejectsNonStaker(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	user := f.fundedUser(100)
	require.NoError(t, f.stake(1, user, true, 100))

	f.advance(2 * time.Hour)
	require.NoError(t, f.resolve(1, true))

	_, err := f.claim(1, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConservationAcrossFullLifecycle(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	users := make([]solana.PublicKey, 6)
	stakes := []uint64{13, 250, 999, 42, 7, 580}
	sides := []bool{true, false, true, false, true, false}
	var total uint64
	for i := range users {
		users[i] = f.fundedUser(1_000)
		require.NoError(t, f.stake(1, users[i], sides[i], stakes[i]))
		total += stakes[i]
	}
	assert.Equal(t, total, f.escrowBalance(1))

	f.advance(2 * time.Hour)
	require.NoError(t, f.resolve(1, false))

	var distributed uint64
	for i := range users {
		if sides[i] {
			continue
		}
		paid, err := f.claim(1, users[i])
		require.NoError(t, err)
		distributed += paid
	}

	// Everything paid out came from escrow; truncation dust remains.
	assert.Equal(t, total-distributed, f.escrowBalance(1))
	assert.LessOrEqual(t, distributed, total)
}

func TestNoWinnersLeavesEscrowLocked(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	// Everyone staked NO, YES wins: the winning pool is empty and nothing is
	// claimable.
	loser := f.fundedUser(100)
	require.NoError(t, f.stake(1, loser, false, 100))

	f.advance(2 * time.Hour)
	require.NoError(t, f.resolve(1, true))

	_, err := f.claim(1, loser)
	assert.ErrorIs(t, err, domain.ErrNotWinner)
	assert.Equal(t, uint64(100), f.escrowBalance(1))
}

func TestStakeOnResolvedBetRejected(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)
	user := f.fundedUser(100)

	f.advance(2 * time.Hour)
	require.NoError(t, f.resolve(1, true))

	err := f.stake(1, user, true, 50)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestSignatureVerification(t *testing.T) {
	state := memory.NewState()
	adminWallet := solana.NewWallet()
	mint := solana.NewWallet().PublicKey()
	now := time.Unix(1_900_000_000, 0)

	engine := escrow.NewEngine(
		state,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		escrow.WithClock(func() time.Time { return now }),
	)

	signer, err := sekcrypto.NewSigner(adminWallet.PrivateKey.String())
	require.NoError(t, err)

	// Bad signature rejected.
	_, err = engine.InitializeConfig(context.Background(), escrow.InitializeConfigParams{
		Admin:     adminWallet.PublicKey(),
		Mint:      mint,
		Signature: "bogus",
	})
	assert.ErrorIs(t, err, domain.ErrBadSignature)

	// Properly signed operation accepted.
	sig, err := signer.Sign(sekcrypto.InitializeConfigDigest(adminWallet.PublicKey(), mint))
	require.NoError(t, err)
	_, err = engine.InitializeConfig(context.Background(), escrow.InitializeConfigParams{
		Admin:     adminWallet.PublicKey(),
		Mint:      mint,
		Signature: sig,
	})
	assert.NoError(t, err)

	// A creator cannot reuse someone else's signature.
	creator := solana.NewWallet()
	createSig, err := signer.Sign(sekcrypto.CreateBetDigest(1, now.Add(time.Hour).Unix(), creator.PublicKey()))
	require.NoError(t, err)
	_, err = engine.CreateMarket(context.Background(), escrow.CreateMarketParams{
		BetID:     1,
		Creator:   creator.PublicKey(),
		EndTime:   now.Add(time.Hour).Unix(),
		Signature: createSig,
	})
	assert.ErrorIs(t, err, domain.ErrBadSignature)
}

func TestEventEmissionOrder(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, time.Hour)

	winner := f.fundedUser(100)
	loser := f.fundedUser(100)
	require.NoError(t, f.stake(1, winner, true, 100))
	require.NoError(t, f.stake(1, loser, false, 100))

	f.advance(2 * time.Hour)
	require.NoError(t, f.resolve(1, true))
	_, err := f.claim(1, winner)
	require.NoError(t, err)

	assert.Equal(t, []domain.EventKind{
		domain.EventBetCreated,
		domain.EventBetPlaced,
		domain.EventBetPlaced,
		domain.EventBetResolved,
		domain.EventRewardClaimed,
	}, f.sink.kinds())
}
