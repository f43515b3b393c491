package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
	"github.com/ubadineke/sekadotfun-escrow/internal/escrow"
	"github.com/ubadineke/sekadotfun-escrow/internal/server/handler"
	"github.com/ubadineke/sekadotfun-escrow/internal/store/memory"
)

// betStore adapts the in-memory state to the read-store interface.
type betStore struct{ state *memory.State }

func (s betStore) GetByID(ctx context.Context, id uint64) (domain.Bet, error) {
	return s.state.GetBet(ctx, id)
}

func (s betStore) GetByAddress(ctx context.Context, addr solana.PublicKey) (domain.Bet, error) {
	bets, err := s.state.ListBets(ctx, domain.ListOpts{})
	if err != nil {
		return domain.Bet{}, err
	}
	for _, b := range bets {
		if b.Address.Equals(addr) {
			return b, nil
		}
	}
	return domain.Bet{}, domain.ErrNotFound
}

func (s betStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.state.ListBets(ctx, opts)
}

func (s betStore) ListUnresolved(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	bets, err := s.state.ListBets(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := bets[:0]
	for _, b := range bets {
		if !b.Outcome.Resolved() {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s betStore) Count(ctx context.Context) (int64, error) {
	bets, err := s.state.ListBets(ctx, domain.ListOpts{})
	return int64(len(bets)), err
}

type voteStore struct{ state *memory.State }

func (s voteStore) Get(ctx context.Context, betID uint64, user solana.PublicKey) (domain.Vote, error) {
	votes, err := s.state.ListVotesByBet(ctx, betID, domain.ListOpts{})
	if err != nil {
		return domain.Vote{}, err
	}
	for _, v := range votes {
		if v.User.Equals(user) {
			return v, nil
		}
	}
	return domain.Vote{}, domain.ErrNotFound
}

func (s voteStore) ListByBet(ctx context.Context, betID uint64, opts domain.ListOpts) ([]domain.Vote, error) {
	return s.state.ListVotesByBet(ctx, betID, opts)
}

func (s voteStore) ListByUser(ctx context.Context, user solana.PublicKey, opts domain.ListOpts) ([]domain.Vote, error) {
	return s.state.ListVotesByUser(ctx, user, opts)
}

// eventLog is a synchronous in-memory event store, wired as the engine sink
// so handler tests observe events without the relay.
type eventLog struct {
	mu     sync.Mutex
	events []domain.Event
}

func (l *eventLog) Emit(ctx context.Context, ev domain.Event) {
	_ = l.Insert(ctx, ev)
}

func (l *eventLog) Insert(_ context.Context, ev domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) ListByBet(_ context.Context, betID uint64, _ domain.ListOpts) ([]domain.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.Event
	for _, ev := range l.events {
		if ev.BetID == betID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (l *eventLog) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.Event, error) {
	return nil, nil
}

func (l *eventLog) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	return 0, nil
}

// fixture hosts the API over an in-memory state with a controllable clock.
type fixture struct {
	t      *testing.T
	mux    *http.ServeMux
	state  *memory.State
	engine *escrow.Engine
	admin  solana.PublicKey
	mint   solana.PublicKey
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:     t,
		state: memory.NewState(),
		admin: solana.NewWallet().PublicKey(),
		mint:  solana.NewWallet().PublicKey(),
		now:   time.Unix(1_900_000_000, 0),
	}

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	log := &eventLog{}
	f.engine = escrow.NewEngine(f.state, log, logger,
		escrow.WithClock(func() time.Time { return f.now }),
		escrow.WithoutSignatureVerification(),
	)

	_, err := f.engine.InitializeConfig(context.Background(), escrow.InitializeConfigParams{
		Admin: f.admin,
		Mint:  f.mint,
	})
	require.NoError(t, err)

	bets := betStore{state: f.state}
	votes := voteStore{state: f.state}
	bh := handler.NewBetHandler(f.engine, bets, nil, log, logger)
	vh := handler.NewVoteHandler(votes, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/bets", bh.CreateBet)
	mux.HandleFunc("GET /api/bets", bh.ListBets)
	mux.HandleFunc("GET /api/bets/{id}", bh.GetBet)
	mux.HandleFunc("POST /api/bets/{id}/stakes", bh.PlaceStake)
	mux.HandleFunc("POST /api/bets/{id}/resolve", bh.ResolveBet)
	mux.HandleFunc("POST /api/bets/{id}/claims", bh.ClaimReward)
	mux.HandleFunc("GET /api/bets/{id}/events", bh.ListBetEvents)
	mux.HandleFunc("GET /api/bets/{id}/votes", vh.ListByBet)
	mux.HandleFunc("GET /api/bets/{id}/votes/{pubkey}", vh.GetVote)
	mux.HandleFunc("GET /api/users/{pubkey}/votes", vh.ListByUser)
	f.mux = mux

	return f
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (f *fixture) createBet(id uint64, creator solana.PublicKey, endIn time.Duration) {
	f.t.Helper()
	rec := f.do(http.MethodPost, "/api/bets", map[string]any{
		"bet_id":   id,
		"creator":  creator.String(),
		"end_time": f.now.Add(endIn).Unix(),
	})
	require.Equal(f.t, http.StatusCreated, rec.Code, rec.Body.String())
}

func (f *fixture) fundedUser(amount uint64) solana.PublicKey {
	f.t.Helper()
	user := solana.NewWallet().PublicKey()
	_, err := f.engine.Faucet(context.Background(), user, amount)
	require.NoError(f.t, err)
	return user
}

func (f *fixture) stake(betID uint64, user solana.PublicKey, side string, amount uint64) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.do(http.MethodPost, fmt.Sprintf("/api/bets/%d/stakes", betID), map[string]any{
		"user":   user.String(),
		"side":   side,
		"amount": amount,
	})
}

func TestCreateBetEndpoint(t *testing.T) {
	f := newFixture(t)
	creator := solana.NewWallet().PublicKey()

	rec := f.do(http.MethodPost, "/api/bets", map[string]any{
		"bet_id":   1,
		"creator":  creator.String(),
		"end_time": f.now.Add(time.Hour).Unix(),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	bet := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), bet["bet_id"])
	assert.Equal(t, "open", bet["status"])
	assert.Equal(t, creator.String(), bet["creator"])
	assert.NotEmpty(t, bet["address"])
	assert.NotEmpty(t, bet["escrow"])

	rec = f.do(http.MethodGet, "/api/bets/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/bets", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), list["count"])
}

func TestCreateBetRejections(t *testing.T) {
	f := newFixture(t)
	creator := solana.NewWallet().PublicKey()

	rec := f.do(http.MethodPost, "/api/bets", map[string]any{
		"bet_id": 1, "creator": "not-a-key", "end_time": f.now.Add(time.Hour).Unix(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/api/bets", map[string]any{
		"bet_id": 1, "creator": creator.String(), "end_time": f.now.Add(-time.Hour).Unix(),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "end time in the past")

	f.createBet(1, creator, time.Hour)
	rec = f.do(http.MethodPost, "/api/bets", map[string]any{
		"bet_id": 1, "creator": creator.String(), "end_time": f.now.Add(time.Hour).Unix(),
	})
	assert.Equal(t, http.StatusConflict, rec.Code, "duplicate bet id")
}

func TestGetBetNotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/api/bets/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStakeEndpoint(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, solana.NewWallet().PublicKey(), time.Hour)
	user := f.fundedUser(1_000)

	rec := f.stake(1, user, "yes", 400)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	vote := decode[map[string]any](t, rec)
	assert.Equal(t, true, vote["side"])
	assert.Equal(t, float64(400), vote["amount"])

	rec = f.do(http.MethodGet, "/api/bets/1/votes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), list["count"])

	rec = f.do(http.MethodGet, "/api/bets/1/votes/"+user.String(), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/users/"+user.String()+"/votes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list = decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), list["count"])
}

func TestStakeRejections(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, solana.NewWallet().PublicKey(), time.Hour)
	user := f.fundedUser(1_000)

	rec := f.stake(1, user, "maybe", 100)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "invalid side")

	rec = f.stake(1, user, "yes", 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "zero amount")

	rec = f.stake(1, user, "yes", 100)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.stake(1, user, "no", 100)
	assert.Equal(t, http.StatusConflict, rec.Code, "second stake by same user")

	rec = f.stake(1, solana.NewWallet().PublicKey(), "yes", 100)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "unfunded user")
}

func TestResolveAndClaimEndpoints(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, solana.NewWallet().PublicKey(), time.Hour)

	winner := f.fundedUser(1_000)
	loser := f.fundedUser(1_000)
	rec := f.stake(1, winner, "yes", 100)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.stake(1, loser, "no", 300)
	require.Equal(t, http.StatusCreated, rec.Code)

	resolveBody := map[string]any{"outcome": "yes", "resolver": f.admin.String()}

	rec = f.do(http.MethodPost, "/api/bets/1/resolve", resolveBody)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "before end time")

	f.now = f.now.Add(2 * time.Hour)

	rec = f.do(http.MethodPost, "/api/bets/1/resolve", map[string]any{
		"outcome": "yes", "resolver": solana.NewWallet().PublicKey().String(),
	})
	assert.Equal(t, http.StatusForbidden, rec.Code, "unauthorized resolver")

	rec = f.do(http.MethodPost, "/api/bets/1/resolve", resolveBody)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	bet := decode[map[string]any](t, rec)
	assert.Equal(t, "yes", bet["outcome"])
	assert.Equal(t, "resolved", bet["status"])

	rec = f.do(http.MethodPost, "/api/bets/1/claims", map[string]any{"user": winner.String()})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	claim := decode[map[string]any](t, rec)
	assert.Equal(t, float64(400), claim["amount"], "stake plus full losing pool")

	rec = f.do(http.MethodPost, "/api/bets/1/claims", map[string]any{"user": winner.String()})
	assert.Equal(t, http.StatusConflict, rec.Code, "double claim")

	rec = f.do(http.MethodPost, "/api/bets/1/claims", map[string]any{"user": loser.String()})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, "losing side")

	rec = f.do(http.MethodGet, "/api/bets/1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[map[string]any](t, rec)
	assert.Equal(t, float64(5), events["count"], "created, two stakes, resolved, one claim")
}

func TestListUnresolvedFilter(t *testing.T) {
	f := newFixture(t)
	f.createBet(1, solana.NewWallet().PublicKey(), time.Hour)
	f.createBet(2, solana.NewWallet().PublicKey(), time.Hour)

	f.now = f.now.Add(2 * time.Hour)
	rec := f.do(http.MethodPost, "/api/bets/1/resolve", map[string]any{
		"outcome": "no", "resolver": f.admin.String(),
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/api/bets?status=unresolved", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), list["count"])

	rec = f.do(http.MethodGet, "/api/bets", nil)
	list = decode[map[string]any](t, rec)
	assert.Equal(t, float64(2), list["count"])
}
