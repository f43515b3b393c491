// Package memory provides an in-memory State implementation. It backs the
// engine tests and lets the service run without a database. Transactions are
// serialized by a single mutex; writes buffer in the transaction and apply
// on commit.
package memory

import (
	"context"
	"math/bits"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
	"github.com/ubadineke/sekadotfun-escrow/internal/escrow"
)

// State holds all accounts in maps guarded by one mutex.
type State struct {
	mu     sync.Mutex
	config *domain.ProtocolConfig
	bets   map[uint64]domain.Bet
	votes  map[voteKey]domain.Vote
	tokens map[solana.PublicKey]domain.TokenAccount
}

type voteKey struct {
	betID uint64
	user  solana.PublicKey
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		bets:   make(map[uint64]domain.Bet),
		votes:  make(map[voteKey]domain.Vote),
		tokens: make(map[solana.PublicKey]domain.TokenAccount),
	}
}

// RunInTx implements escrow.State. The mutex is held for the whole
// transaction, so transactions are fully serialized.
func (s *State) RunInTx(ctx context.Context, fn func(tx escrow.StateTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &stateTx{state: s}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

// stateTx buffers writes until commit.
type stateTx struct {
	state  *State
	config *domain.ProtocolConfig
	bets   map[uint64]domain.Bet
	votes  map[voteKey]domain.Vote
	tokens map[solana.PublicKey]domain.TokenAccount
}

func (t *stateTx) commit() {
	if t.config != nil {
		t.state.config = t.config
	}
	for id, b := range t.bets {
		t.state.bets[id] = b
	}
	for k, v := range t.votes {
		t.state.votes[k] = v
	}
	for a, acct := range t.tokens {
		t.state.tokens[a] = acct
	}
}

func (t *stateTx) Config(ctx context.Context) (domain.ProtocolConfig, error) {
	if t.config != nil {
		return *t.config, nil
	}
	if t.state.config == nil {
		return domain.ProtocolConfig{}, domain.ErrNotFound
	}
	return *t.state.config, nil
}

func (t *stateTx) InitConfig(ctx context.Context, cfg domain.ProtocolConfig) error {
	if t.config != nil || t.state.config != nil {
		return domain.ErrAlreadyExists
	}
	t.config = &cfg
	return nil
}

func (t *stateTx) Bet(ctx context.Context, betID uint64) (domain.Bet, error) {
	if b, ok := t.bets[betID]; ok {
		return b, nil
	}
	if b, ok := t.state.bets[betID]; ok {
		return b, nil
	}
	return domain.Bet{}, domain.ErrNotFound
}

func (t *stateTx) InsertBet(ctx context.Context, bet domain.Bet) error {
	if _, err := t.Bet(ctx, bet.ID); err == nil {
		return domain.ErrAlreadyExists
	}
	if t.bets == nil {
		t.bets = make(map[uint64]domain.Bet)
	}
	t.bets[bet.ID] = bet
	return nil
}

func (t *stateTx) UpdateBet(ctx context.Context, bet domain.Bet) error {
	if _, err := t.Bet(ctx, bet.ID); err != nil {
		return err
	}
	if t.bets == nil {
		t.bets = make(map[uint64]domain.Bet)
	}
	t.bets[bet.ID] = bet
	return nil
}

func (t *stateTx) Vote(ctx context.Context, betID uint64, user solana.PublicKey) (domain.Vote, error) {
	k := voteKey{betID: betID, user: user}
	if v, ok := t.votes[k]; ok {
		return v, nil
	}
	if v, ok := t.state.votes[k]; ok {
		return v, nil
	}
	return domain.Vote{}, domain.ErrNotFound
}

func (t *stateTx) InsertVote(ctx context.Context, vote domain.Vote) error {
	if _, err := t.Vote(ctx, vote.BetID, vote.User); err == nil {
		return domain.ErrAlreadyExists
	}
	if t.votes == nil {
		t.votes = make(map[voteKey]domain.Vote)
	}
	t.votes[voteKey{betID: vote.BetID, user: vote.User}] = vote
	return nil
}

func (t *stateTx) UpdateVote(ctx context.Context, vote domain.Vote) error {
	if _, err := t.Vote(ctx, vote.BetID, vote.User); err != nil {
		return err
	}
	if t.votes == nil {
		t.votes = make(map[voteKey]domain.Vote)
	}
	t.votes[voteKey{betID: vote.BetID, user: vote.User}] = vote
	return nil
}

func (t *stateTx) TokenAccount(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	if a, ok := t.tokens[addr]; ok {
		return a, nil
	}
	if a, ok := t.state.tokens[addr]; ok {
		return a, nil
	}
	return domain.TokenAccount{}, domain.ErrNotFound
}

func (t *stateTx) CreateTokenAccount(ctx context.Context, acct domain.TokenAccount) error {
	if _, err := t.TokenAccount(ctx, acct.Address); err == nil {
		return domain.ErrAlreadyExists
	}
	if t.tokens == nil {
		t.tokens = make(map[solana.PublicKey]domain.TokenAccount)
	}
	t.tokens[acct.Address] = acct
	return nil
}

func (t *stateTx) Credit(ctx context.Context, addr solana.PublicKey, amount uint64) error {
	acct, err := t.TokenAccount(ctx, addr)
	if err != nil {
		return err
	}
	sum, carry := bits.Add64(acct.Balance, amount, 0)
	if carry != 0 {
		return domain.ErrMathOverflow
	}
	acct.Balance = sum
	if t.tokens == nil {
		t.tokens = make(map[solana.PublicKey]domain.TokenAccount)
	}
	t.tokens[addr] = acct
	return nil
}

func (t *stateTx) Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	src, err := t.TokenAccount(ctx, from)
	if err != nil {
		return err
	}
	dst, err := t.TokenAccount(ctx, to)
	if err != nil {
		return err
	}
	if !src.Mint.Equals(dst.Mint) {
		return domain.ErrWrongMint
	}
	if src.Balance < amount {
		return domain.ErrInsufficientFunds
	}
	sum, carry := bits.Add64(dst.Balance, amount, 0)
	if carry != 0 {
		return domain.ErrMathOverflow
	}
	src.Balance -= amount
	dst.Balance = sum
	if t.tokens == nil {
		t.tokens = make(map[solana.PublicKey]domain.TokenAccount)
	}
	t.tokens[from] = src
	t.tokens[to] = dst
	return nil
}

// --------------------------------------------------------------------------
// Read-side stores over the same maps, for running the API without postgres.
// --------------------------------------------------------------------------

// GetBet implements a point lookup outside a transaction.
func (s *State) GetBet(ctx context.Context, betID uint64) (domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.bets[betID]; ok {
		return b, nil
	}
	return domain.Bet{}, domain.ErrNotFound
}

// ListBets returns all bets ordered by id.
func (s *State) ListBets(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Bet, 0, len(s.bets))
	for _, b := range s.bets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, opts), nil
}

// ListVotesByBet returns all votes for one bet ordered by creation time.
func (s *State) ListVotesByBet(ctx context.Context, betID uint64, opts domain.ListOpts) ([]domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Vote
	for k, v := range s.votes {
		if k.betID == betID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

// ListVotesByUser returns all of a user's votes ordered by creation time.
func (s *State) ListVotesByUser(ctx context.Context, user solana.PublicKey, opts domain.ListOpts) ([]domain.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []domain.Vote
	for k, v := range s.votes {
		if k.user.Equals(user) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return paginate(out, opts), nil
}

// GetTokenAccount returns a token account by address.
func (s *State) GetTokenAccount(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.tokens[addr]; ok {
		return a, nil
	}
	return domain.TokenAccount{}, domain.ErrNotFound
}

func paginate[T any](items []T, opts domain.ListOpts) []T {
	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(items) {
		items = items[:opts.Limit]
	}
	return items
}
