package escrow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/ubadineke/sekadotfun-escrow/internal/crypto"
	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
	"github.com/ubadineke/sekadotfun-escrow/internal/keys"
)

// Engine executes the protocol operations against a State. It is safe for
// concurrent use; the State serializes conflicting transactions.
type Engine struct {
	state      State
	sink       EventSink
	logger     *slog.Logger
	now        func() time.Time
	verifySigs bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithoutSignatureVerification disables operation signature checks. Meant
// for in-process callers that have already authenticated the identity.
func WithoutSignatureVerification() Option {
	return func(e *Engine) { e.verifySigs = false }
}

// NewEngine creates an Engine with all required dependencies.
func NewEngine(state State, sink EventSink, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		state:      state,
		sink:       sink,
		logger:     logger,
		now:        time.Now,
		verifySigs: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// InitializeConfigParams are the inputs to InitializeConfig.
type InitializeConfigParams struct {
	Admin     solana.PublicKey
	Mint      solana.PublicKey
	Signature string // admin's signature over crypto.InitializeConfigDigest
}

// InitializeConfig creates the singleton protocol config. It fails with
// domain.ErrAlreadyExists once a config has been initialized.
func (e *Engine) InitializeConfig(ctx context.Context, p InitializeConfigParams) (domain.ProtocolConfig, error) {
	if e.verifySigs && !crypto.Verify(p.Admin, crypto.InitializeConfigDigest(p.Admin, p.Mint), p.Signature) {
		return domain.ProtocolConfig{}, domain.ErrBadSignature
	}

	addr, bump, err := keys.ConfigAddress()
	if err != nil {
		return domain.ProtocolConfig{}, err
	}

	cfg := domain.ProtocolConfig{
		Address:       addr,
		Admin:         p.Admin,
		AcceptedMint:  p.Mint,
		LayoutVersion: bump,
		CreatedAt:     e.now().UTC(),
	}

	err = e.state.RunInTx(ctx, func(tx StateTx) error {
		return tx.InitConfig(ctx, cfg)
	})
	if err != nil {
		return domain.ProtocolConfig{}, err
	}

	e.logger.Info("protocol config initialized", "admin", p.Admin.String(), "mint", p.Mint.String())
	return cfg, nil
}

// CreateMarketParams are the inputs to CreateMarket. BetID is chosen by the
// creator; the derived bet address makes each id usable exactly once.
type CreateMarketParams struct {
	BetID     uint64
	Creator   solana.PublicKey
	EndTime   int64 // unix seconds, strictly in the future
	Signature string
}

// CreateMarket opens a new binary market with an empty pool and a fresh
// escrow account. Anyone may create a market.
func (e *Engine) CreateMarket(ctx context.Context, p CreateMarketParams) (domain.Bet, error) {
	now := e.now()
	if p.EndTime <= now.Unix() {
		return domain.Bet{}, domain.ErrInvalidEndTime
	}
	if e.verifySigs && !crypto.Verify(p.Creator, crypto.CreateBetDigest(p.BetID, p.EndTime, p.Creator), p.Signature) {
		return domain.Bet{}, domain.ErrBadSignature
	}

	betAddr, bump, err := keys.BetAddress(p.BetID)
	if err != nil {
		return domain.Bet{}, err
	}

	var bet domain.Bet
	err = e.state.RunInTx(ctx, func(tx StateTx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}

		escrowAddr, err := keys.EscrowAddress(betAddr, cfg.AcceptedMint)
		if err != nil {
			return err
		}

		bet = domain.Bet{
			Address:       betAddr,
			Creator:       p.Creator,
			ID:            p.BetID,
			Outcome:       domain.OutcomeUnresolved,
			EndTime:       p.EndTime,
			Escrow:        escrowAddr,
			LayoutVersion: bump,
			CreatedAt:     now.UTC(),
			UpdatedAt:     now.UTC(),
		}
		if err := tx.InsertBet(ctx, bet); err != nil {
			return err
		}
		return tx.CreateTokenAccount(ctx, domain.TokenAccount{
			Address:   escrowAddr,
			Owner:     betAddr,
			Mint:      cfg.AcceptedMint,
			CreatedAt: now.UTC(),
		})
	})
	if err != nil {
		return domain.Bet{}, err
	}

	e.emit(ctx, domain.EventBetCreated, p.BetID, domain.BetCreatedEvent{
		BetID:   p.BetID,
		Creator: p.Creator,
		EndTime: p.EndTime,
	})
	e.logger.Info("bet created", "bet_id", p.BetID, "creator", p.Creator.String(), "end_time", p.EndTime)
	return bet, nil
}

// StakeParams are the inputs to Stake.
type StakeParams struct {
	BetID     uint64
	User      solana.PublicKey
	Side      bool // true = YES
	Amount    uint64
	Signature string
}

// Stake locks Amount of the user's tokens into the bet's escrow and records
// a vote on one side. A user stakes at most once per bet; staking closes when
// the end time passes or the bet resolves.
func (e *Engine) Stake(ctx context.Context, p StakeParams) (domain.Vote, error) {
	if p.Amount == 0 {
		return domain.Vote{}, domain.ErrInvalidAmount
	}
	if e.verifySigs && !crypto.Verify(p.User, crypto.ApplyBetDigest(p.BetID, p.User, p.Side, p.Amount), p.Signature) {
		return domain.Vote{}, domain.ErrBadSignature
	}

	voteAddr, bump, err := keys.VoteAddress(p.BetID, p.User)
	if err != nil {
		return domain.Vote{}, err
	}

	now := e.now()
	var vote domain.Vote
	err = e.state.RunInTx(ctx, func(tx StateTx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		bet, err := tx.Bet(ctx, p.BetID)
		if err != nil {
			return err
		}
		if bet.Outcome.Resolved() {
			return domain.ErrAlreadyResolved
		}
		if now.Unix() > bet.EndTime {
			return domain.ErrBetClosed
		}

		if p.Side {
			bet.TotalYesStaked, err = checkedAdd(bet.TotalYesStaked, p.Amount)
		} else {
			bet.TotalNoStaked, err = checkedAdd(bet.TotalNoStaked, p.Amount)
		}
		if err != nil {
			return err
		}
		// The combined pool must stay representable for payout math.
		if _, err := checkedAdd(bet.TotalYesStaked, bet.TotalNoStaked); err != nil {
			return err
		}

		vote = domain.Vote{
			Address:       voteAddr,
			User:          p.User,
			BetID:         p.BetID,
			Side:          p.Side,
			Amount:        p.Amount,
			LayoutVersion: bump,
			CreatedAt:     now.UTC(),
		}
		if err := tx.InsertVote(ctx, vote); err != nil {
			return err
		}

		userToken, err := keys.TokenAddress(p.User, cfg.AcceptedMint)
		if err != nil {
			return err
		}
		if err := tx.Transfer(ctx, userToken, bet.Escrow, p.Amount); err != nil {
			// A user with no token account has nothing to stake.
			if errors.Is(err, domain.ErrNotFound) {
				return domain.ErrInsufficientFunds
			}
			return err
		}

		bet.UpdatedAt = now.UTC()
		return tx.UpdateBet(ctx, bet)
	})
	if err != nil {
		return domain.Vote{}, err
	}

	e.emit(ctx, domain.EventBetPlaced, p.BetID, domain.BetPlacedEvent{
		BetID:  p.BetID,
		User:   p.User,
		Side:   p.Side,
		Amount: p.Amount,
	})
	e.logger.Info("stake placed", "bet_id", p.BetID, "user", p.User.String(), "side", p.Side, "amount", p.Amount)
	return vote, nil
}

// ResolveParams are the inputs to Resolve.
type ResolveParams struct {
	BetID     uint64
	Outcome   bool // true = YES wins
	Resolver  solana.PublicKey
	Signature string
}

// Resolve sets a bet's outcome. The bet's creator and the config admin may
// resolve, only once the end time is reached, and only once per bet.
func (e *Engine) Resolve(ctx context.Context, p ResolveParams) (domain.Bet, error) {
	if e.verifySigs && !crypto.Verify(p.Resolver, crypto.FinishBetDigest(p.BetID, p.Outcome, p.Resolver), p.Signature) {
		return domain.Bet{}, domain.ErrBadSignature
	}

	now := e.now()
	var bet domain.Bet
	err := e.state.RunInTx(ctx, func(tx StateTx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		bet, err = tx.Bet(ctx, p.BetID)
		if err != nil {
			return err
		}
		if !p.Resolver.Equals(bet.Creator) && !p.Resolver.Equals(cfg.Admin) {
			return domain.ErrUnauthorized
		}
		if bet.Outcome.Resolved() {
			return domain.ErrAlreadyResolved
		}
		if now.Unix() < bet.EndTime {
			return domain.ErrBetStillOpen
		}

		bet.Outcome = domain.OutcomeFromBool(p.Outcome)
		bet.UpdatedAt = now.UTC()
		return tx.UpdateBet(ctx, bet)
	})
	if err != nil {
		return domain.Bet{}, err
	}

	e.emit(ctx, domain.EventBetResolved, p.BetID, domain.BetResolvedEvent{
		BetID:   p.BetID,
		Outcome: bet.Outcome,
	})
	e.logger.Info("bet resolved", "bet_id", p.BetID, "outcome", bet.Outcome.String())
	return bet, nil
}

// ClaimParams are the inputs to Claim.
type ClaimParams struct {
	BetID     uint64
	User      solana.PublicKey
	Signature string
}

// Claim pays a winning vote its stake plus a pro-rata share of the losing
// pool, then marks the vote claimed. Each vote pays out at most once.
func (e *Engine) Claim(ctx context.Context, p ClaimParams) (uint64, error) {
	if e.verifySigs && !crypto.Verify(p.User, crypto.ClaimRewardDigest(p.BetID, p.User), p.Signature) {
		return 0, domain.ErrBadSignature
	}

	now := e.now()
	var paid uint64
	err := e.state.RunInTx(ctx, func(tx StateTx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		bet, err := tx.Bet(ctx, p.BetID)
		if err != nil {
			return err
		}
		if !bet.Outcome.Resolved() {
			return domain.ErrNotResolved
		}

		vote, err := tx.Vote(ctx, p.BetID, p.User)
		if err != nil {
			return err
		}
		if vote.Claimed {
			return domain.ErrAlreadyClaimed
		}
		if !vote.Won(bet.Outcome) {
			return domain.ErrNotWinner
		}

		winningPool, losingPool := bet.TotalYesStaked, bet.TotalNoStaked
		if !bet.Outcome.Yes() {
			winningPool, losingPool = losingPool, winningPool
		}
		paid, err = payout(vote.Amount, winningPool, losingPool)
		if err != nil {
			return err
		}

		escrow, err := tx.TokenAccount(ctx, bet.Escrow)
		if err != nil {
			return err
		}
		if escrow.Balance < paid {
			return domain.ErrEscrowUnderfunded
		}

		userToken, err := keys.TokenAddress(p.User, cfg.AcceptedMint)
		if err != nil {
			return err
		}
		if err := tx.Transfer(ctx, bet.Escrow, userToken, paid); err != nil {
			return err
		}

		claimedAt := now.UTC()
		vote.Claimed = true
		vote.ClaimedAt = &claimedAt
		return tx.UpdateVote(ctx, vote)
	})
	if err != nil {
		return 0, err
	}

	e.emit(ctx, domain.EventRewardClaimed, p.BetID, domain.RewardClaimedEvent{
		BetID:  p.BetID,
		User:   p.User,
		Amount: paid,
	})
	e.logger.Info("reward claimed", "bet_id", p.BetID, "user", p.User.String(), "amount", paid)
	return paid, nil
}

// Faucet issues Amount fresh tokens of the accepted mint to the user's token
// account, creating the account if needed. Admin surface only; real deployments
// fund wallets out of band.
func (e *Engine) Faucet(ctx context.Context, user solana.PublicKey, amount uint64) (domain.TokenAccount, error) {
	if amount == 0 {
		return domain.TokenAccount{}, domain.ErrInvalidAmount
	}

	now := e.now()
	var acct domain.TokenAccount
	err := e.state.RunInTx(ctx, func(tx StateTx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		addr, err := keys.TokenAddress(user, cfg.AcceptedMint)
		if err != nil {
			return err
		}

		acct, err = tx.TokenAccount(ctx, addr)
		if errors.Is(err, domain.ErrNotFound) {
			acct = domain.TokenAccount{
				Address:   addr,
				Owner:     user,
				Mint:      cfg.AcceptedMint,
				CreatedAt: now.UTC(),
			}
			if err := tx.CreateTokenAccount(ctx, acct); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		if err := tx.Credit(ctx, addr, amount); err != nil {
			return err
		}
		acct, err = tx.TokenAccount(ctx, addr)
		return err
	})
	if err != nil {
		return domain.TokenAccount{}, err
	}

	e.logger.Info("faucet credit", "user", user.String(), "amount", amount)
	return acct, nil
}

func (e *Engine) emit(ctx context.Context, kind domain.EventKind, betID uint64, payload any) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(ctx, domain.Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		BetID:     betID,
		Payload:   payload,
		CreatedAt: e.now().UTC(),
	})
}
