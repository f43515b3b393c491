package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
	"github.com/ubadineke/sekadotfun-escrow/internal/escrow"
)

// State implements escrow.State over a pgx pool. Each RunInTx call maps to
// one database transaction; bet and token account rows are read FOR UPDATE so
// concurrent operations on the same accounts serialize at the row level.
type State struct {
	pool *pgxpool.Pool
}

// NewState creates a State backed by the given connection pool.
func NewState(pool *pgxpool.Pool) *State {
	return &State{pool: pool}
}

// RunInTx implements escrow.State.
func (s *State) RunInTx(ctx context.Context, fn func(tx escrow.StateTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin state tx: %w", err)
	}

	if err := fn(&stateTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit state tx: %w", err)
	}
	return nil
}

type stateTx struct {
	tx pgx.Tx
}

func (t *stateTx) Config(ctx context.Context) (domain.ProtocolConfig, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT address, admin, accepted_mint, layout_version, created_at
		FROM protocol_config`)
	cfg, err := scanConfig(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProtocolConfig{}, domain.ErrNotFound
		}
		return domain.ProtocolConfig{}, fmt.Errorf("postgres: get config: %w", err)
	}
	return cfg, nil
}

func (t *stateTx) InitConfig(ctx context.Context, cfg domain.ProtocolConfig) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO protocol_config (address, admin, accepted_mint, layout_version, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		cfg.Address.String(), cfg.Admin.String(), cfg.AcceptedMint.String(),
		int16(cfg.LayoutVersion), cfg.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: init config: %w", err)
	}
	return nil
}

func (t *stateTx) Bet(ctx context.Context, betID uint64) (domain.Bet, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+betCols+`
		FROM bets WHERE bet_id = $1
		FOR UPDATE`, int64(betID))
	bet, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %d: %w", betID, err)
	}
	return bet, nil
}

func (t *stateTx) InsertBet(ctx context.Context, bet domain.Bet) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO bets (
			bet_id, address, creator, total_yes_staked, total_no_staked,
			outcome, end_time, escrow, layout_version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		int64(bet.ID), bet.Address.String(), bet.Creator.String(),
		int64(bet.TotalYesStaked), int64(bet.TotalNoStaked),
		int16(bet.Outcome), bet.EndTime, bet.Escrow.String(),
		int16(bet.LayoutVersion), bet.CreatedAt, bet.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert bet %d: %w", bet.ID, err)
	}
	return nil
}

func (t *stateTx) UpdateBet(ctx context.Context, bet domain.Bet) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bets SET
			total_yes_staked = $2,
			total_no_staked  = $3,
			outcome          = $4,
			updated_at       = $5
		WHERE bet_id = $1`,
		int64(bet.ID), int64(bet.TotalYesStaked), int64(bet.TotalNoStaked),
		int16(bet.Outcome), bet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update bet %d: %w", bet.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *stateTx) Vote(ctx context.Context, betID uint64, user solana.PublicKey) (domain.Vote, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT `+voteCols+`
		FROM votes WHERE bet_id = $1 AND user_key = $2
		FOR UPDATE`, int64(betID), user.String())
	vote, err := scanVote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vote{}, domain.ErrNotFound
		}
		return domain.Vote{}, fmt.Errorf("postgres: get vote %d/%s: %w", betID, user, err)
	}
	return vote, nil
}

func (t *stateTx) InsertVote(ctx context.Context, vote domain.Vote) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO votes (
			bet_id, user_key, address, side, amount,
			claimed, layout_version, created_at, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		int64(vote.BetID), vote.User.String(), vote.Address.String(),
		vote.Side, int64(vote.Amount), vote.Claimed,
		int16(vote.LayoutVersion), vote.CreatedAt, vote.ClaimedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: insert vote %d/%s: %w", vote.BetID, vote.User, err)
	}
	return nil
}

func (t *stateTx) UpdateVote(ctx context.Context, vote domain.Vote) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE votes SET claimed = $3, claimed_at = $4
		WHERE bet_id = $1 AND user_key = $2`,
		int64(vote.BetID), vote.User.String(), vote.Claimed, vote.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update vote %d/%s: %w", vote.BetID, vote.User, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *stateTx) TokenAccount(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	row := t.tx.QueryRow(ctx, `
		SELECT address, owner_key, mint, balance, created_at
		FROM token_accounts WHERE address = $1
		FOR UPDATE`, addr.String())
	acct, err := scanTokenAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TokenAccount{}, domain.ErrNotFound
		}
		return domain.TokenAccount{}, fmt.Errorf("postgres: get token account %s: %w", addr, err)
	}
	return acct, nil
}

func (t *stateTx) CreateTokenAccount(ctx context.Context, acct domain.TokenAccount) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO token_accounts (address, owner_key, mint, balance, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		acct.Address.String(), acct.Owner.String(), acct.Mint.String(),
		int64(acct.Balance), acct.CreatedAt,
	)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("postgres: create token account %s: %w", acct.Address, err)
	}
	return nil
}

func (t *stateTx) Credit(ctx context.Context, addr solana.PublicKey, amount uint64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE token_accounts SET balance = balance + $2 WHERE address = $1`,
		addr.String(), int64(amount),
	)
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", addr, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (t *stateTx) Transfer(ctx context.Context, from, to solana.PublicKey, amount uint64) error {
	// Lock both rows in address order to avoid deadlocks between concurrent
	// transfers touching the same pair.
	first, second := from, to
	if second.String() < first.String() {
		first, second = second, first
	}
	src, err := t.lockedAccount(ctx, first)
	if err != nil {
		return err
	}
	dst, err := t.lockedAccount(ctx, second)
	if err != nil {
		return err
	}
	if !first.Equals(from) {
		src, dst = dst, src
	}

	if !src.Mint.Equals(dst.Mint) {
		return domain.ErrWrongMint
	}
	if src.Balance < amount {
		return domain.ErrInsufficientFunds
	}

	if _, err := t.tx.Exec(ctx,
		`UPDATE token_accounts SET balance = balance - $2 WHERE address = $1`,
		from.String(), int64(amount),
	); err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from, err)
	}
	if _, err := t.tx.Exec(ctx,
		`UPDATE token_accounts SET balance = balance + $2 WHERE address = $1`,
		to.String(), int64(amount),
	); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", to, err)
	}
	return nil
}

func (t *stateTx) lockedAccount(ctx context.Context, addr solana.PublicKey) (domain.TokenAccount, error) {
	return t.TokenAccount(ctx, addr)
}

// --------------------------------------------------------------------------
// Row scanning
// --------------------------------------------------------------------------

const betCols = `bet_id, address, creator, total_yes_staked, total_no_staked,
	outcome, end_time, escrow, layout_version, created_at, updated_at`

const voteCols = `bet_id, user_key, address, side, amount,
	claimed, layout_version, created_at, claimed_at`

func scanBet(row pgx.Row) (domain.Bet, error) {
	var (
		b                        domain.Bet
		betID, totalYes, totalNo int64
		addr, creator, escrow    string
		outcome, layoutVersion   int16
	)
	err := row.Scan(
		&betID, &addr, &creator, &totalYes, &totalNo,
		&outcome, &b.EndTime, &escrow, &layoutVersion,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return domain.Bet{}, err
	}

	b.ID = uint64(betID)
	b.TotalYesStaked = uint64(totalYes)
	b.TotalNoStaked = uint64(totalNo)
	b.Outcome = domain.Outcome(outcome)
	b.LayoutVersion = uint8(layoutVersion)
	if b.Address, err = solana.PublicKeyFromBase58(addr); err != nil {
		return domain.Bet{}, fmt.Errorf("bad bet address %q: %w", addr, err)
	}
	if b.Creator, err = solana.PublicKeyFromBase58(creator); err != nil {
		return domain.Bet{}, fmt.Errorf("bad bet creator %q: %w", creator, err)
	}
	if b.Escrow, err = solana.PublicKeyFromBase58(escrow); err != nil {
		return domain.Bet{}, fmt.Errorf("bad bet escrow %q: %w", escrow, err)
	}
	return b, nil
}

func scanVote(row pgx.Row) (domain.Vote, error) {
	var (
		v             domain.Vote
		betID, amount int64
		user, addr    string
		layoutVersion int16
		claimedAt     *time.Time
	)
	err := row.Scan(
		&betID, &user, &addr, &v.Side, &amount,
		&v.Claimed, &layoutVersion, &v.CreatedAt, &claimedAt,
	)
	if err != nil {
		return domain.Vote{}, err
	}

	v.BetID = uint64(betID)
	v.Amount = uint64(amount)
	v.LayoutVersion = uint8(layoutVersion)
	v.ClaimedAt = claimedAt
	if v.User, err = solana.PublicKeyFromBase58(user); err != nil {
		return domain.Vote{}, fmt.Errorf("bad vote user %q: %w", user, err)
	}
	if v.Address, err = solana.PublicKeyFromBase58(addr); err != nil {
		return domain.Vote{}, fmt.Errorf("bad vote address %q: %w", addr, err)
	}
	return v, nil
}

func scanConfig(row pgx.Row) (domain.ProtocolConfig, error) {
	var (
		cfg               domain.ProtocolConfig
		addr, admin, mint string
		layoutVersion     int16
	)
	err := row.Scan(&addr, &admin, &mint, &layoutVersion, &cfg.CreatedAt)
	if err != nil {
		return domain.ProtocolConfig{}, err
	}

	cfg.LayoutVersion = uint8(layoutVersion)
	if cfg.Address, err = solana.PublicKeyFromBase58(addr); err != nil {
		return domain.ProtocolConfig{}, fmt.Errorf("bad config address %q: %w", addr, err)
	}
	if cfg.Admin, err = solana.PublicKeyFromBase58(admin); err != nil {
		return domain.ProtocolConfig{}, fmt.Errorf("bad config admin %q: %w", admin, err)
	}
	if cfg.AcceptedMint, err = solana.PublicKeyFromBase58(mint); err != nil {
		return domain.ProtocolConfig{}, fmt.Errorf("bad config mint %q: %w", mint, err)
	}
	return cfg, nil
}

func scanTokenAccount(row pgx.Row) (domain.TokenAccount, error) {
	var (
		a                 domain.TokenAccount
		balance           int64
		addr, owner, mint string
	)
	err := row.Scan(&addr, &owner, &mint, &balance, &a.CreatedAt)
	if err != nil {
		return domain.TokenAccount{}, err
	}

	a.Balance = uint64(balance)
	if a.Address, err = solana.PublicKeyFromBase58(addr); err != nil {
		return domain.TokenAccount{}, fmt.Errorf("bad token account address %q: %w", addr, err)
	}
	if a.Owner, err = solana.PublicKeyFromBase58(owner); err != nil {
		return domain.TokenAccount{}, fmt.Errorf("bad token account owner %q: %w", owner, err)
	}
	if a.Mint, err = solana.PublicKeyFromBase58(mint); err != nil {
		return domain.TokenAccount{}, fmt.Errorf("bad token account mint %q: %w", mint, err)
	}
	return a, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
