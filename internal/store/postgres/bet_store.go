package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// GetByID retrieves a bet by its id.
func (s *BetStore) GetByID(ctx context.Context, id uint64) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE bet_id = $1`, int64(id))
	bet, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet %d: %w", id, err)
	}
	return bet, nil
}

// GetByAddress retrieves a bet by its derived account address.
func (s *BetStore) GetByAddress(ctx context.Context, addr solana.PublicKey) (domain.Bet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+betCols+` FROM bets WHERE address = $1`, addr.String())
	bet, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet by address %s: %w", addr, err)
	}
	return bet, nil
}

// List returns bets with pagination and optional time filtering, newest first.
func (s *BetStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.list(ctx, "", opts)
}

// ListUnresolved returns bets without an outcome, newest first.
func (s *BetStore) ListUnresolved(ctx context.Context, opts domain.ListOpts) ([]domain.Bet, error) {
	return s.list(ctx, "outcome = 0", opts)
}

func (s *BetStore) list(ctx context.Context, where string, opts domain.ListOpts) ([]domain.Bet, error) {
	query := `SELECT ` + betCols + ` FROM bets`
	args := []any{}
	argIdx := 1

	addCond := func(cond string, val any) {
		if len(args) == 0 && where == "" {
			query += " WHERE "
		} else {
			query += " AND "
		}
		query += fmt.Sprintf(cond, argIdx)
		args = append(args, val)
		argIdx++
	}

	if where != "" {
		query += " WHERE " + where
	}
	if opts.Since != nil {
		addCond("created_at >= $%d", *opts.Since)
	}
	if opts.Until != nil {
		addCond("created_at <= $%d", *opts.Until)
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list bets rows: %w", err)
	}
	return bets, nil
}

// ListResolvedBefore returns resolved bets last touched before the cutoff,
// oldest first. The archiver pages through settled bets with it.
func (s *BetStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Bet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+betCols+`
		FROM bets WHERE outcome <> 0 AND updated_at < $1
		ORDER BY updated_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		bet, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolved bet: %w", err)
		}
		bets = append(bets, bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list resolved bets rows: %w", err)
	}
	return bets, nil
}

// Count returns the total number of bets.
func (s *BetStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM bets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count bets: %w", err)
	}
	return count, nil
}
