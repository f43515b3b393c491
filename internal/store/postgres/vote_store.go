package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// VoteStore implements domain.VoteStore using PostgreSQL.
type VoteStore struct {
	pool *pgxpool.Pool
}

// NewVoteStore creates a VoteStore backed by the given connection pool.
func NewVoteStore(pool *pgxpool.Pool) *VoteStore {
	return &VoteStore{pool: pool}
}

// Get retrieves the vote one user holds on one bet.
func (s *VoteStore) Get(ctx context.Context, betID uint64, user solana.PublicKey) (domain.Vote, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+voteCols+` FROM votes WHERE bet_id = $1 AND user_key = $2`,
		int64(betID), user.String())
	vote, err := scanVote(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Vote{}, domain.ErrNotFound
		}
		return domain.Vote{}, fmt.Errorf("postgres: get vote %d/%s: %w", betID, user, err)
	}
	return vote, nil
}

// ListByBet returns all votes on a bet, oldest first.
func (s *VoteStore) ListByBet(ctx context.Context, betID uint64, opts domain.ListOpts) ([]domain.Vote, error) {
	return s.list(ctx,
		`SELECT `+voteCols+` FROM votes WHERE bet_id = $1 ORDER BY created_at ASC`,
		int64(betID), opts)
}

// ListByUser returns all votes placed by a user, oldest first.
func (s *VoteStore) ListByUser(ctx context.Context, user solana.PublicKey, opts domain.ListOpts) ([]domain.Vote, error) {
	return s.list(ctx,
		`SELECT `+voteCols+` FROM votes WHERE user_key = $1 ORDER BY created_at ASC`,
		user.String(), opts)
}

func (s *VoteStore) list(ctx context.Context, query string, key any, opts domain.ListOpts) ([]domain.Vote, error) {
	args := []any{key}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list votes: %w", err)
	}
	defer rows.Close()

	var votes []domain.Vote
	for rows.Next() {
		vote, err := scanVote(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan vote: %w", err)
		}
		votes = append(votes, vote)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list votes rows: %w", err)
	}
	return votes, nil
}
