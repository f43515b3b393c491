package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// ConfigStore implements domain.ConfigStore using PostgreSQL.
type ConfigStore struct {
	pool *pgxpool.Pool
}

// NewConfigStore creates a ConfigStore backed by the given connection pool.
func NewConfigStore(pool *pgxpool.Pool) *ConfigStore {
	return &ConfigStore{pool: pool}
}

// Get returns the singleton protocol config.
func (s *ConfigStore) Get(ctx context.Context) (domain.ProtocolConfig, error) {
	row := s.pool.QueryRow(ctx, `
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
