package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

const betTTL = 5 * time.Minute

// BetCache implements domain.BetCache using Redis strings holding JSON-
// serialized bets.
//
// Key schema:
//
//	bet:{id} - JSON-encoded domain.Bet
type BetCache struct {
	rdb *redis.Client
}

// NewBetCache creates a BetCache backed by the given Client.
func NewBetCache(c *Client) *BetCache {
	return &BetCache{rdb: c.rdb}
}

func betKey(id uint64) string { return "bet:" + strconv.FormatUint(id, 10) }

// Set stores a bet in the cache with a short TTL. The authoritative store
// remains the source of truth; the relay refreshes the entry on every event.
func (bc *BetCache) Set(ctx context.Context, bet domain.Bet) error {
	data, err := json.Marshal(bet)
	if err != nil {
		return fmt.Errorf("redis: marshal bet %d: %w", bet.ID, err)
	}
	if err := bc.rdb.Set(ctx, betKey(bet.ID), data, betTTL).Err(); err != nil {
		return fmt.Errorf("redis: set bet %d: %w", bet.ID, err)
	}
	return nil
}

// Get retrieves a bet by id. It returns domain.ErrNotFound when the key does
// not exist.
func (bc *BetCache) Get(ctx context.Context, id uint64) (domain.Bet, error) {
	data, err := bc.rdb.Get(ctx, betKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Bet{}, domain.ErrNotFound
		}
		return domain.Bet{}, fmt.Errorf("redis: get bet %d: %w", id, err)
	}

	var bet domain.Bet
	if err := json.Unmarshal(data, &bet); err != nil {
		return domain.Bet{}, fmt.Errorf("redis: unmarshal bet %d: %w", id, err)
	}
	return bet, nil
}

// Invalidate removes a bet from the cache.
func (bc *BetCache) Invalidate(ctx context.Context, id uint64) error {
	if err := bc.rdb.Del(ctx, betKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate bet %d: %w", id, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BetCache = (*BetCache)(nil)
