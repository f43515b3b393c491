package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/ubadineke/sekadotfun-escrow/internal/blob/s3"
	"github.com/ubadineke/sekadotfun-escrow/internal/cache/redis"
	"github.com/ubadineke/sekadotfun-escrow/internal/config"
	"github.com/ubadineke/sekadotfun-escrow/internal/crypto"
	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
	"github.com/ubadineke/sekadotfun-escrow/internal/escrow"
	"github.com/ubadineke/sekadotfun-escrow/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Transactional protocol state.
	State escrow.State

	// Read stores.
	Bets   domain.BetStore
	Votes  domain.VoteStore
	Config domain.ConfigStore
	Events domain.EventStore

	// Redis-backed fanout; nil when Redis is not configured.
	BetCache  domain.BetCache
	SignalBus domain.SignalBus

	// Object storage; nil when S3 is not configured.
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Service signing identity; nil when no key is configured.
	Signer *crypto.Signer
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (authoritative state, required in every mode) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.State = postgres.NewState(pool)
	deps.Bets = postgres.NewBetStore(pool)
	deps.Votes = postgres.NewVoteStore(pool)
	deps.Config = postgres.NewConfigStore(pool)
	deps.Events = postgres.NewEventStore(pool)

	// --- Redis (cache and event fanout; optional) ---
	if cfg.Redis.Addr != "" {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BetCache = redis.NewBetCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		logger.InfoContext(ctx, "redis not configured, running without cache and event fanout")
	}

	// --- S3 blob storage (archiving; optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			postgres.NewEventStore(pool),
			postgres.NewBetStore(pool),
			logger,
		)
	} else {
		logger.InfoContext(ctx, "s3 not configured, running without archiving")
	}

	// --- Service signing identity (optional) ---
	if cfg.Protocol.PrivateKey != "" || cfg.Protocol.EncryptedKeyPath != "" {
		raw, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Protocol.PrivateKey,
			EncryptedKeyPath: cfg.Protocol.EncryptedKeyPath,
			KeyPassword:      cfg.Protocol.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load signing key: %w", err)
		}
		signer, err := crypto.NewSigner(raw)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}
		deps.Signer = signer
		logger.InfoContext(ctx, "service signing identity loaded",
			slog.String("public_key", signer.PublicKey().String()),
		)
	}

	return deps, cleanup, nil
}
