// Package archive moves cold protocol data from the database to object
// storage on a retention schedule.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// Runner executes archive passes against the configured blob archiver.
type Runner struct {
	archiver      domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewRunner creates a Runner that archives data older than retentionDays.
func NewRunner(archiver domain.Archiver, retentionDays int, logger *slog.Logger) *Runner {
	return &Runner{
		archiver:      archiver,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Run executes a single archive pass. Events older than the retention cutoff
// are uploaded and pruned; settled bets are uploaded but kept in the store.
func (r *Runner) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(r.retentionDays) * 24 * time.Hour)
	r.logger.Info("starting archive pass",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", r.retentionDays),
	)

	events, err := r.archiver.ArchiveEvents(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive: events before %v: %w", cutoff, err)
	}

	bets, err := r.archiver.ArchiveSettledBets(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archive: settled bets before %v: %w", cutoff, err)
	}

	r.logger.Info("archive pass complete",
		slog.Int64("events_archived", events),
		slog.Int64("bets_archived", bets),
	)
	return nil
}

// RunLoop runs archive passes on a fixed interval until the context is
// cancelled. A failed pass is logged and retried on the next tick.
func (r *Runner) RunLoop(ctx context.Context, interval time.Duration) error {
	r.logger.Info("archive loop started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("archive loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.Error("archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}
