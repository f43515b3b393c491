package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ubadineke/sekadotfun-escrow/internal/archive"
	"github.com/ubadineke/sekadotfun-escrow/internal/crypto"
	"github.com/ubadineke/sekadotfun-escrow/internal/escrow"
	"github.com/ubadineke/sekadotfun-escrow/internal/relay"
	"github.com/ubadineke/sekadotfun-escrow/internal/server"
	"github.com/ubadineke/sekadotfun-escrow/internal/server/handler"
	"github.com/ubadineke/sekadotfun-escrow/internal/server/ws"
)

// ServeMode runs the API server, the event relay, the WebSocket hub, and the
// background archive loop.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	if deps.Signer != nil && deps.Signer.PublicKey().String() != a.cfg.Protocol.AdminPublicKey {
		a.logger.WarnContext(ctx, "service signing key does not match the configured admin",
			slog.String("signer", deps.Signer.PublicKey().String()),
			slog.String("admin", a.cfg.Protocol.AdminPublicKey),
		)
	}

	// Event relay: persists events and fans them out over Redis.
	rly := relay.New(deps.Events, deps.SignalBus, deps.BetCache, deps.Bets, a.logger)
	g.Go(func() error {
		return rly.Run(ctx)
	})

	engine := escrow.NewEngine(deps.State, rly, a.logger)

	// WebSocket hub needs the Redis fanout.
	var hub *ws.Hub
	if deps.SignalBus != nil {
		hub = ws.NewHub(deps.SignalBus, a.logger, ws.Config{
			Mode:      a.cfg.Mode,
			StartedAt: time.Now().UTC(),
		})
		g.Go(func() error {
			return hub.Run(ctx)
		})
	}

	var adminAuth *crypto.AdminAuth
	if a.cfg.Server.AdminKey != "" {
		adminAuth = &crypto.AdminAuth{
			Key:    a.cfg.Server.AdminKey,
			Secret: a.cfg.Server.AdminSecret,
		}
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		AdminAuth:   adminAuth,
	}, server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Bets:   handler.NewBetHandler(engine, deps.Bets, deps.BetCache, deps.Events, a.logger),
		Votes:  handler.NewVoteHandler(deps.Votes, a.logger),
		Admin:  handler.NewAdminHandler(engine, deps.Config, deps.Archiver, a.logger),
	}, hub, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	// Background archive loop when object storage is wired.
	if deps.Archiver != nil {
		runner := archive.NewRunner(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
		g.Go(func() error {
			err := runner.RunLoop(ctx, a.cfg.Archive.Interval.Duration)
			if ctx.Err() != nil {
				return nil
			}
			return err
		})
	}

	return g.Wait()
}

// ArchiveMode runs a single archive pass and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode requires object storage (s3.bucket)")
	}

	runner := archive.NewRunner(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	return runner.Run(ctx)
}
