// Package server exposes the escrow protocol over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ubadineke/sekadotfun-escrow/internal/crypto"
	"github.com/ubadineke/sekadotfun-escrow/internal/server/handler"
	"github.com/ubadineke/sekadotfun-escrow/internal/server/middleware"
	"github.com/ubadineke/sekadotfun-escrow/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string            // if empty, public API authentication is disabled
	AdminAuth   *crypto.AdminAuth // if nil, admin endpoints reject all requests
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health *handler.HealthHandler
	Bets   *handler.BetHandler
	Votes  *handler.VoteHandler
	Admin  *handler.AdminHandler
}

// Server is the HTTP + WebSocket API server for the escrow protocol.
type Server struct {
	http   *http.Server
	logger *slog.Logger
}

// NewServer registers all routes and builds the middleware chain:
// CORS, then request logging, then API-key auth, then the mux.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Bet lifecycle.
	mux.HandleFunc("POST /api/bets", handlers.Bets.CreateBet)
	mux.HandleFunc("GET /api/bets", handlers.Bets.ListBets)
	mux.HandleFunc("GET /api/bets/{id}", handlers.Bets.GetBet)
	mux.HandleFunc("POST /api/bets/{id}/stakes", handlers.Bets.PlaceStake)
	mux.HandleFunc("POST /api/bets/{id}/resolve", handlers.Bets.ResolveBet)
	mux.HandleFunc("POST /api/bets/{id}/claims", handlers.Bets.ClaimReward)
	mux.HandleFunc("GET /api/bets/{id}/events", handlers.Bets.ListBetEvents)

	// Vote reads.
	mux.HandleFunc("GET /api/bets/{id}/votes", handlers.Votes.ListByBet)
	mux.HandleFunc("GET /api/bets/{id}/votes/{pubkey}", handlers.Votes.GetVote)
	mux.HandleFunc("GET /api/users/{pubkey}/votes", handlers.Votes.ListByUser)

	// Admin surface, HMAC-authenticated separately from the public API.
	adminAuth := middleware.AdminAuth(cfg.AdminAuth)
	mux.Handle("POST /api/admin/config", adminAuth(http.HandlerFunc(handlers.Admin.InitializeConfig)))
	mux.Handle("GET /api/admin/config", adminAuth(http.HandlerFunc(handlers.Admin.GetConfig)))
	mux.Handle("POST /api/admin/faucet", adminAuth(http.HandlerFunc(handlers.Admin.Faucet)))
	mux.Handle("POST /api/admin/archive", adminAuth(http.HandlerFunc(handlers.Admin.TriggerArchive)))

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = cors(cfg.CORSOrigins)(h)

	return &Server{
		http: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      h,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start listens until the server fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

// cors sets CORS headers for allowed origins and answers preflights. An
// empty origin list allows everything.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := func(origin string) bool {
		if len(origins) == 0 {
			return true
		}
		for _, o := range origins {
			if strings.EqualFold(o, "*") || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if origin := r.Header.Get("Origin"); origin != "" && allowed(origin) {
				hdr := w.Header()
				hdr.Set("Access-Control-Allow-Origin", origin)
				hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				hdr.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-SEKAD-API-KEY, X-SEKAD-TIMESTAMP, X-SEKAD-SIGNATURE")
				hdr.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
