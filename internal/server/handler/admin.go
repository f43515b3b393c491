package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
	"github.com/ubadineke/sekadotfun-escrow/internal/escrow"
)

// AdminHandler serves operator-only endpoints: protocol config
// initialization, the token faucet, and archive triggers. The server mounts
// it behind the admin auth middleware.
type AdminHandler struct {
	engine   *escrow.Engine
	config   domain.ConfigStore
	archiver domain.Archiver
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler. archiver may be nil when object
// storage is not configured.
func NewAdminHandler(engine *escrow.Engine, config domain.ConfigStore, archiver domain.Archiver, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine:   engine,
		config:   config,
		archiver: archiver,
		logger:   logHandler(logger, "admin"),
	}
}

type initConfigRequest struct {
	Admin     string `json:"admin"`
	Mint      string `json:"mint"`
	Signature string `json:"signature"`
}

// InitializeConfig creates the singleton protocol config.
// POST /api/admin/config
func (h *AdminHandler) InitializeConfig(w http.ResponseWriter, r *http.Request) {
	var req initConfigRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	admin, err := solana.PublicKeyFromBase58(req.Admin)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid admin public key")
		return
	}
	mint, err := solana.PublicKeyFromBase58(req.Mint)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid mint public key")
		return
	}

	cfg, err := h.engine.InitializeConfig(r.Context(), escrow.InitializeConfigParams{
		Admin:     admin,
		Mint:      mint,
		Signature: req.Signature,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cfg)
}

// GetConfig returns the protocol config.
// GET /api/admin/config
func (h *AdminHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.config.Get(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

type faucetRequest struct {
	User   string `json:"user"`
	Amount uint64 `json:"amount"`
}

// Faucet issues tokens of the accepted mint to a user.
// POST /api/admin/faucet
func (h *AdminHandler) Faucet(w http.ResponseWriter, r *http.Request) {
	var req faucetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	user, err := solana.PublicKeyFromBase58(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user public key")
		return
	}

	acct, err := h.engine.Faucet(r.Context(), user, req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type archiveRequest struct {
	Before time.Time `json:"before"`
}

// TriggerArchive archives events and settled bets older than the cutoff.
// POST /api/admin/archive
func (h *AdminHandler) TriggerArchive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "object storage not configured")
		return
	}

	var req archiveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Before.IsZero() {
		writeError(w, http.StatusBadRequest, "before is required")
		return
	}

	events, err := h.archiver.ArchiveEvents(r.Context(), req.Before)
	if err != nil {
		h.logger.Error("archive events", "error", err)
		writeError(w, http.StatusInternalServerError, "archive events failed")
		return
	}
	bets, err := h.archiver.ArchiveSettledBets(r.Context(), req.Before)
	if err != nil {
		h.logger.Error("archive settled bets", "error", err)
		writeError(w, http.StatusInternalServerError, "archive settled bets failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events_archived": events,
		"bets_archived":   bets,
	})
}
