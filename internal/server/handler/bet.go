package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
	"github.com/ubadineke/sekadotfun-escrow/internal/escrow"
)

// BetHandler serves the bet lifecycle endpoints: creation, staking,
// resolution, claims, and reads.
type BetHandler struct {
	engine *escrow.Engine
	bets   domain.BetStore
	cache  domain.BetCache
	events domain.EventStore
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with all required dependencies. cache
// may be nil when Redis is not configured.
func NewBetHandler(engine *escrow.Engine, bets domain.BetStore, cache domain.BetCache, events domain.EventStore, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		engine: engine,
		bets:   bets,
		cache:  cache,
		events: events,
		logger: logHandler(logger, "bet"),
	}
}

// betView is the wire representation of a bet, extending the record with its
// derived status.
type betView struct {
	domain.Bet
	Status domain.BetStatus `json:"status"`
}

func newBetView(bet domain.Bet) betView {
	return betView{Bet: bet, Status: bet.Status(time.Now())}
}

type createBetRequest struct {
	BetID     uint64 `json:"bet_id"`
	Creator   string `json:"creator"`
	EndTime   int64  `json:"end_time"`
	Signature string `json:"signature"`
}

// CreateBet opens a new market.
// POST /api/bets
func (h *BetHandler) CreateBet(w http.ResponseWriter, r *http.Request) {
	var req createBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	creator, err := solana.PublicKeyFromBase58(req.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid creator public key")
		return
	}

	bet, err := h.engine.CreateMarket(r.Context(), escrow.CreateMarketParams{
		BetID:     req.BetID,
		Creator:   creator,
		EndTime:   req.EndTime,
		Signature: req.Signature,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBetView(bet))
}

type stakeRequest struct {
	User      string `json:"user"`
	Side      string `json:"side"` // "yes" or "no"
	Amount    uint64 `json:"amount"`
	Signature string `json:"signature"`
}

// PlaceStake stakes tokens on one side of a bet.
// POST /api/bets/{id}/stakes
func (h *BetHandler) PlaceStake(w http.ResponseWriter, r *http.Request) {
	betID, err := betIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	var req stakeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	user, err := solana.PublicKeyFromBase58(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user public key")
		return
	}
	var side bool
	switch req.Side {
	case "yes":
		side = true
	case "no":
		side = false
	default:
		writeError(w, http.StatusBadRequest, `side must be "yes" or "no"`)
		return
	}

	vote, err := h.engine.Stake(r.Context(), escrow.StakeParams{
		BetID:     betID,
		User:      user,
		Side:      side,
		Amount:    req.Amount,
		Signature: req.Signature,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, vote)
}

type resolveRequest struct {
	Outcome   string `json:"outcome"` // "yes" or "no"
	Resolver  string `json:"resolver"`
	Signature string `json:"signature"`
}

// ResolveBet sets a bet's outcome.
// POST /api/bets/{id}/resolve
func (h *BetHandler) ResolveBet(w http.ResponseWriter, r *http.Request) {
	betID, err := betIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	resolver, err := solana.PublicKeyFromBase58(req.Resolver)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid resolver public key")
		return
	}
	var outcome bool
	switch req.Outcome {
	case "yes":
		outcome = true
	case "no":
		outcome = false
	default:
		writeError(w, http.StatusBadRequest, `outcome must be "yes" or "no"`)
		return
	}

	bet, err := h.engine.Resolve(r.Context(), escrow.ResolveParams{
		BetID:     betID,
		Outcome:   outcome,
		Resolver:  resolver,
		Signature: req.Signature,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBetView(bet))
}

type claimRequest struct {
	User      string `json:"user"`
	Signature string `json:"signature"`
}

// ClaimReward pays out a winning vote.
// POST /api/bets/{id}/claims
func (h *BetHandler) ClaimReward(w http.ResponseWriter, r *http.Request) {
	betID, err := betIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	user, err := solana.PublicKeyFromBase58(req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user public key")
		return
	}

	paid, err := h.engine.Claim(r.Context(), escrow.ClaimParams{
		BetID:     betID,
		User:      user,
		Signature: req.Signature,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"bet_id": betID,
		"user":   user.String(),
		"amount": paid,
	})
}

// ListBets lists bets, newest first. ?status=unresolved narrows to bets
// without an outcome.
// GET /api/bets
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		bets []domain.Bet
		err  error
	)
	if r.URL.Query().Get("status") == "unresolved" {
		bets, err = h.bets.ListUnresolved(r.Context(), opts)
	} else {
		bets, err = h.bets.List(r.Context(), opts)
	}
	if err != nil {
		h.logger.Error("list bets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list bets")
		return
	}

	views := make([]betView, 0, len(bets))
	for _, bet := range bets {
		views = append(views, newBetView(bet))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bets": views, "count": len(views)})
}

// GetBet returns one bet, served from the cache when possible.
// GET /api/bets/{id}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	betID, err := betIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	if h.cache != nil {
		if bet, err := h.cache.Get(r.Context(), betID); err == nil {
			writeJSON(w, http.StatusOK, newBetView(bet))
			return
		}
	}

	bet, err := h.bets.GetByID(r.Context(), betID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "bet not found")
			return
		}
		h.logger.Error("get bet", "bet_id", betID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get bet")
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), bet); err != nil {
			h.logger.Warn("cache bet", "bet_id", betID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, newBetView(bet))
}

// ListBetEvents returns a bet's event history, oldest first.
// GET /api/bets/{id}/events
func (h *BetHandler) ListBetEvents(w http.ResponseWriter, r *http.Request) {
	betID, err := betIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	events, err := h.events.ListByBet(r.Context(), betID, parseListOpts(r))
	if err != nil {
		h.logger.Error("list bet events", "bet_id", betID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}
