package handler

import (
	"log/slog"
	"net/http"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// VoteHandler serves vote read endpoints.
type VoteHandler struct {
	votes  domain.VoteStore
	logger *slog.Logger
}

// NewVoteHandler creates a VoteHandler backed by the given store.
func NewVoteHandler(votes domain.VoteStore, logger *slog.Logger) *VoteHandler {
	return &VoteHandler{
		votes:  votes,
		logger: logHandler(logger, "vote"),
	}
}

// ListByBet returns all votes on a bet, oldest first.
// GET /api/bets/{id}/votes
func (h *VoteHandler) ListByBet(w http.ResponseWriter, r *http.Request) {
	betID, err := betIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}

	votes, err := h.votes.ListByBet(r.Context(), betID, parseListOpts(r))
	if err != nil {
		h.logger.Error("list votes by bet", "bet_id", betID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list votes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes, "count": len(votes)})
}

// ListByUser returns all votes placed by one user, oldest first.
// GET /api/users/{pubkey}/votes
func (h *VoteHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	user, err := pubkeyParam(r, "pubkey")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid public key")
		return
	}

	votes, err := h.votes.ListByUser(r.Context(), user, parseListOpts(r))
	if err != nil {
		h.logger.Error("list votes by user", "user", user.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list votes")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"votes": votes, "count": len(votes)})
}

// GetVote returns the vote one user holds on one bet.
// GET /api/bets/{id}/votes/{pubkey}
func (h *VoteHandler) GetVote(w http.ResponseWriter, r *http.Request) {
	betID, err := betIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid bet id")
		return
	}
	user, err := pubkeyParam(r, "pubkey")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid public key")
		return
	}

	vote, err := h.votes.Get(r.Context(), betID, user)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vote)
}
