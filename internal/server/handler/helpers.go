package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gagliardetto/solana-go"

	"github.com/ubadineke/sekadotfun-escrow/internal/domain"
)

// writeJSON serializes v and writes it with the given status. A marshal
// failure degrades to a generic 500 body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps protocol errors onto HTTP status codes and sends the
// error message as the response body.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrAlreadyClaimed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidEndTime):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, domain.ErrBadSignature):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrBetClosed),
		errors.Is(err, domain.ErrBetStillOpen),
		errors.Is(err, domain.ErrNotResolved),
		errors.Is(err, domain.ErrNotWinner),
		errors.Is(err, domain.ErrNoWinners),
		errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusUnprocessableEntity
	}
	writeError(w, status, err.Error())
}

// queryInt parses a non-negative integer query parameter, falling back to
// def on absence or garbage.
func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// parseListOpts reads pagination from the query string. Limit defaults to
// 50 and is capped at 500; offset defaults to 0.
func parseListOpts(r *http.Request) domain.ListOpts {
	limit := queryInt(r, "limit", 50)
	if limit == 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return domain.ListOpts{
		Limit:  limit,
		Offset: queryInt(r, "offset", 0),
	}
}

// betIDParam parses the {id} path parameter as a bet id.
func betIDParam(r *http.Request) (uint64, error) {
	return strconv.ParseUint(r.PathValue("id"), 10, 64)
}

// pubkeyParam parses a base58 public key path parameter.
func pubkeyParam(r *http.Request, name string) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(r.PathValue(name))
}

// decodeBody decodes a JSON request body into v, rejecting unknown fields.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// logHandler tags a logger with the handler name.
func logHandler(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("handler", name))
}
