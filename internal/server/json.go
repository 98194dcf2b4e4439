package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return scoreboard.Invalid("invalid request body")
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeFailure maps a workflow error to a response. Client mistakes are
// answered with their own message; anything else is logged and hidden.
func writeFailure(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	switch {
	case errors.Is(err, scoreboard.ErrValidation),
		errors.Is(err, scoreboard.ErrConflict),
		errors.Is(err, scoreboard.ErrNoActiveMatch):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logger.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
