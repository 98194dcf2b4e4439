package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

type MatchResponse struct {
	Match *scoreboard.Match `json:"match"`
}

type CreateMatchRequest struct {
	Type        string `json:"type"`
	Player1     string `json:"player1"`
	Player2     string `json:"player2"`
	Player3     string `json:"player3,omitempty"`
	Player4     string `json:"player4,omitempty"`
	PointsToWin *int   `json:"points_to_win,omitempty"`
}

// UnmarshalJSON leaves PointsToWin nil only when the key is absent. An
// explicit null or a non-integer decodes as 0 so validation rejects it.
func (req *CreateMatchRequest) UnmarshalJSON(data []byte) error {
	type plain CreateMatchRequest
	var raw struct {
		plain
		PointsToWin json.RawMessage `json:"points_to_win"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*req = CreateMatchRequest(raw.plain)
	if raw.PointsToWin != nil {
		var n int
		if err := json.Unmarshal(raw.PointsToWin, &n); err != nil {
			n = 0
		}
		req.PointsToWin = &n
	}
	return nil
}

func (req CreateMatchRequest) newMatch() scoreboard.NewMatch {
	a, b := scoreboard.Sides(scoreboard.Kind(req.Type), [4]string{req.Player1, req.Player2, req.Player3, req.Player4})
	target := scoreboard.DefaultPointsToWin
	if req.PointsToWin != nil {
		target = *req.PointsToWin
	}
	return scoreboard.NewMatch{
		Kind:        scoreboard.Kind(req.Type),
		SideA:       a,
		SideB:       b,
		PointsToWin: target,
	}
}

type ScoreRequest struct {
	Team      int   `json:"team"`
	Increment *bool `json:"increment"`
}

type WinRequest struct {
	Winner int `json:"winner"`
}

type EndResponse struct {
	Success    bool              `json:"success"`
	EndedMatch *scoreboard.Match `json:"endedMatch"`
}

type HistoryResponse struct {
	Matches []scoreboard.Match `json:"matches"`
}

func handleGetMatch(logger *slog.Logger, matches Matches) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := matches.Get(r.Context())
		if err != nil {
			writeFailure(w, logger, "get", err)
			return
		}
		writeJSON(w, http.StatusOK, MatchResponse{Match: m})
	}
}

func handleCreateMatch(logger *slog.Logger, matches Matches) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateMatchRequest
		if err := readJSON(r, &req); err != nil {
			writeFailure(w, logger, "create", err)
			return
		}

		m, err := matches.Create(r.Context(), req.newMatch())
		if err != nil {
			writeFailure(w, logger, "create", err)
			return
		}
		writeJSON(w, http.StatusOK, MatchResponse{Match: m})
	}
}

func handleScore(logger *slog.Logger, matches Matches) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScoreRequest
		if err := readJSON(r, &req); err != nil {
			writeFailure(w, logger, "score", err)
			return
		}
		if req.Increment == nil {
			writeError(w, http.StatusBadRequest, "increment must be true or false")
			return
		}

		delta := 1
		if !*req.Increment {
			delta = -1
		}

		m, err := matches.AdjustScore(r.Context(), scoreboard.Team(req.Team), delta)
		if err != nil {
			writeFailure(w, logger, "score", err)
			return
		}
		writeJSON(w, http.StatusOK, MatchResponse{Match: m})
	}
}

func handleReset(logger *slog.Logger, matches Matches) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := matches.Reset(r.Context())
		if err != nil {
			writeFailure(w, logger, "reset", err)
			return
		}
		writeJSON(w, http.StatusOK, MatchResponse{Match: m})
	}
}

func handleWin(logger *slog.Logger, matches Matches) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WinRequest
		if err := readJSON(r, &req); err != nil {
			writeFailure(w, logger, "win", err)
			return
		}

		m, err := matches.ConfirmWin(r.Context(), scoreboard.Team(req.Winner))
		if err != nil {
			writeFailure(w, logger, "win", err)
			return
		}
		writeJSON(w, http.StatusOK, MatchResponse{Match: m})
	}
}

func handleEnd(logger *slog.Logger, matches Matches) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := matches.End(r.Context())
		if err != nil {
			writeFailure(w, logger, "end", err)
			return
		}
		writeJSON(w, http.StatusOK, EndResponse{Success: true, EndedMatch: m})
	}
}

func handleHistory(logger *slog.Logger, matches Matches) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = n
		}

		list, err := matches.History(r.Context(), limit)
		if err != nil {
			writeFailure(w, logger, "history", err)
			return
		}
		if list == nil {
			list = []scoreboard.Match{}
		}
		writeJSON(w, http.StatusOK, HistoryResponse{Matches: list})
	}
}
