package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse documents /healthz; keys are check names.
type HealthResponse map[string]struct {
	Status    string `json:"status" enum:"ok,error"`
	LatencyMS int64  `json:"latency_ms"`
}

// matchDoc mirrors the wire layout of scoreboard.Match, which encodes itself
// and is therefore opaque to reflection.
type matchDoc struct {
	ID          string       `json:"id"`
	Type        string       `json:"type" enum:"singles,doubles"`
	Player1     string       `json:"player1"`
	Player2     string       `json:"player2"`
	Player3     *string      `json:"player3"`
	Player4     *string      `json:"player4"`
	Score1      int          `json:"score1" minimum:"0"`
	Score2      int          `json:"score2" minimum:"0"`
	PointsToWin int          `json:"points_to_win" enum:"11,21"`
	Winner      *int         `json:"winner" enum:"1,2"`
	IsActive    bool         `json:"is_active"`
	CreatedAt   string       `json:"created_at" format:"date-time"`
	UpdatedAt   string       `json:"updated_at" format:"date-time"`
	GameState   gameStateDoc `json:"game_state"`
}

type gameStateDoc struct {
	Type          string `json:"type" enum:"normal,deuce,advantage,win"`
	AdvantageTeam *int   `json:"advantage_team,omitempty" enum:"1,2"`
	Winner        *int   `json:"winner,omitempty" enum:"1,2"`
}

type matchResponseDoc struct {
	Match *matchDoc `json:"match"`
}

type endResponseDoc struct {
	Success    bool      `json:"success"`
	EndedMatch *matchDoc `json:"endedMatch"`
}

type historyResponseDoc struct {
	Matches []matchDoc `json:"matches"`
}

type historyRequestDoc struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" default:"20"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Scoreboard API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Live table tennis scoreboard: one active match, pushed to every viewer.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /api/match
	getMatch, _ := r.NewOperationContext(http.MethodGet, "/api/match")
	getMatch.SetSummary("Current match")
	getMatch.SetDescription("Returns the active match, or null when none is in progress.")
	getMatch.AddRespStructure(matchResponseDoc{}, openapi.WithHTTPStatus(http.StatusOK))
	getMatch.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(getMatch)

	// POST /api/match
	postMatch, _ := r.NewOperationContext(http.MethodPost, "/api/match")
	postMatch.SetSummary("Start match")
	postMatch.SetDescription("Starts a new match. Fails while another match is active.")
	postMatch.AddReqStructure(CreateMatchRequest{})
	postMatch.AddRespStructure(matchResponseDoc{}, openapi.WithHTTPStatus(http.StatusOK))
	postMatch.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postMatch.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusInternalServerError))
	_ = r.AddOperation(postMatch)

	// POST /api/match/score
	postScore, _ := r.NewOperationContext(http.MethodPost, "/api/match/score")
	postScore.SetSummary("Adjust score")
	postScore.SetDescription("Adds or removes one point for a team. Scores never go below zero; increments are refused once the game is won.")
	postScore.AddReqStructure(ScoreRequest{})
	postScore.AddRespStructure(matchResponseDoc{}, openapi.WithHTTPStatus(http.StatusOK))
	postScore.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postScore)

	// POST /api/match/reset
	postReset, _ := r.NewOperationContext(http.MethodPost, "/api/match/reset")
	postReset.SetSummary("Reset scores")
	postReset.SetDescription("Sets both scores of the active match back to zero.")
	postReset.AddRespStructure(matchResponseDoc{}, openapi.WithHTTPStatus(http.StatusOK))
	postReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postReset)

	// POST /api/match/win
	postWin, _ := r.NewOperationContext(http.MethodPost, "/api/match/win")
	postWin.SetSummary("Confirm win")
	postWin.SetDescription("Ends the match with a winner. The winner must match the stored scores.")
	postWin.AddReqStructure(WinRequest{})
	postWin.AddRespStructure(matchResponseDoc{}, openapi.WithHTTPStatus(http.StatusOK))
	postWin.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postWin)

	// POST /api/match/end
	postEnd, _ := r.NewOperationContext(http.MethodPost, "/api/match/end")
	postEnd.SetSummary("End match")
	postEnd.SetDescription("Ends the active match without recording a winner.")
	postEnd.AddRespStructure(endResponseDoc{}, openapi.WithHTTPStatus(http.StatusOK))
	postEnd.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(postEnd)

	// GET /api/match/history
	getHistory, _ := r.NewOperationContext(http.MethodGet, "/api/match/history")
	getHistory.SetSummary("Match history")
	getHistory.SetDescription("Lists the most recent matches, newest first.")
	getHistory.AddReqStructure(historyRequestDoc{})
	getHistory.AddRespStructure(historyResponseDoc{}, openapi.WithHTTPStatus(http.StatusOK))
	getHistory.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(getHistory)

	// GET /api/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream. Sends a connected event, the current match, then every change.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/ws")
	getWS.SetSummary("WebSocket event stream")
	getWS.SetDescription("Upgrades to a WebSocket carrying the same JSON events as /api/events.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("application/json"))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
