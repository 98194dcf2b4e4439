package server

import (
	"context"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/scoreboard/internal/handler/health"
	"github.com/playperu/scoreboard/internal/scoreboard"
)

// Matches is the match workflow the handlers drive.
type Matches interface {
	Get(ctx context.Context) (*scoreboard.Match, error)
	Create(ctx context.Context, n scoreboard.NewMatch) (*scoreboard.Match, error)
	AdjustScore(ctx context.Context, team scoreboard.Team, delta int) (*scoreboard.Match, error)
	Reset(ctx context.Context) (*scoreboard.Match, error)
	ConfirmWin(ctx context.Context, team scoreboard.Team) (*scoreboard.Match, error)
	End(ctx context.Context) (*scoreboard.Match, error)
	History(ctx context.Context, limit int) ([]scoreboard.Match, error)
}

func addRoutes(r chi.Router, opts Options) {
	logger := opts.Logger

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Scoreboard API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, opts.Checks).Routes())
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/match", handleGetMatch(logger, opts.Matches))
		r.Post("/match", handleCreateMatch(logger, opts.Matches))
		r.Post("/match/score", handleScore(logger, opts.Matches))
		r.Post("/match/reset", handleReset(logger, opts.Matches))
		r.Post("/match/win", handleWin(logger, opts.Matches))
		r.Post("/match/end", handleEnd(logger, opts.Matches))
		r.Get("/match/history", handleHistory(logger, opts.Matches))

		r.Get("/events", handleEvents(logger, opts.Hub, opts.Matches, opts.KeepAlive))
		r.Get("/ws", handleStream(logger, opts.Hub, opts.Matches, opts.KeepAlive))
	})

	if dir := opts.StaticDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			logger.Info("serving viewer", "dir", dir)
			r.NotFound(handleViewer(dir))
		} else {
			logger.Warn("static dir not found, viewer disabled", "dir", dir)
		}
	}
}

func newCORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}).Handler
}
