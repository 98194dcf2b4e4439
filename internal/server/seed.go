package server

import (
	"context"
	"log/slog"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

// SeedDemo starts a demo singles match when nothing is in progress, so a
// fresh install has something on screen. It does nothing if a match is
// already active.
func SeedDemo(ctx context.Context, logger *slog.Logger, matches Matches) error {
	active, err := matches.Get(ctx)
	if err != nil {
		return err
	}
	if active != nil {
		return nil
	}

	m, err := matches.Create(ctx, scoreboard.NewMatch{
		Kind:        scoreboard.KindSingles,
		SideA:       []string{"Demo Player 1"},
		SideB:       []string{"Demo Player 2"},
		PointsToWin: scoreboard.DefaultPointsToWin,
	})
	if err != nil {
		return err
	}

	logger.Info("demo match created", "match", m.ID)
	return nil
}
