// Package matchstore persists the single active match and serializes every
// mutation of it.
package matchstore

import (
	"context"
	"time"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

// Store owns the match records. Implementations guarantee that at most one
// match is active and that MutateActive is an atomic read-modify-write.
type Store interface {
	// CreateActive inserts a new active match, or fails with
	// scoreboard.ErrAlreadyActive.
	CreateActive(ctx context.Context, n scoreboard.NewMatch) (*scoreboard.Match, error)

	// Active returns the active match, or nil when there is none.
	Active(ctx context.Context) (*scoreboard.Match, error)

	// MutateActive applies fn to the active match inside one transaction. An
	// error from fn aborts the mutation and is returned unchanged.
	MutateActive(ctx context.Context, fn func(*scoreboard.Match) error) (*scoreboard.Match, error)

	// Deactivate clears the active flag, recording the winner for WonBy.
	Deactivate(ctx context.Context, r Reason) (*scoreboard.Match, error)

	// Recent lists the newest matches, active or not.
	Recent(ctx context.Context, limit int) ([]scoreboard.Match, error)

	Ping(ctx context.Context) error
}

// Reason says why a match stops being active.
type Reason struct {
	winner scoreboard.Team
}

// Ended is an administrative end without a winner.
func Ended() Reason { return Reason{} }

// WonBy is a confirmed win.
func WonBy(t scoreboard.Team) Reason { return Reason{winner: t} }

func (r Reason) Winner() scoreboard.Team { return r.winner }

// Apply marks m inactive for this reason.
func (r Reason) Apply(m *scoreboard.Match) error {
	m.Active = false
	m.Winner = r.winner
	return nil
}

// mutate runs fn on a copy of cur and returns the record to persist. Fields
// fixed at creation are restored whatever fn did, scores are floored at zero
// and a winner only survives on a record that is no longer active.
func mutate(cur *scoreboard.Match, fn func(*scoreboard.Match) error, now time.Time) (*scoreboard.Match, error) {
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	next.ID = cur.ID
	next.Kind = cur.Kind
	next.SideA = cur.SideA
	next.SideB = cur.SideB
	next.PointsToWin = cur.PointsToWin
	next.CreatedAt = cur.CreatedAt

	next.ScoreA = max(0, next.ScoreA)
	next.ScoreB = max(0, next.ScoreB)
	if next.Active || !next.Winner.Valid() {
		next.Winner = 0
	}
	next.UpdatedAt = now
	return next, nil
}

func newRecord(id string, n scoreboard.NewMatch, now time.Time) *scoreboard.Match {
	return &scoreboard.Match{
		ID:          id,
		Kind:        n.Kind,
		SideA:       append([]string(nil), n.SideA...),
		SideB:       append([]string(nil), n.SideB...),
		PointsToWin: n.PointsToWin,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > 100:
		return 100
	}
	return limit
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
