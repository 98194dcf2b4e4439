package matchstore_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/scoreboard/internal/database"
	"github.com/playperu/scoreboard/internal/matchstore"
	"github.com/playperu/scoreboard/internal/migrations"
	"github.com/playperu/scoreboard/internal/scoreboard"
)

func newSQLite(t *testing.T) matchstore.Store {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, filepath.Join(t.TempDir(), "scoreboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = migrations.Run(ctx, db)
	require.NoError(t, err)
	return matchstore.NewSQLite(db)
}

func newPostgres(t *testing.T) matchstore.Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	s, err := matchstore.NewPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	_, err = s.Migrate(ctx)
	require.NoError(t, err)

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, `TRUNCATE matches`)
	require.NoError(t, err)
	return s
}

func singles() scoreboard.NewMatch {
	return scoreboard.NewMatch{
		Kind:        scoreboard.KindSingles,
		SideA:       []string{"Ana"},
		SideB:       []string{"Bo"},
		PointsToWin: 11,
	}
}

func TestSQLite(t *testing.T)   { runStoreTests(t, newSQLite) }
func TestPostgres(t *testing.T) { runStoreTests(t, newPostgres) }

func runStoreTests(t *testing.T, open func(t *testing.T) matchstore.Store) {
	t.Run("no active match", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		m, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Nil(t, m)

		_, err = s.MutateActive(ctx, func(*scoreboard.Match) error { return nil })
		assert.ErrorIs(t, err, scoreboard.ErrNoActiveMatch)

		_, err = s.Deactivate(ctx, matchstore.Ended())
		assert.ErrorIs(t, err, scoreboard.ErrNoActiveMatch)
	})

	t.Run("create and read back", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreateActive(ctx, scoreboard.NewMatch{
			Kind:        scoreboard.KindDoubles,
			SideA:       []string{"Ana", "Cy"},
			SideB:       []string{"Bo", "Di"},
			PointsToWin: 21,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, created.ID)
		assert.True(t, created.Active)

		got, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})

	t.Run("second create conflicts", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.CreateActive(ctx, singles())
		require.NoError(t, err)

		_, err = s.CreateActive(ctx, singles())
		assert.ErrorIs(t, err, scoreboard.ErrAlreadyActive)
		assert.ErrorIs(t, err, scoreboard.ErrConflict)
	})

	t.Run("concurrent creates", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		const n = 8
		errs := make([]error, n)
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.CreateActive(ctx, singles())
			}()
		}
		wg.Wait()

		var ok, conflicts int
		for _, err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, scoreboard.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, conflicts)
	})

	t.Run("mutation round trip", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		created, err := s.CreateActive(ctx, singles())
		require.NoError(t, err)

		updated, err := s.MutateActive(ctx, func(m *scoreboard.Match) error {
			m.Adjust(scoreboard.TeamA, 1)
			m.PointsToWin = 21
			m.SideA = []string{"Mallory"}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated.ScoreA)
		assert.Equal(t, 11, updated.PointsToWin, "points to win is fixed at creation")
		assert.Equal(t, []string{"Ana"}, updated.SideA)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
		assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

		got, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
	})

	t.Run("scores never go negative", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.CreateActive(ctx, singles())
		require.NoError(t, err)

		m, err := s.MutateActive(ctx, func(m *scoreboard.Match) error {
			m.ScoreA = -3
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 0, m.ScoreA)
	})

	t.Run("failed mutation leaves state intact", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		before, err := s.CreateActive(ctx, singles())
		require.NoError(t, err)

		boom := errors.New("boom")
		_, err = s.MutateActive(ctx, func(m *scoreboard.Match) error {
			m.ScoreA = 7
			return boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, before, got)
	})

	t.Run("concurrent increments all land", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.CreateActive(ctx, singles())
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				team := scoreboard.TeamA
				if i%2 == 1 {
					team = scoreboard.TeamB
				}
				_, err := s.MutateActive(ctx, func(m *scoreboard.Match) error {
					m.Adjust(team, 1)
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		got, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, n/2, got.ScoreA)
		assert.Equal(t, n/2, got.ScoreB)
	})

	t.Run("deactivate", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.CreateActive(ctx, singles())
		require.NoError(t, err)

		ended, err := s.Deactivate(ctx, matchstore.Ended())
		require.NoError(t, err)
		assert.False(t, ended.Active)
		assert.False(t, ended.Winner.Valid())

		_, err = s.Deactivate(ctx, matchstore.Ended())
		assert.ErrorIs(t, err, scoreboard.ErrNoActiveMatch)

		_, err = s.CreateActive(ctx, singles())
		require.NoError(t, err)

		won, err := s.Deactivate(ctx, matchstore.WonBy(scoreboard.TeamB))
		require.NoError(t, err)
		assert.Equal(t, scoreboard.TeamB, won.Winner)

		m, err := s.Active(ctx)
		require.NoError(t, err)
		assert.Nil(t, m)

		recent, err := s.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, won.ID, recent[0].ID)
		assert.Equal(t, scoreboard.TeamB, recent[0].Winner)
		assert.Equal(t, ended.ID, recent[1].ID)
	})

	t.Run("winner needs inactive record", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()

		_, err := s.CreateActive(ctx, singles())
		require.NoError(t, err)

		m, err := s.MutateActive(ctx, func(m *scoreboard.Match) error {
			m.Winner = scoreboard.TeamA
			return nil
		})
		require.NoError(t, err)
		assert.False(t, m.Winner.Valid())
	})
}
