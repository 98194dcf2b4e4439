// Package match implements the operations an admin performs on the active
// match. Every successful write is published; failed writes never are.
package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/playperu/scoreboard/internal/broadcast"
	"github.com/playperu/scoreboard/internal/matchstore"
	"github.com/playperu/scoreboard/internal/metrics"
	"github.com/playperu/scoreboard/internal/scoreboard"
)

type Controller struct {
	store   matchstore.Store
	pub     broadcast.Publisher
	logger  *slog.Logger
	metrics metrics.Metrics
	timeout time.Duration
}

var _ broadcast.Snapshotter = (*Controller)(nil)

type Option func(*Controller)

// WithTimeout bounds every store call.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func NewController(store matchstore.Store, pub broadcast.Publisher, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store:   store,
		pub:     pub,
		logger:  logger,
		metrics: metrics.Nop{},
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the active match, or nil when there is none.
func (c *Controller) Get(ctx context.Context) (*scoreboard.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.Active(ctx)
}

// History lists recent matches, newest first.
func (c *Controller) History(ctx context.Context, limit int) ([]scoreboard.Match, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.store.Recent(ctx, limit)
}

func (c *Controller) Create(ctx context.Context, n scoreboard.NewMatch) (*scoreboard.Match, error) {
	if err := n.Validate(); err != nil {
		c.metrics.IncMutations("create", false)
		return nil, err
	}

	m, err := c.write(ctx, "create", func(ctx context.Context) (*scoreboard.Match, error) {
		return c.store.CreateActive(ctx, n)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("match created", "match", m.ID, "type", m.Kind, "points_to_win", m.PointsToWin)
	return m, nil
}

// AdjustScore adds delta (+1 or -1) to one side. Scores floor at zero. Once
// the stored scores already decide the game, further increments are refused
// so the score cannot drift past a win; decrements stay allowed for
// corrections.
func (c *Controller) AdjustScore(ctx context.Context, team scoreboard.Team, delta int) (*scoreboard.Match, error) {
	if !team.Valid() {
		c.metrics.IncMutations("score", false)
		return nil, scoreboard.Invalid("invalid team number")
	}
	if delta != 1 && delta != -1 {
		c.metrics.IncMutations("score", false)
		return nil, scoreboard.Invalid("score can only change by one point")
	}

	return c.write(ctx, "score", func(ctx context.Context) (*scoreboard.Match, error) {
		return c.store.MutateActive(ctx, func(m *scoreboard.Match) error {
			if delta > 0 && m.State().IsWin() {
				return scoreboard.Conflict("game is already won, confirm the win or correct the score")
			}
			m.Adjust(team, delta)
			return nil
		})
	})
}

func (c *Controller) Reset(ctx context.Context) (*scoreboard.Match, error) {
	return c.write(ctx, "reset", func(ctx context.Context) (*scoreboard.Match, error) {
		return c.store.MutateActive(ctx, func(m *scoreboard.Match) error {
			m.ScoreA, m.ScoreB = 0, 0
			return nil
		})
	})
}

// ConfirmWin ends the match with team as winner. The claim is checked
// against the stored scores inside the same transaction that ends the match.
func (c *Controller) ConfirmWin(ctx context.Context, team scoreboard.Team) (*scoreboard.Match, error) {
	if !team.Valid() {
		c.metrics.IncMutations("win", false)
		return nil, scoreboard.Invalid("winner must be 1 or 2")
	}

	m, err := c.write(ctx, "win", func(ctx context.Context) (*scoreboard.Match, error) {
		return c.store.MutateActive(ctx, func(m *scoreboard.Match) error {
			st := m.State()
			if !st.IsWin() {
				return scoreboard.Invalid("win condition not met")
			}
			if st.Team != team {
				return scoreboard.Invalid("winner does not match current scores")
			}
			return matchstore.WonBy(team).Apply(m)
		})
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("match won", "match", m.ID, "winner", m.Winner, "score1", m.ScoreA, "score2", m.ScoreB)
	return m, nil
}

// End stops the active match without recording a winner.
func (c *Controller) End(ctx context.Context) (*scoreboard.Match, error) {
	m, err := c.write(ctx, "end", func(ctx context.Context) (*scoreboard.Match, error) {
		return c.store.Deactivate(ctx, matchstore.Ended())
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("match ended", "match", m.ID)
	return m, nil
}

// write runs one store operation under the timeout and publishes its result.
// Publishing must not hold up the request, so it runs on a context that
// outlives the caller's.
func (c *Controller) write(ctx context.Context, op string, fn func(context.Context) (*scoreboard.Match, error)) (*scoreboard.Match, error) {
	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	m, err := fn(sctx)
	c.metrics.IncMutations(op, err == nil)
	if err != nil {
		return nil, err
	}

	c.pub.Publish(context.WithoutCancel(ctx), m)
	return m, nil
}
