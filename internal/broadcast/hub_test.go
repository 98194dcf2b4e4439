package broadcast_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playperu/scoreboard/internal/broadcast"
	"github.com/playperu/scoreboard/internal/metrics"
	"github.com/playperu/scoreboard/internal/scoreboard"
)

type snapFunc func(ctx context.Context) (*scoreboard.Match, error)

func (f snapFunc) Get(ctx context.Context) (*scoreboard.Match, error) { return f(ctx) }

func fixed(m *scoreboard.Match) broadcast.Snapshotter {
	return snapFunc(func(context.Context) (*scoreboard.Match, error) { return m, nil })
}

var t0 = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)

func match(id string, a, b int, at time.Time) *scoreboard.Match {
	return &scoreboard.Match{
		ID:          id,
		Kind:        scoreboard.KindSingles,
		SideA:       []string{"Ana"},
		SideB:       []string{"Bo"},
		ScoreA:      a,
		ScoreB:      b,
		PointsToWin: 11,
		Active:      true,
		CreatedAt:   t0,
		UpdatedAt:   at,
	}
}

func next(t *testing.T, sub *broadcast.Subscription) *scoreboard.Match {
	t.Helper()
	select {
	case frame := <-sub.Updates():
		ev, err := broadcast.Decode(frame)
		require.NoError(t, err)
		require.Equal(t, broadcast.TypeMatchUpdate, ev.Type)
		require.NotNil(t, ev.Data)
		return ev.Data.Match
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return nil
	}
}

func assertEmpty(t *testing.T, sub *broadcast.Subscription) {
	t.Helper()
	select {
	case frame := <-sub.Updates():
		t.Fatalf("unexpected frame %s", frame)
	default:
	}
}

func TestSnapshotOnSubscribe(t *testing.T) {
	h := broadcast.NewHub(slog.Default())
	ctx := context.Background()

	early, err := h.Subscribe(ctx, fixed(nil))
	require.NoError(t, err)
	assert.Nil(t, next(t, early))

	m := match("m1", 1, 0, t0.Add(time.Second))
	h.Publish(ctx, m)

	late, err := h.Subscribe(ctx, fixed(m))
	require.NoError(t, err)

	assert.Equal(t, 1, next(t, early).ScoreA)
	assert.Equal(t, 1, next(t, late).ScoreA)
}

func TestSubscribeSeesPublishDuringSnapshot(t *testing.T) {
	h := broadcast.NewHub(slog.Default())
	ctx := context.Background()

	old := match("m1", 0, 0, t0)
	fresh := match("m1", 1, 0, t0.Add(time.Second))

	// The publish lands while the snapshot read is in flight.
	snap := snapFunc(func(context.Context) (*scoreboard.Match, error) {
		h.Publish(ctx, fresh)
		return old, nil
	})

	sub, err := h.Subscribe(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, next(t, sub).ScoreA)
	assertEmpty(t, sub)
}

func TestSubscribeSnapshotError(t *testing.T) {
	h := broadcast.NewHub(slog.Default())

	_, err := h.Subscribe(context.Background(), snapFunc(func(context.Context) (*scoreboard.Match, error) {
		return nil, errors.New("db down")
	}))
	assert.Error(t, err)
	assert.Equal(t, 0, h.Len())
}

func TestEndedMatchIsPublishedAsNull(t *testing.T) {
	h := broadcast.NewHub(slog.Default())
	ctx := context.Background()

	sub, err := h.Subscribe(ctx, fixed(nil))
	require.NoError(t, err)
	next(t, sub)

	ended := match("m1", 11, 3, t0.Add(time.Minute))
	ended.Active = false
	ended.Winner = scoreboard.TeamA
	h.Publish(ctx, ended)

	assert.Nil(t, next(t, sub))
}

func TestStalePublishIgnored(t *testing.T) {
	h := broadcast.NewHub(slog.Default())
	ctx := context.Background()

	sub, err := h.Subscribe(ctx, fixed(nil))
	require.NoError(t, err)
	next(t, sub)

	h.Publish(ctx, match("m1", 2, 0, t0.Add(2*time.Second)))
	h.Publish(ctx, match("m1", 1, 0, t0.Add(time.Second)))

	assert.Equal(t, 2, next(t, sub).ScoreA)
	assertEmpty(t, sub)
}

func TestUnsubscribeIdempotent(t *testing.T) {
	m := metrics.NewMock()
	h := broadcast.NewHub(slog.Default(), broadcast.WithMetrics(m))
	ctx := context.Background()

	sub, err := h.Subscribe(ctx, fixed(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Subscribers())

	h.Unsubscribe(sub)
	h.Unsubscribe(sub)

	assert.Equal(t, 0, h.Len())
	assert.Equal(t, 0, m.Subscribers())
	select {
	case <-sub.Done():
	default:
		t.Fatal("Done not closed after Unsubscribe")
	}
}

func TestStalledSubscriberDropped(t *testing.T) {
	m := metrics.NewMock()
	h := broadcast.NewHub(slog.Default(), broadcast.WithBuffer(2), broadcast.WithMetrics(m))
	ctx := context.Background()

	stalled, err := h.Subscribe(ctx, fixed(nil))
	require.NoError(t, err)
	healthy, err := h.Subscribe(ctx, fixed(nil))
	require.NoError(t, err)

	// Drain the healthy subscriber as it goes; never read the stalled one.
	for i := 1; i <= 5; i++ {
		h.Publish(ctx, match("m1", i, 0, t0.Add(time.Duration(i)*time.Second)))
		got := next(t, healthy)
		if i == 1 {
			assert.Nil(t, got, "snapshot comes first")
			got = next(t, healthy)
		}
		assert.Equal(t, i, got.ScoreA)
	}

	select {
	case <-stalled.Done():
	default:
		t.Fatal("stalled subscriber was not dropped")
	}
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 1, m.Dropped())
	assert.Equal(t, 5, m.Publishes())
}

func TestConcurrentChurn(t *testing.T) {
	h := broadcast.NewHub(slog.Default(), broadcast.WithBuffer(64))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub, err := h.Subscribe(ctx, fixed(nil))
			if !assert.NoError(t, err) {
				return
			}
			h.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			h.Publish(ctx, match("m1", i, 0, t0.Add(time.Duration(i)*time.Millisecond)))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, h.Len())
}

func TestCloseRemovesAll(t *testing.T) {
	h := broadcast.NewHub(slog.Default())
	ctx := context.Background()

	a, _ := h.Subscribe(ctx, fixed(nil))
	b, _ := h.Subscribe(ctx, fixed(nil))
	h.Close()

	for _, sub := range []*broadcast.Subscription{a, b} {
		select {
		case <-sub.Done():
		default:
			t.Fatal("subscription still open after Close")
		}
	}
	assert.Equal(t, 0, h.Len())

	_, err := h.Subscribe(ctx, fixed(nil))
	assert.ErrorIs(t, err, broadcast.ErrClosed)
}
