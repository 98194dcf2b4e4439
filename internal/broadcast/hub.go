// Package broadcast fans committed match states out to push-channel
// subscribers.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/playperu/scoreboard/internal/metrics"
	"github.com/playperu/scoreboard/internal/scoreboard"
)

// ErrClosed is returned by Subscribe once the hub has shut down.
var ErrClosed = errors.New("broadcast: hub closed")

// Publisher receives every committed match state. Inactive records announce
// that the match ended.
type Publisher interface {
	Publish(ctx context.Context, m *scoreboard.Match)
}

// Snapshotter supplies the current state to new subscribers.
type Snapshotter interface {
	Get(ctx context.Context) (*scoreboard.Match, error)
}

// Subscription is one registered outbound channel.
type Subscription struct {
	id   uint64
	ch   chan []byte
	done chan struct{}
	once sync.Once
}

func (s *Subscription) ID() uint64 { return s.id }

// Updates yields encoded frames in publish order.
func (s *Subscription) Updates() <-chan []byte { return s.ch }

// Done is closed once the subscription has been removed from the hub.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub is the in-process registry of subscribers. It is owned by whoever
// creates it; there is no package-level state.
type Hub struct {
	logger  *slog.Logger
	metrics metrics.Metrics
	buffer  int
	nextID  atomic.Uint64

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	gen    uint64            // incremented on every accepted publish
	last   *scoreboard.Match // most recent accepted publish
	closed bool
}

var _ Publisher = (*Hub)(nil)

type Option func(*Hub)

// WithBuffer sets how many frames a subscriber may lag behind before it is
// dropped.
func WithBuffer(n int) Option {
	return func(h *Hub) { h.buffer = n }
}

func WithMetrics(m metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger:  logger,
		metrics: metrics.Nop{},
		buffer:  16,
		subs:    make(map[*Subscription]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a new channel whose first frame is the current state.
//
// The snapshot is read outside the lock. If a publish lands while it is being
// read, the newest published state is queued instead, so a late joiner never
// ends on a state older than one it missed.
func (h *Hub) Subscribe(ctx context.Context, snap Snapshotter) (*Subscription, error) {
	h.mu.Lock()
	gen := h.gen
	h.mu.Unlock()

	m, err := snap.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if h.gen != gen {
		m = h.last
	}
	frame, err := EncodeUpdate(m)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	sub := &Subscription{
		id:   h.nextID.Add(1),
		ch:   make(chan []byte, h.buffer),
		done: make(chan struct{}),
	}
	sub.ch <- frame
	h.subs[sub] = struct{}{}
	h.metrics.SetSubscribers(len(h.subs))
	h.logger.Debug("subscriber added", "id", sub.id, "subscribers", len(h.subs))
	return sub, nil
}

// Unsubscribe removes a channel. It is safe to call more than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

func (h *Hub) remove(sub *Subscription) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	sub.close()
	h.metrics.SetSubscribers(len(h.subs))
	h.logger.Debug("subscriber removed", "id", sub.id, "subscribers", len(h.subs))
}

// Publish queues m for every subscriber without blocking. A subscriber whose
// buffer is full is treated as a broken channel and removed, so it reconnects
// and resynchronizes from a fresh snapshot. Publishes older than the last
// accepted one are ignored.
func (h *Hub) Publish(_ context.Context, m *scoreboard.Match) {
	frame, err := EncodeUpdate(m)
	if err != nil {
		h.logger.Error("encoding match update", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if stale(m, h.last) {
		h.logger.Debug("ignoring stale publish", "match", m.ID, "updated_at", m.UpdatedAt)
		return
	}
	h.gen++
	h.last = m.Clone()
	h.metrics.IncPublishes()

	for sub := range h.subs {
		select {
		case sub.ch <- frame:
		default:
			h.logger.Warn("dropping stalled subscriber", "id", sub.id)
			h.metrics.IncDroppedSubscribers()
			h.remove(sub)
		}
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close removes every subscriber so their transport loops return, and
// refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		h.remove(sub)
	}
}

// stale reports whether cand is older than ref. Records are ordered by
// creation time across matches and by update time within a match; at equal
// update times an active record is older than an inactive one.
func stale(cand, ref *scoreboard.Match) bool {
	if cand == nil || ref == nil {
		return false
	}
	if cand.ID != ref.ID {
		return cand.CreatedAt.Before(ref.CreatedAt)
	}
	if cand.UpdatedAt.Equal(ref.UpdatedAt) {
		return cand.Active && !ref.Active
	}
	return cand.UpdatedAt.Before(ref.UpdatedAt)
}
