package watch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

// ErrConnectInFlight is returned by Connect while another Connect is running.
var ErrConnectInFlight = errors.New("watch: connect already in progress")

// ErrStreamUnavailable is returned when reconnects are exhausted and no poll
// source was configured.
var ErrStreamUnavailable = errors.New("watch: stream unavailable")

type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StatePolling:
		return "polling"
	}
	return "unknown"
}

// Client keeps the latest match from a Source current.
type Client struct {
	stream   Source
	poll     Source
	logger   *slog.Logger
	onUpdate func(*scoreboard.Match)

	backoffBase   time.Duration
	backoffCap    time.Duration
	maxAttempts   uint64
	pollRetry     time.Duration
	fallbackAfter time.Duration

	state    atomic.Int32
	inFlight atomic.Bool

	deliverMu sync.Mutex // serializes onUpdate
	mu        sync.RWMutex
	match     *scoreboard.Match
	seen      bool
}

type Option func(*Client)

// WithPoll sets the source used once streaming has failed too often. If it
// also implements Fetcher it fills the display when the stream is slow to
// deliver the first snapshot.
func WithPoll(src Source) Option {
	return func(c *Client) { c.poll = src }
}

// WithOnUpdate registers fn for every received state. fn may be called from
// more than one goroutine but never concurrently with itself.
func WithOnUpdate(fn func(*scoreboard.Match)) Option {
	return func(c *Client) { c.onUpdate = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithBackoff tunes reconnects: delays start at base, double up to limit,
// and after attempts failures in a row the client switches to polling.
func WithBackoff(base, limit time.Duration, attempts uint64) Option {
	return func(c *Client) {
		c.backoffBase, c.backoffCap, c.maxAttempts = base, limit, attempts
	}
}

// WithFallbackAfter sets how long to wait for the first snapshot before
// fetching one directly.
func WithFallbackAfter(d time.Duration) Option {
	return func(c *Client) { c.fallbackAfter = d }
}

func NewClient(stream Source, opts ...Option) *Client {
	c := &Client{
		stream:        stream,
		logger:        slog.Default(),
		onUpdate:      func(*scoreboard.Match) {},
		backoffBase:   time.Second,
		backoffCap:    30 * time.Second,
		maxAttempts:   5,
		pollRetry:     DefaultPollInterval,
		fallbackAfter: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() State { return State(c.state.Load()) }

// Match returns the latest received state; nil means no active match.
func (c *Client) Match() *scoreboard.Match {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.match.Clone()
}

func (c *Client) setState(s State) {
	if prev := State(c.state.Swap(int32(s))); prev != s {
		c.logger.Info("watch state changed", "from", prev.String(), "to", s.String())
	}
}

func (c *Client) deliver(m *scoreboard.Match, onlyIfEmpty bool) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	if onlyIfEmpty && c.seen {
		c.mu.Unlock()
		return
	}
	c.match, c.seen = m.Clone(), true
	c.mu.Unlock()

	c.onUpdate(m)
}

func (c *Client) newBackoff() retry.Backoff {
	b := retry.NewExponential(c.backoffBase)
	b = retry.WithCappedDuration(c.backoffCap, b)
	return retry.WithMaxRetries(c.maxAttempts, b)
}

// Connect streams until ctx is done. Dropped streams are retried with
// exponential backoff; a stream that delivered at least one update resets
// the attempt count. Once attempts run out the client polls instead.
func (c *Client) Connect(ctx context.Context) error {
	if !c.inFlight.CompareAndSwap(false, true) {
		return ErrConnectInFlight
	}
	defer c.inFlight.Store(false)
	defer c.setState(StateDisconnected)

	if f, ok := c.poll.(Fetcher); ok && c.fallbackAfter > 0 {
		t := time.AfterFunc(c.fallbackAfter, func() { c.prefill(ctx, f) })
		defer t.Stop()
	}

	b := c.newBackoff()
	for {
		c.setState(StateConnecting)
		connected := false
		err := c.stream.Receive(ctx, func(m *scoreboard.Match) {
			if !connected {
				connected = true
				c.setState(StateConnected)
			}
			c.deliver(m, false)
		})
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			b = c.newBackoff()
		}

		delay, stop := b.Next()
		if stop {
			c.logger.Warn("stream retries exhausted", "attempts", c.maxAttempts, "error", err)
			break
		}
		c.setState(StateReconnecting)
		c.logger.Warn("stream dropped", "error", err, "retry_in", delay)
		if !sleep(ctx, delay) {
			return nil
		}
	}

	if c.poll == nil {
		return ErrStreamUnavailable
	}
	c.setState(StatePolling)
	for {
		err := c.poll.Receive(ctx, func(m *scoreboard.Match) { c.deliver(m, false) })
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("poll failed", "error", err)
		if !sleep(ctx, c.pollRetry) {
			return nil
		}
	}
}

// prefill fetches the current match when the stream has not produced one in
// time. A late result never overwrites what the stream already delivered.
func (c *Client) prefill(ctx context.Context, f Fetcher) {
	c.mu.RLock()
	seen := c.seen
	c.mu.RUnlock()
	if seen {
		return
	}

	m, err := f.Fetch(ctx)
	if err != nil {
		c.logger.Debug("prefill fetch failed", "error", err)
		return
	}
	c.deliver(m, true)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
