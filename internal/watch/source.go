// Package watch is the viewer side of the push channels: it keeps a local
// copy of the active match current over SSE or WebSocket, reconnecting with
// backoff and falling back to polling when streaming keeps failing.
package watch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/playperu/scoreboard/internal/broadcast"
	"github.com/playperu/scoreboard/internal/scoreboard"
)

// Source delivers match updates. Receive blocks while the stream is healthy,
// calling fn for every update, and returns when the stream drops or ctx is
// done. A nil match means no match is active.
type Source interface {
	Receive(ctx context.Context, fn func(*scoreboard.Match)) error
}

// Fetcher reads the current match once.
type Fetcher interface {
	Fetch(ctx context.Context) (*scoreboard.Match, error)
}

var errStreamClosed = errors.New("stream closed by server")

// dispatch decodes one event document and hands match updates to fn.
func dispatch(data []byte, fn func(*scoreboard.Match)) error {
	ev, err := broadcast.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding event: %w", err)
	}
	if ev.Type == broadcast.TypeMatchUpdate && ev.Data != nil {
		fn(ev.Data.Match)
	}
	return nil
}

// PollSource reads GET /api/match on an interval. It is the fallback when
// neither push channel can be kept open.
type PollSource struct {
	url      string
	interval time.Duration
	client   *http.Client
}

var (
	_ Source  = (*PollSource)(nil)
	_ Fetcher = (*PollSource)(nil)
)

const DefaultPollInterval = 5 * time.Second

func NewPollSource(baseURL string, interval time.Duration) *PollSource {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollSource{
		url:      strings.TrimRight(baseURL, "/") + "/api/match",
		interval: interval,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PollSource) Fetch(ctx context.Context) (*scoreboard.Match, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching match: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching match: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Match *scoreboard.Match `json:"match"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding match: %w", err)
	}
	return body.Match, nil
}

// Receive fetches immediately and then every interval, reporting only
// changes. It returns the first fetch error.
func (p *PollSource) Receive(ctx context.Context, fn func(*scoreboard.Match)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var (
		last  *scoreboard.Match
		first = true
	)
	for {
		m, err := p.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if first || changed(last, m) {
			fn(m)
			last, first = m, false
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func changed(prev, next *scoreboard.Match) bool {
	if prev == nil || next == nil {
		return prev != next
	}
	return prev.ID != next.ID || !prev.UpdatedAt.Equal(next.UpdatedAt) || prev.Active != next.Active
}
