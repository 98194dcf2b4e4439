package watch

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

// SSESource reads GET /api/events.
type SSESource struct {
	url    string
	client *http.Client
	// idle is how long the stream may stay silent before it is considered
	// dead. The server sends keep-alives well inside this window.
	idle time.Duration
}

var _ Source = (*SSESource)(nil)

func NewSSESource(baseURL string, idle time.Duration) *SSESource {
	if idle <= 0 {
		idle = 45 * time.Second
	}
	return &SSESource{
		url:    strings.TrimRight(baseURL, "/") + "/api/events",
		client: &http.Client{},
		idle:   idle,
	}
}

func (s *SSESource) Receive(parent context.Context, fn func(*scoreboard.Match)) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("connecting to %s: unexpected status %d", s.url, resp.StatusCode)
	}

	watchdog := time.AfterFunc(s.idle, cancel)
	defer watchdog.Stop()

	err = readEvents(resp.Body, func(data []byte) error {
		return dispatch(data, fn)
	}, func() { watchdog.Reset(s.idle) })
	switch {
	case parent.Err() != nil:
		return parent.Err()
	case ctx.Err() != nil:
		return fmt.Errorf("stream idle for %s", s.idle)
	}
	return err
}

// readEvents parses a text/event-stream body. onEvent receives the joined
// data lines of each event; onLine is called for every line, comments
// included, so callers can track liveness.
func readEvents(r io.Reader, onEvent func([]byte) error, onLine func()) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)

	var data bytes.Buffer
	for sc.Scan() {
		onLine()
		line := sc.Bytes()

		if len(line) == 0 {
			if data.Len() == 0 {
				continue
			}
			if err := onEvent(bytes.TrimSuffix(data.Bytes(), []byte("\n"))); err != nil {
				return err
			}
			data.Reset()
			continue
		}
		if line[0] == ':' {
			continue
		}

		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		if string(field) == "data" {
			data.Write(value)
			data.WriteByte('\n')
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errStreamClosed
}
