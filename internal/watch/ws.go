package watch

import (
	"context"
	"fmt"
	"strings"

	"nhooyr.io/websocket"

	"github.com/playperu/scoreboard/internal/scoreboard"
)

// WSSource reads the WebSocket stream at /api/ws.
type WSSource struct {
	url string
}

var _ Source = (*WSSource)(nil)

func NewWSSource(baseURL string) *WSSource {
	u := strings.TrimRight(baseURL, "/") + "/api/ws"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &WSSource{url: u}
}

func (s *WSSource) Receive(ctx context.Context, fn func(*scoreboard.Match)) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", s.url, err)
	}
	defer conn.CloseNow()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				return errStreamClosed
			}
			return fmt.Errorf("reading stream: %w", err)
		}
		if err := dispatch(data, fn); err != nil {
			conn.Close(websocket.StatusUnsupportedData, "malformed event")
			return err
		}
	}
}
