package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/playperu/scoreboard/internal/broadcast"
)

// handleStream is the WebSocket twin of handleEvents. Frames carry the same
// JSON documents; keep-alives are WebSocket pings.
func handleStream(logger *slog.Logger, hub *broadcast.Hub, snap broadcast.Snapshotter, keepAlive time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		// Viewers never send anything; CloseRead answers control frames and
		// cancels ctx when the peer goes away.
		ctx := conn.CloseRead(r.Context())

		sub, err := hub.Subscribe(ctx, snap)
		if errors.Is(err, broadcast.ErrClosed) {
			conn.Close(websocket.StatusGoingAway, "server is shutting down")
			return
		}
		if err != nil {
			logger.Error("websocket subscribe failed", "error", err)
			conn.Close(websocket.StatusInternalError, "internal error")
			return
		}
		defer hub.Unsubscribe(sub)

		if err := write(ctx, conn, broadcast.ConnectedFrame); err != nil {
			return
		}

		ping := time.NewTicker(keepAlive)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Done():
				conn.Close(websocket.StatusTryAgainLater, "resubscribe")
				return
			case frame := <-sub.Updates():
				if err := write(ctx, conn, frame); err != nil {
					logger.Debug("websocket write failed", "id", sub.ID(), "error", err)
					return
				}
			case <-ping.C:
				pctx, cancel := context.WithTimeout(ctx, keepAlive)
				err := conn.Ping(pctx)
				cancel()
				if err != nil {
					logger.Debug("websocket ping failed", "id", sub.ID(), "error", err)
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, frame []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, frame)
}
