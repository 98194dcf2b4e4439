package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/playperu/scoreboard/internal/broadcast"
)

// sseRetry tells EventSource clients how long to wait before reconnecting.
const sseRetry = 3000

func handleEvents(logger *slog.Logger, hub *broadcast.Hub, snap broadcast.Snapshotter, keepAlive time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := w.(http.Flusher); !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		sub, err := hub.Subscribe(r.Context(), snap)
		if errors.Is(err, broadcast.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "server is shutting down")
			return
		}
		if err != nil {
			writeFailure(w, logger, "subscribe", err)
			return
		}
		defer hub.Unsubscribe(sub)

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache, no-transform")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		out := sseStream{w: w, rc: http.NewResponseController(w), timeout: sseWriteTimeout}
		if err := out.send("retry: %d\n\n", sseRetry); err != nil {
			return
		}
		if err := out.event(broadcast.ConnectedFrame); err != nil {
			return
		}

		ping := time.NewTicker(keepAlive)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-sub.Done():
				logger.Debug("sse subscriber removed by hub", "id", sub.ID())
				return
			case frame := <-sub.Updates():
				if err := out.event(frame); err != nil {
					logger.Debug("sse write failed", "id", sub.ID(), "error", err)
					return
				}
			case <-ping.C:
				if err := out.send(":\n\n"); err != nil {
					logger.Debug("sse keep-alive failed", "id", sub.ID(), "error", err)
					return
				}
			}
		}
	}
}

// sseWriteTimeout bounds each frame so a stalled client cannot pin the handler.
const sseWriteTimeout = 5 * time.Second

// sseStream writes and flushes one frame at a time under a write deadline.
type sseStream struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	timeout time.Duration
}

func (s sseStream) send(format string, args ...any) error {
	err := s.rc.SetWriteDeadline(time.Now().Add(s.timeout))
	if err != nil && !errors.Is(err, http.ErrNotSupported) {
		return err
	}
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		return err
	}
	return s.rc.Flush()
}

func (s sseStream) event(frame []byte) error {
	return s.send("data: %s\n\n", frame)
}
