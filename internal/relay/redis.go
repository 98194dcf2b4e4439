// Package relay fans match updates out across server instances through a
// Redis channel. Every instance subscribes and feeds what it receives into
// its local hub, so a write on one instance reaches viewers on all of them.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/playperu/scoreboard/internal/broadcast"
	"github.com/playperu/scoreboard/internal/scoreboard"
)

const DefaultChannel = "scoreboard:match"

// Redis is a broadcast.Publisher backed by Redis pub/sub.
type Redis struct {
	rdb     *redis.Client
	channel string
	local   broadcast.Publisher
	logger  *slog.Logger
	timeout time.Duration
}

var _ broadcast.Publisher = (*Redis)(nil)

func NewRedis(rdb *redis.Client, channel string, local broadcast.Publisher, logger *slog.Logger) *Redis {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Redis{
		rdb:     rdb,
		channel: channel,
		local:   local,
		logger:  logger,
		timeout: 2 * time.Second,
	}
}

// Publish sends m to the channel in the background. If Redis cannot take
// it within the timeout the update is delivered to the local hub instead,
// so viewers on this instance are never left behind.
func (r *Redis) Publish(ctx context.Context, m *scoreboard.Match) {
	payload, err := json.Marshal(m)
	if err != nil {
		r.logger.Error("encoding relay message", "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
			r.logger.Warn("relay publish failed, delivering locally", "channel", r.channel, "error", err)
			r.local.Publish(ctx, m)
		}
	}()
}

// Run subscribes to the channel and forwards every message to the local hub
// until ctx is cancelled. The initial subscription is retried with capped
// exponential backoff; after that go-redis reconnects on its own.
func (r *Redis) Run(ctx context.Context) error {
	b := retry.WithCappedDuration(30*time.Second, retry.NewExponential(500*time.Millisecond))

	var sub *redis.PubSub
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		ps := r.rdb.Subscribe(ctx, r.channel)
		if _, err := ps.Receive(ctx); err != nil {
			ps.Close()
			r.logger.Warn("relay subscribe failed", "channel", r.channel, "error", err)
			return retry.RetryableError(err)
		}
		sub = ps
		return nil
	})
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", r.channel, err)
	}
	defer sub.Close()

	r.logger.Info("relay subscribed", "channel", r.channel)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward(ctx, msg.Payload)
		}
	}
}

func (r *Redis) forward(ctx context.Context, payload string) {
	var m *scoreboard.Match
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.logger.Warn("dropping malformed relay message", "error", err)
		return
	}
	r.local.Publish(ctx, m)
}

// Check implements health.Checker.
func (r *Redis) Check(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}
