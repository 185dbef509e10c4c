package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 2 * time.Second

// RedisBridge fans broadcasts out through a Redis pub/sub channel so every
// API instance delivers them to its own sockets.
type RedisBridge struct {
	rdb     *redis.Client
	channel string
	hub     *Hub
	logger  *slog.Logger
}

func NewRedisBridge(rdb *redis.Client, channel string, logger *slog.Logger) *RedisBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBridge{rdb: rdb, channel: channel, logger: logger}
}

// Attach sets the hub that receives envelopes read from the channel.
func (b *RedisBridge) Attach(h *Hub) {
	b.hub = h
}

func (b *RedisBridge) Publish(ctx context.Context, env Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, payload).Err()
}

// Run subscribes to the channel and delivers every envelope locally until
// ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	defer sub.Close()

	// wait for the subscription to be confirmed before reading
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	b.logger.Info("notifier bridge subscribed", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				b.logger.Warn("dropping malformed bridge message", "error", err)
				continue
			}
			if b.hub != nil {
				b.hub.Deliver(env)
			}
		}
	}
}
