package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultRedisChannel is the pub/sub channel shared by all instances.
const DefaultRedisChannel = "wellness:changes"

const redisPublishTimeout = 2 * time.Second

// envelope tags a change with the instance that produced it so an instance
// does not deliver its own changes twice.
type envelope struct {
	Origin string `json:"origin"`
	Change Change `json:"change"`
}

// RedisBridge publishes changes to the local hub and to Redis, and relays
// changes published by other instances into the local hub.
type RedisBridge struct {
	client  *redis.Client
	hub     *Hub
	channel string
	origin  string
	logger  *slog.Logger
}

// NewRedisBridge creates a bridge between hub and the Redis server behind client.
func NewRedisBridge(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisBridge {
	return &RedisBridge{
		client:  client,
		hub:     hub,
		channel: DefaultRedisChannel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Publish delivers c locally and forwards it to other instances.
func (b *RedisBridge) Publish(c Change) {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	b.hub.Publish(c)

	payload, err := encodeEnvelope(b.origin, c)
	if err != nil {
		b.logger.Error("encoding change", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisPublishTimeout)
	defer cancel()
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.logger.Warn("publishing change to redis", "error", err, "table", c.Table)
	}
}

// Run relays changes from other instances until ctx is cancelled.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed before relaying
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			origin, change, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("dropping malformed change", "error", err)
				continue
			}
			if origin == b.origin {
				continue
			}
			b.hub.Publish(change)
		}
	}
}

func encodeEnvelope(origin string, c Change) ([]byte, error) {
	return json.Marshal(envelope{Origin: origin, Change: c})
}

func decodeEnvelope(data []byte) (string, Change, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", Change{}, fmt.Errorf("decoding change: %w", err)
	}
	if env.Origin == "" || env.Change.UserID == uuid.Nil {
		return "", Change{}, fmt.Errorf("decoding change: missing origin or user")
	}
	return env.Origin, env.Change, nil
}

// Ensure RedisBridge implements Publisher.
var _ Publisher = (*RedisBridge)(nil)
