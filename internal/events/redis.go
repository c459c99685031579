package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidfriends/friends/internal/models"
)

// DefaultQueueName is the Redis list relationship events are pushed onto.
const DefaultQueueName = "friend_events"

// RedisPublisher pushes JSON-encoded relationship events onto a Redis list.
type RedisPublisher struct {
	client *redis.Client
	queue  string
}

// NewRedisPublisher returns a publisher that RPUSHes onto queue using client.
func NewRedisPublisher(client *redis.Client, queue string) *RedisPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &RedisPublisher{client: client, queue: queue}
}

// Connect dials Redis at addr and verifies the connection with a PING.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Publish serializes the event and appends it to the queue.
func (p *RedisPublisher) Publish(ctx context.Context, event models.Event) error {
	data, err := encode(event)
	if err != nil {
		return err
	}
	if err := p.client.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("rpush to redis list %q: %w", p.queue, err)
	}
	return nil
}

// NopPublisher discards events. It is used when no Redis address is configured.
type NopPublisher struct{}

// Publish discards the event.
func (NopPublisher) Publish(context.Context, models.Event) error { return nil }

func encode(event models.Event) ([]byte, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal relationship event: %w", err)
	}
	return data, nil
}
