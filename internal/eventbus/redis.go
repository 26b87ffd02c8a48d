package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// RedisBus shares topics across processes through Redis PUBLISH/SUBSCRIBE.
// Redis keeps per-channel order, so the FIFO guarantee holds cluster-wide.
type RedisBus struct {
	client     *redis.Client
	bufferSize int
	logger     *slog.Logger
}

func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisBus(client *redis.Client, logger *slog.Logger) *RedisBus {
	return &RedisBus{
		client:     client,
		bufferSize: defaultBufferSize,
		logger:     logger.With("component", "eventbus.redis"),
	}
}

func (b *RedisBus) Publish(ctx context.Context, topic string, event any) error {
	if topic == "" {
		return errors.New("eventbus: topic required")
	}
	payload, err := encode(event)
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, topic, string(payload)).Err(); err != nil {
		return fmt.Errorf("eventbus: redis publish %s: %w", topic, err)
	}
	published.WithLabelValues(backendRedis).Inc()
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("eventbus: at least one topic is required")
	}

	pubsub := b.client.Subscribe(ctx, topics...)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("eventbus: redis subscribe %v: %w", topics, err)
	}

	out := make(chan Message, b.bufferSize)
	subscriptionsActive.WithLabelValues(backendRedis).Inc()

	go func() {
		defer close(out)
		defer subscriptionsActive.WithLabelValues(backendRedis).Dec()

		for msg := range pubsub.Channel() {
			select {
			case out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
				delivered.WithLabelValues(backendRedis).Inc()
			default:
				dropped.WithLabelValues(backendRedis).Inc()
				b.logger.Warn("subscriber buffer full, event dropped", "topic", msg.Channel)
			}
		}
	}()

	return newSubscription(ctx, out, func() {
		if err := pubsub.Close(); err != nil {
			b.logger.Debug("close redis subscription", "error", err)
		}
	}), nil
}

func (b *RedisBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}
