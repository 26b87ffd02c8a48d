package eventbus

import (
	"context"
	"errors"
	"log/slog"
)

const defaultBufferSize = 64

var ErrHubStopped = errors.New("eventbus: hub stopped")

type subscriber struct {
	topics []string
	ch     chan Message
}

// Hub is the in-process Bus. One goroutine (Run) owns the topic table and
// handles registration, removal and fan-out in arrival order. It backs the
// single-process dev server (bus driver "memory") and the tests; the split
// servers share RedisBus.
type Hub struct {
	topics     map[string]map[*subscriber]struct{}
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan Message
	done       chan struct{}
	bufferSize int
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return NewHubWithBuffer(logger, defaultBufferSize)
}

func NewHubWithBuffer(logger *slog.Logger, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Hub{
		topics:     make(map[string]map[*subscriber]struct{}),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
		bufferSize: bufferSize,
		logger:     logger.With("component", "eventbus.hub"),
	}
}

// Run processes hub traffic until ctx ends, then closes every subscription.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case sub := <-h.register:
			for _, topic := range sub.topics {
				subs, ok := h.topics[topic]
				if !ok {
					subs = make(map[*subscriber]struct{})
					h.topics[topic] = subs
				}
				subs[sub] = struct{}{}
			}
			subscriptionsActive.WithLabelValues(backendMemory).Inc()

		case sub := <-h.unregister:
			h.remove(sub)

		case msg := <-h.broadcast:
			subs := h.topics[msg.Topic]
			for sub := range subs {
				select {
				case sub.ch <- msg:
					delivered.WithLabelValues(backendMemory).Inc()
				default:
					dropped.WithLabelValues(backendMemory).Inc()
					h.logger.Warn("subscriber buffer full, event dropped", "topic", msg.Topic)
				}
			}
		}
	}
}

func (h *Hub) remove(sub *subscriber) {
	found := false
	for _, topic := range sub.topics {
		subs, ok := h.topics[topic]
		if !ok {
			continue
		}
		if _, ok := subs[sub]; ok {
			found = true
			delete(subs, sub)
		}
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	if found {
		close(sub.ch)
		subscriptionsActive.WithLabelValues(backendMemory).Dec()
	}
}

func (h *Hub) shutdown() {
	seen := make(map[*subscriber]struct{})
	for _, subs := range h.topics {
		for sub := range subs {
			seen[sub] = struct{}{}
		}
	}
	for sub := range seen {
		h.remove(sub)
	}
}

// Ping fails once the hub has stopped.
func (h *Hub) Ping(ctx context.Context) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
		return ctx.Err()
	}
}

func (h *Hub) Publish(ctx context.Context, topic string, event any) error {
	payload, err := encode(event)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- Message{Topic: topic, Payload: payload}:
		published.WithLabelValues(backendMemory).Inc()
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	if len(topics) == 0 {
		return nil, errors.New("eventbus: at least one topic is required")
	}

	sub := &subscriber{
		topics: append([]string(nil), topics...),
		ch:     make(chan Message, h.bufferSize),
	}

	select {
	case h.register <- sub:
	case <-h.done:
		return nil, ErrHubStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return newSubscription(ctx, sub.ch, func() {
		select {
		case h.unregister <- sub:
		case <-h.done:
		}
	}), nil
}
