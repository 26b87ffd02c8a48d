// Package eventbus fans events out to subscribers of string-keyed topics.
//
// Delivery is at-most-once to subscribers connected at publish time. Events
// published to a topic nobody subscribes to are dropped. Within one topic,
// subscribers observe events in publish order.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

const QueueTopic = "support_queue"

func AgentTopic(agentID string) string {
	return "agent_" + agentID
}

func ConversationTopic(conversationID string) string {
	return "conversation_" + conversationID
}

type Message struct {
	Topic   string
	Payload json.RawMessage
}

type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
}

type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topics ...string) (*Subscription, error)
}

// Subscription delivers messages for the topics it was opened with until
// Close is called or the subscribing context ends. C is closed afterwards.
type Subscription struct {
	C <-chan Message

	once    sync.Once
	done    chan struct{}
	release func()
}

func newSubscription(ctx context.Context, c <-chan Message, release func()) *Subscription {
	sub := &Subscription{C: c, done: make(chan struct{}), release: release}
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Close()
			case <-sub.done:
			}
		}()
	}
	return sub
}

// Close is idempotent and safe to call from any goroutine.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.release()
	})
}

func encode(event any) (json.RawMessage, error) {
	if raw, ok := event.(json.RawMessage); ok {
		return raw, nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("eventbus: marshal event: %w", err)
	}
	return payload, nil
}
