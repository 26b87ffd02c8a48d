package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"support-chat-backend/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.Discard())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func receive(t *testing.T, sub *Subscription) Message {
	t.Helper()
	select {
	case msg, ok := <-sub.C:
		require.True(t, ok, "subscription closed unexpectedly")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Message{}
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "support_queue", QueueTopic)
	assert.Equal(t, "agent_a1", AgentTopic("a1"))
	assert.Equal(t, "conversation_c1", ConversationTopic("c1"))
}

func TestHubDeliversToEverySubscriberOfTopic(t *testing.T) {
	hub := startHub(t)
	ctx := context.Background()

	visitor, err := hub.Subscribe(ctx, ConversationTopic("c1"))
	require.NoError(t, err)
	defer visitor.Close()
	agent, err := hub.Subscribe(ctx, ConversationTopic("c1"))
	require.NoError(t, err)
	defer agent.Close()
	other, err := hub.Subscribe(ctx, ConversationTopic("c2"))
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, hub.Publish(ctx, ConversationTopic("c1"), map[string]string{"type": "message"}))

	for _, sub := range []*Subscription{visitor, agent} {
		msg := receive(t, sub)
		assert.Equal(t, ConversationTopic("c1"), msg.Topic)
		assert.JSONEq(t, `{"type":"message"}`, string(msg.Payload))
	}

	select {
	case msg := <-other.C:
		t.Fatalf("unexpected event on unrelated topic: %s", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublishWithoutSubscribersIsNoop(t *testing.T) {
	hub := startHub(t)
	require.NoError(t, hub.Publish(context.Background(), QueueTopic, map[string]string{"type": "new_conversation"}))

	sub, err := hub.Subscribe(context.Background(), QueueTopic)
	require.NoError(t, err)
	defer sub.Close()

	select {
	case msg := <-sub.C:
		t.Fatalf("late subscriber received replayed event: %s", msg.Payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPreservesPublishOrderPerTopic(t *testing.T) {
	hub := startHub(t)
	ctx := context.Background()

	subs := make([]*Subscription, 3)
	for i := range subs {
		sub, err := hub.Subscribe(ctx, ConversationTopic("c1"))
		require.NoError(t, err)
		defer sub.Close()
		subs[i] = sub
	}

	const total = 40
	for i := 0; i < total; i++ {
		require.NoError(t, hub.Publish(ctx, ConversationTopic("c1"), map[string]int{"seq": i}))
	}

	for _, sub := range subs {
		for i := 0; i < total; i++ {
			var got map[string]int
			require.NoError(t, json.Unmarshal(receive(t, sub).Payload, &got))
			require.Equal(t, i, got["seq"])
		}
	}
}

func TestHubMultiTopicSubscription(t *testing.T) {
	hub := startHub(t)
	ctx := context.Background()

	sub, err := hub.Subscribe(ctx, QueueTopic, AgentTopic("a1"))
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, hub.Publish(ctx, AgentTopic("a1"), json.RawMessage(`{"type":"agent_assigned"}`)))
	require.NoError(t, hub.Publish(ctx, QueueTopic, json.RawMessage(`{"type":"new_conversation"}`)))

	assert.Equal(t, AgentTopic("a1"), receive(t, sub).Topic)
	assert.Equal(t, QueueTopic, receive(t, sub).Topic)
}

func TestSubscriptionCloseIsIdempotentAndClosesChannel(t *testing.T) {
	hub := startHub(t)

	sub, err := hub.Subscribe(context.Background(), QueueTopic)
	require.NoError(t, err)

	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Close")
	}
}

func TestSubscriptionClosesWhenContextEnds(t *testing.T) {
	hub := startHub(t)
	ctx, cancel := context.WithCancel(context.Background())

	sub, err := hub.Subscribe(ctx, QueueTopic)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription outlived its context")
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHubWithBuffer(logger.Discard(), 1)
	go hub.Run(ctx)

	slow, err := hub.Subscribe(ctx, QueueTopic)
	require.NoError(t, err)
	defer slow.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, hub.Publish(ctx, QueueTopic, fmt.Sprintf("event-%d", i)))
	}

	first := receive(t, slow)
	assert.JSONEq(t, `"event-0"`, string(first.Payload))
}

func TestHubStopClosesSubscriptionsAndRejectsPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logger.Discard())
	go hub.Run(ctx)

	sub, err := hub.Subscribe(context.Background(), QueueTopic)
	require.NoError(t, err)
	require.NoError(t, hub.Ping(context.Background()))

	cancel()

	select {
	case _, ok := <-sub.C:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed on hub stop")
	}

	require.Eventually(t, func() bool {
		return hub.Publish(context.Background(), QueueTopic, "late") == ErrHubStopped
	}, time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, hub.Ping(context.Background()), ErrHubStopped)
	sub.Close()
}
