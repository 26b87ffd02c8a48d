package conversation

import (
	"context"

	"support-chat-backend/internal/eventbus"
	"support-chat-backend/internal/model"
)

const (
	EventNewConversation       = "new_conversation"
	EventConversationAccepted  = "conversation_accepted"
	EventConversationAbandoned = "conversation_abandoned"
	EventAgentAssigned         = "agent_assigned"
	EventMessage               = "message"
	EventConversationClosed    = "conversation_closed"
)

type NewConversationEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	VisitorName    string `json:"visitor_name"`
	VisitorEmail   string `json:"visitor_email"`
}

type ConversationAcceptedEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	AgentID        string `json:"agent_id"`
	AgentName      string `json:"agent_name"`
}

type AgentAssignedEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
	AgentName      string `json:"agent_name"`
}

// ConversationEndedEvent covers both conversation_closed and
// conversation_abandoned.
type ConversationEndedEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversation_id"`
}

type MessageEvent struct {
	Type    string          `json:"type"`
	Payload MessageEnvelope `json:"payload"`
}

// MessageEnvelope is the wire form of a stored message. Subscribers receive
// it exactly as built here.
type MessageEnvelope struct {
	ID           string  `json:"id"`
	Conversation string  `json:"conversation"`
	SenderType   string  `json:"sender_type"`
	SenderID     *string `json:"sender_id"`
	Message      string  `json:"message"`
	CreatedAt    string  `json:"created_at"`
}

func NewEnvelope(m model.MessageItem) MessageEnvelope {
	env := MessageEnvelope{
		ID:           m.MessageID,
		Conversation: m.ConversationID,
		SenderType:   string(m.SenderType),
		Message:      m.Body,
		CreatedAt:    m.CreatedAt,
	}
	if m.SenderID != "" {
		senderID := m.SenderID
		env.SenderID = &senderID
	}
	return env
}

// publish runs after the durable write it announces, so a failure here is
// logged and counted but never turned into an operation error.
func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.bus.Publish(ctx, topic, event); err != nil {
		publishFailures.Inc()
		s.logger.Error("publish event", "topic", topic, "error", err)
	}
}

func (s *Service) publishMessage(ctx context.Context, message model.MessageItem) {
	s.publish(ctx, eventbus.ConversationTopic(message.ConversationID), MessageEvent{
		Type:    EventMessage,
		Payload: NewEnvelope(message),
	})
}

type discardPublisher struct{}

func (discardPublisher) Publish(context.Context, string, any) error { return nil }
