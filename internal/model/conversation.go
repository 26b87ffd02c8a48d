package model

import "fmt"

type ConversationStatus string

const (
	ConversationStatusWaiting   ConversationStatus = "waiting"
	ConversationStatusAssigned  ConversationStatus = "assigned"
	ConversationStatusActive    ConversationStatus = "active"
	ConversationStatusClosed    ConversationStatus = "closed"
	ConversationStatusAbandoned ConversationStatus = "abandoned"
)

var conversationTransitions = map[ConversationStatus][]ConversationStatus{
	ConversationStatusWaiting:  {ConversationStatusAssigned, ConversationStatusClosed, ConversationStatusAbandoned},
	ConversationStatusAssigned: {ConversationStatusActive, ConversationStatusClosed, ConversationStatusAbandoned},
	ConversationStatusActive:   {ConversationStatusClosed},
}

func (s ConversationStatus) Valid() bool {
	switch s {
	case ConversationStatusWaiting, ConversationStatusAssigned, ConversationStatusActive,
		ConversationStatusClosed, ConversationStatusAbandoned:
		return true
	}
	return false
}

func (s ConversationStatus) IsTerminal() bool {
	return s == ConversationStatusClosed || s == ConversationStatusAbandoned
}

// HasAgent reports whether a conversation in this status must carry an assigned agent.
func (s ConversationStatus) HasAgent() bool {
	return s == ConversationStatusAssigned || s == ConversationStatusActive
}

func CanTransition(from, to ConversationStatus) bool {
	for _, next := range conversationTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SourcesOf lists every status that may move to target.
func SourcesOf(target ConversationStatus) []ConversationStatus {
	var out []ConversationStatus
	for _, from := range []ConversationStatus{ConversationStatusWaiting, ConversationStatusAssigned, ConversationStatusActive} {
		if CanTransition(from, target) {
			out = append(out, from)
		}
	}
	return out
}

type SenderType string

const (
	SenderVisitor SenderType = "visitor"
	SenderAgent   SenderType = "agent"
	SenderSystem  SenderType = "system"
)

func (s SenderType) Valid() bool {
	return s == SenderVisitor || s == SenderAgent || s == SenderSystem
}

func MessageSortKey(createdAt, messageID string) string {
	return fmt.Sprintf("%s#%s", createdAt, messageID)
}

type VisitorItem struct {
	VisitorID string `dynamodbav:"visitorId"`
	Name      string `dynamodbav:"name"`
	Email     string `dynamodbav:"email"`
	Mobile    string `dynamodbav:"mobile,omitempty"`
	IPAddress string `dynamodbav:"ipAddress,omitempty"`
	UserAgent string `dynamodbav:"userAgent,omitempty"`
	CreatedAt string `dynamodbav:"createdAt"`
}

// ConversationItem is the stored conversation. AssignedAgentID is set only
// while the status is assigned or active; HandledByAgentID keeps the last
// agent after the conversation ends.
type ConversationItem struct {
	ConversationID   string             `dynamodbav:"conversationId"`
	VisitorID        string             `dynamodbav:"visitorId"`
	VisitorName      string             `dynamodbav:"visitorName,omitempty"`
	VisitorEmail     string             `dynamodbav:"visitorEmail,omitempty"`
	Status           ConversationStatus `dynamodbav:"status"`
	AssignedAgentID  string             `dynamodbav:"assignedAgentId,omitempty"`
	HandledByAgentID string             `dynamodbav:"handledByAgentId,omitempty"`
	AssignedAt       string             `dynamodbav:"assignedAt,omitempty"`
	StartedAt        string             `dynamodbav:"startedAt"`
	EndedAt          string             `dynamodbav:"endedAt,omitempty"`
}

type MessageItem struct {
	ConversationID string     `dynamodbav:"conversationId"`
	SortKey        string     `dynamodbav:"sortKey"`
	MessageID      string     `dynamodbav:"messageId"`
	SenderType     SenderType `dynamodbav:"senderType"`
	SenderID       string     `dynamodbav:"senderId,omitempty"`
	Body           string     `dynamodbav:"body"`
	CreatedAt      string     `dynamodbav:"createdAt"`
}

type RatingItem struct {
	ConversationID string `dynamodbav:"conversationId"`
	AgentRating    int    `dynamodbav:"agentRating"`
	SystemRating   int    `dynamodbav:"systemRating"`
	Comment        string `dynamodbav:"comment,omitempty"`
	SubmittedAt    string `dynamodbav:"submittedAt"`
}
