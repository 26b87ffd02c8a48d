package model

import "time"

const (
	VisitorsTable      = "SupportVisitors"
	AgentsTable        = "SupportAgents"
	ConversationsTable = "SupportConversations"
	MessagesTable      = "SupportMessages"
	RatingsTable       = "SupportRatings"
	AgentOTPsTable     = "SupportAgentOTPs"
)

const (
	AgentsByEmailIndex         = "byEmail"
	OTPsByEmailIndex           = "byEmail"
	ConversationsByStatusIndex = "byStatus"
	ConversationsByAgentIndex  = "byHandledBy"
)

// TimeLayout is fixed width so stored timestamps sort lexically.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func ParseTime(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

type AgentItem struct {
	AgentID            string `dynamodbav:"agentId"`
	Name               string `dynamodbav:"name"`
	Email              string `dynamodbav:"email"`
	IsActive           bool   `dynamodbav:"isActive"`
	IsOnline           bool   `dynamodbav:"isOnline"`
	MaxConcurrentChats int    `dynamodbav:"maxConcurrentChats"`
	CreatedAt          string `dynamodbav:"createdAt"`
}

type AgentOTPItem struct {
	OTPID      string `dynamodbav:"otpId"`
	Email      string `dynamodbav:"email"`
	CodeHash   string `dynamodbav:"codeHash"`
	CreatedAt  string `dynamodbav:"createdAt"`
	IsVerified bool   `dynamodbav:"isVerified"`
	Attempts   int    `dynamodbav:"attempts"`
}

const DefaultMaxConcurrentChats = 3
