package websocket

// Kind names the three connection flavours the gateway serves.
type Kind string

const (
	KindQueue        Kind = "queue"
	KindAgent        Kind = "agent"
	KindConversation Kind = "conversation"
)

const (
	FrameMessage = "message"
	FrameClose   = "close_conversation"
	FramePing    = "ping"
	FramePong    = "pong"
	FrameAck     = "ack"
)

// InboundFrame is what clients send on a conversation channel. Rating fields
// are only read from close_conversation frames sent by the agent.
type InboundFrame struct {
	Type         string `json:"type"`
	SenderType   string `json:"sender_type,omitempty"`
	SenderID     string `json:"sender_id,omitempty"`
	Message      string `json:"message,omitempty"`
	AgentRating  int    `json:"agent_rating,omitempty"`
	SystemRating int    `json:"system_rating,omitempty"`
	Feedback     string `json:"feedback,omitempty"`
}

// AckFrame answers one inbound frame after the engine returned.
type AckFrame struct {
	Type          string `json:"type"`
	Request       string `json:"request"`
	OK            bool   `json:"ok"`
	Error         string `json:"error,omitempty"`
	Code          string `json:"code,omitempty"`
	MessageID     string `json:"message_id,omitempty"`
	AlreadyClosed bool   `json:"already_closed,omitempty"`
}

type pongFrame struct {
	Type string `json:"type"`
}
