package dto

type ConversationResponse struct {
	ConversationID   string `json:"conversation_id"`
	VisitorID        string `json:"visitor_id"`
	VisitorName      string `json:"visitor_name,omitempty"`
	VisitorEmail     string `json:"visitor_email,omitempty"`
	Status           string `json:"status"`
	AssignedAgentID  string `json:"assigned_agent_id,omitempty"`
	HandledByAgentID string `json:"handled_by_agent_id,omitempty"`
	AssignedAt       string `json:"assigned_at,omitempty"`
	StartedAt        string `json:"started_at"`
	EndedAt          string `json:"ended_at,omitempty"`
}

// MessageResponse mirrors the realtime message envelope so REST and
// websocket clients render the same shape.
type MessageResponse struct {
	ID           string  `json:"id"`
	Conversation string  `json:"conversation"`
	SenderType   string  `json:"sender_type"`
	SenderID     *string `json:"sender_id"`
	Message      string  `json:"message"`
	CreatedAt    string  `json:"created_at"`
}

type CreateConversationRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Mobile  string `json:"mobile,omitempty"`
	Message string `json:"message,omitempty"`
}

type CreateConversationResponse struct {
	OK             bool             `json:"ok"`
	ConversationID string           `json:"conversation_id"`
	VisitorID      string           `json:"visitor_id"`
	VisitorToken   string           `json:"visitor_token"`
	Status         string           `json:"status"`
	Message        *MessageResponse `json:"message,omitempty"`
}

type PostMessageRequest struct {
	Message string `json:"message"`
}

type PostMessageResponse struct {
	OK      bool            `json:"ok"`
	Message MessageResponse `json:"message"`
}

type ListMessagesResponse struct {
	OK           bool                 `json:"ok"`
	Conversation ConversationResponse `json:"conversation"`
	Messages     []MessageResponse    `json:"messages"`
}

// CloseConversationRequest carries the optional rating an agent may attach.
type CloseConversationRequest struct {
	AgentRating  int    `json:"agent_rating,omitempty"`
	SystemRating int    `json:"system_rating,omitempty"`
	Feedback     string `json:"feedback,omitempty"`
}

type CloseConversationResponse struct {
	OK            bool   `json:"ok"`
	Status        string `json:"status"`
	AlreadyClosed bool   `json:"already_closed"`
}

type FeedbackRequest struct {
	AgentRating  int    `json:"agent_rating"`
	SystemRating int    `json:"system_rating"`
	Comment      string `json:"comment"`
}

type AcceptConversationResponse struct {
	OK           bool                 `json:"ok"`
	Conversation ConversationResponse `json:"conversation"`
}

type DashboardResponse struct {
	OK      bool                   `json:"ok"`
	Waiting []ConversationResponse `json:"waiting"`
	Active  []ConversationResponse `json:"active"`
	Closed  []ConversationResponse `json:"closed"`
}

type WidgetSettingsResponse struct {
	OK           bool   `json:"ok"`
	BubbleText   string `json:"bubble_text"`
	HeaderText   string `json:"header_text"`
	ThemeColor   string `json:"theme_color"`
	WebsocketURL string `json:"websocket_url,omitempty"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

type HealthResponse struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}
