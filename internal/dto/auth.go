package dto

type RequestOTPRequest struct {
	Email string `json:"email"`
}

type VerifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type AgentResponse struct {
	AgentID            string `json:"agent_id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	IsActive           bool   `json:"is_active"`
	IsOnline           bool   `json:"is_online"`
	MaxConcurrentChats int    `json:"max_concurrent_chats"`
}

type LoginResponse struct {
	OK        bool          `json:"ok"`
	Token     string        `json:"token"`
	ExpiresAt string        `json:"expires_at"`
	Agent     AgentResponse `json:"agent"`
}

type MeResponse struct {
	OK    bool          `json:"ok"`
	Agent AgentResponse `json:"agent"`
}
