package jwt

import "errors"

type Role int

const (
	RoleAgent Role = iota
)

// Claims is what an agent session token carries.
type Claims struct {
	AgentID   string
	Email     string
	SessionID string
	ExpiresAt int64
}

// Session is the server-side record behind a session token.
type Session struct {
	ID        string `json:"id"`
	AgentID   string `json:"agentId"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"createdAt"`
}

var ErrSessionNotFound = errors.New("session not found")
