package auth

import (
	"time"

	"support-chat-backend/internal/model"
)

type ErrorCode string

const (
	ErrorCodeValidation      ErrorCode = "validation_error"
	ErrorCodeUnauthenticated ErrorCode = "unauthenticated"
	ErrorCodeUnauthorized    ErrorCode = "unauthorized"
	ErrorCodeNotFound        ErrorCode = "not_found"
	ErrorCodeConflict        ErrorCode = "conflict"
	ErrorCodeUnavailable     ErrorCode = "unavailable"
	ErrorCodeInternal        ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Identity is an authenticated agent session.
type Identity struct {
	Agent     model.AgentItem
	SessionID string
}

type LoginResult struct {
	Agent     model.AgentItem
	Token     string
	ExpiresAt time.Time
}

type CreateAgentParams struct {
	Email              string
	Name               string
	MaxConcurrentChats int
}
