package api

import (
	"errors"
	"net/http"

	authsvc "support-chat-backend/internal/service/auth"
	"support-chat-backend/internal/service/conversation"
	"support-chat-backend/internal/websocket"
)

type HTTPError struct {
	StatusCode int
	Message    string
	ErrorLog   error
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.ErrorLog
}

// ApiError is the body of every failed request.
type ApiError struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// FromError turns any handler error into the HTTP status and body the
// client sees. Service errors keep their code; anything else is a 500.
func FromError(err error) (*HTTPError, string) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr, ""
	}

	var convErr *conversation.Error
	if errors.As(err, &convErr) {
		message := convErr.Message
		if convErr.Reason != "" {
			message = convErr.Reason
		}
		return &HTTPError{
			StatusCode: StatusForCode(string(convErr.Code)),
			Message:    message,
			ErrorLog:   err,
		}, string(convErr.Code)
	}

	var authErr *authsvc.Error
	if errors.As(err, &authErr) {
		return &HTTPError{
			StatusCode: StatusForCode(string(authErr.Code)),
			Message:    authErr.Message,
			ErrorLog:   err,
		}, string(authErr.Code)
	}

	var gwErr *websocket.GatewayError
	if errors.As(err, &gwErr) {
		return &HTTPError{StatusCode: gwErr.Status, Message: gwErr.Message, ErrorLog: err}, ""
	}

	return &HTTPError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal server error",
		ErrorLog:   err,
	}, ""
}

// StatusForCode maps the service error codes shared by every service package.
func StatusForCode(code string) int {
	switch code {
	case "validation_error":
		return http.StatusBadRequest
	case "unauthenticated":
		return http.StatusUnauthorized
	case "unauthorized":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "conflict":
		return http.StatusConflict
	case "unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
