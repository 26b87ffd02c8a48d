package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"support-chat-backend/internal/api"
)

type HTTPError = api.HTTPError

const maxBodyBytes = 64 << 10

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method not allowed: %s %s", r.Method, r.URL.Path),
	}
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return &HTTPError{
		StatusCode: http.StatusBadRequest,
		Message:    "Invalid request payload",
		ErrorLog:   fmt.Errorf("decode %s body: %w", r.URL.Path, err),
	}
}

// conversationAction splits "<prefix><id>/<action>" into its parts. The
// action is empty for "<prefix><id>".
func conversationAction(path, prefix string) (string, string, error) {
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", "", notFound(fmt.Errorf("path mismatch: %s", path))
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if parts[0] == "" || len(parts) > 2 {
		return "", "", notFound(fmt.Errorf("invalid conversation path: %s", path))
	}
	if len(parts) == 1 {
		return parts[0], "", nil
	}
	return parts[0], parts[1], nil
}

func notFound(err error) *HTTPError {
	return &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: err}
}
