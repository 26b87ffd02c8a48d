package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	authsvc "support-chat-backend/internal/service/auth"
)

const SessionCookieName = "agent_session_token"

type SessionAuthenticator interface {
	Authenticate(ctx context.Context, token string) (authsvc.Identity, error)
}

type identityKey struct{}

// RequireAgent rejects requests without a live agent session and stores the
// resolved identity on the request context.
func RequireAgent(auth SessionAuthenticator) Middleware {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			identity, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				status, message := authFailure(err)
				writeAuthError(w, status, message)
				return
			}

			annotateAccess(r.Context(), "agent_id", identity.Agent.AgentID)
			next(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, identity)))
		}
	}
}

func AgentFromContext(ctx context.Context) (authsvc.Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(authsvc.Identity)
	return identity, ok
}

// SessionToken reads the agent session from the Authorization header, then
// the session cookie, then the token query parameter.
func SessionToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func authFailure(err error) (int, string) {
	var authErr *authsvc.Error
	if !errors.As(err, &authErr) {
		return http.StatusInternalServerError, "Internal server error"
	}
	switch authErr.Code {
	case authsvc.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized, authErr.Message
	case authsvc.ErrorCodeUnauthorized:
		return http.StatusForbidden, authErr.Message
	case authsvc.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable, authErr.Message
	}
	return http.StatusInternalServerError, "Internal server error"
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": message})
}
