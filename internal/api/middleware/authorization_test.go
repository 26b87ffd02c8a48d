package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"support-chat-backend/internal/model"
	authsvc "support-chat-backend/internal/service/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAuth map[string]error

func (s stubAuth) Authenticate(ctx context.Context, token string) (authsvc.Identity, error) {
	if err, ok := s[token]; ok {
		return authsvc.Identity{}, err
	}
	return authsvc.Identity{Agent: model.AgentItem{AgentID: "agent-" + token}, SessionID: "sid"}, nil
}

func TestSessionTokenSources(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?token=from-query", nil)
	assert.Equal(t, "from-query", SessionToken(req))

	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", SessionToken(req))

	req.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", SessionToken(req))
}

func TestRequireAgent(t *testing.T) {
	auth := stubAuth{
		"expired":     &authsvc.Error{Code: authsvc.ErrorCodeUnauthenticated, Message: "session expired"},
		"deactivated": &authsvc.Error{Code: authsvc.ErrorCodeUnauthorized, Message: "agent is deactivated"},
	}

	var seen authsvc.Identity
	handler := RequireAgent(auth)(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := AgentFromContext(r.Context())
		require.True(t, ok)
		seen = identity
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"expired", "Bearer expired", http.StatusUnauthorized},
		{"deactivated", "Bearer deactivated", http.StatusForbidden},
		{"valid", "Bearer good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, "agent-good", seen.Agent.AgentID)
}
