package api

import "testing"

func TestSanitizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "/"},
		{in: "/", want: "/"},
		{in: "/metrics", want: "/metrics"},
		{in: "/api/public/v1/conversations", want: "/api/public/v1/conversations"},
		{in: "/api/agent/v1/conversations/c-123/accept", want: "/api/agent/v1/conversations/:id/accept"},
		{in: "/api/ws/v1/agents/a-9", want: "/api/ws/v1/agents/:id"},
		{in: "/api/public/v1//conversations/x/../y/messages", want: "/api/public/v1/conversations/:id/messages"},
		{in: "/a/b/c/d/e/f/g/h", want: "/a/b/c/d/e/f/..."},
	}

	for _, tt := range tests {
		if got := sanitizePath(tt.in); got != tt.want {
			t.Errorf("sanitizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
