package endpoints

import (
	"net/http"
	"testing"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/middleware"
	"support-chat-backend/internal/dto"
)

func TestAgentRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	var resp api.ApiError
	rec := env.do(t, http.MethodGet, agentPrefix+"/conversations", nil, nil, &resp)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	if resp.OK {
		t.Fatal("expected ok=false")
	}

	rec = env.do(t, http.MethodGet, agentPrefix+"/conversations", nil, bearer("garbage"), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for a bad token, got %d", rec.Code)
	}
}

func TestAgentSessionFromCookie(t *testing.T) {
	env := newTestEnv(t)
	login := env.loginAgent(t, "cookie@example.com")

	rec := env.do(t, http.MethodGet, agentPrefix+"/conversations", nil,
		map[string]string{"Cookie": middleware.SessionCookieName + "=" + login.Token}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestAgentAcceptAndServeConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "I need help")
	convID := conv.Conversation.ConversationID
	alice := env.loginAgent(t, "alice@example.com")
	bob := env.loginAgent(t, "bob@example.com")

	var dashboard dto.DashboardResponse
	env.do(t, http.MethodGet, agentPrefix+"/conversations", nil, bearer(alice.Token), &dashboard)
	if len(dashboard.Waiting) != 1 || dashboard.Waiting[0].ConversationID != convID {
		t.Fatalf("expected the conversation in the waiting list, got %+v", dashboard.Waiting)
	}

	var accepted dto.AcceptConversationResponse
	rec := env.do(t, http.MethodPost, agentPrefix+"/conversations/"+convID+"/accept", nil, bearer(alice.Token), &accepted)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if accepted.Conversation.Status != "assigned" || accepted.Conversation.AssignedAgentID != alice.Agent.AgentID {
		t.Fatalf("unexpected conversation after accept %+v", accepted.Conversation)
	}

	var lost api.ApiError
	rec = env.do(t, http.MethodPost, agentPrefix+"/conversations/"+convID+"/accept", nil, bearer(bob.Token), &lost)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rec.Code)
	}
	if lost.Error != "already_assigned_or_closed" {
		t.Fatalf("expected already_assigned_or_closed, got %+v", lost)
	}

	var posted dto.PostMessageResponse
	rec = env.do(t, http.MethodPost, agentPrefix+"/conversations/"+convID+"/messages", dto.PostMessageRequest{Message: "On it"}, bearer(alice.Token), &posted)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if posted.Message.SenderType != "agent" {
		t.Fatalf("unexpected sender type %s", posted.Message.SenderType)
	}

	var list dto.ListMessagesResponse
	env.do(t, http.MethodGet, agentPrefix+"/conversations/"+convID+"/messages", nil, bearer(alice.Token), &list)
	if list.Conversation.Status != "active" {
		t.Fatalf("expected active after the first agent message, got %s", list.Conversation.Status)
	}
	if len(list.Messages) != 3 {
		t.Fatalf("expected visitor, system and agent messages, got %d", len(list.Messages))
	}
	if list.Messages[1].SenderType != "system" || list.Messages[1].SenderID != nil {
		t.Fatalf("expected the join notice second, got %+v", list.Messages[1])
	}

	dashboard = dto.DashboardResponse{}
	env.do(t, http.MethodGet, agentPrefix+"/conversations", nil, bearer(alice.Token), &dashboard)
	if len(dashboard.Waiting) != 0 || len(dashboard.Active) != 1 {
		t.Fatalf("unexpected dashboard %+v", dashboard)
	}

	var closed dto.CloseConversationResponse
	rec = env.do(t, http.MethodPost, agentPrefix+"/conversations/"+convID+"/close",
		dto.CloseConversationRequest{AgentRating: 5, SystemRating: 4, Feedback: "resolved"}, bearer(alice.Token), &closed)
	if rec.Code != http.StatusOK || closed.AlreadyClosed || closed.Status != "closed" {
		t.Fatalf("unexpected close %d %+v", rec.Code, closed)
	}

	closed = dto.CloseConversationResponse{}
	env.do(t, http.MethodPost, agentPrefix+"/conversations/"+convID+"/close", nil, bearer(alice.Token), &closed)
	if !closed.AlreadyClosed {
		t.Fatal("expected the second close to report already_closed")
	}

	dashboard = dto.DashboardResponse{}
	env.do(t, http.MethodGet, agentPrefix+"/conversations", nil, bearer(alice.Token), &dashboard)
	if len(dashboard.Active) != 0 || len(dashboard.Closed) != 1 {
		t.Fatalf("expected the conversation in the closed list, got %+v", dashboard)
	}
}

func TestAgentCannotServeForeignConversation(t *testing.T) {
	env := newTestEnv(t)
	conv := env.createConversation(t, "Hi")
	convID := conv.Conversation.ConversationID
	alice := env.loginAgent(t, "alice@example.com")
	bob := env.loginAgent(t, "bob@example.com")

	env.do(t, http.MethodPost, agentPrefix+"/conversations/"+convID+"/accept", nil, bearer(alice.Token), nil)

	rec := env.do(t, http.MethodPost, agentPrefix+"/conversations/"+convID+"/messages", dto.PostMessageRequest{Message: "hijack"}, bearer(bob.Token), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 posting, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, agentPrefix+"/conversations/"+convID+"/messages", nil, bearer(bob.Token), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 reading, got %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, agentPrefix+"/conversations/"+convID+"/close", nil, bearer(bob.Token), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 closing, got %d", rec.Code)
	}
}

func TestAgentAcceptUnknownConversation(t *testing.T) {
	env := newTestEnv(t)
	alice := env.loginAgent(t, "alice@example.com")

	var resp api.ApiError
	rec := env.do(t, http.MethodPost, agentPrefix+"/conversations/does-not-exist/accept", nil, bearer(alice.Token), &resp)
	if rec.Code != http.StatusNotFound || resp.Code != "not_found" {
		t.Fatalf("expected 404 not_found, got %d %+v", rec.Code, resp)
	}
}

func TestDeactivatedAgentIsForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := env.loginAgent(t, "alice@example.com")

	if err := env.auth.SetAgentActive(t.Context(), alice.Agent.AgentID, false); err != nil {
		t.Fatalf("SetAgentActive: %v", err)
	}

	rec := env.do(t, http.MethodGet, agentPrefix+"/conversations", nil, bearer(alice.Token), nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d", rec.Code)
	}
}
