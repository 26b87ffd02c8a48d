package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"support-chat-backend/internal/eventbus"
	"support-chat-backend/internal/logger"
	"support-chat-backend/internal/model"
	authsvc "support-chat-backend/internal/service/auth"
	"support-chat-backend/internal/service/conversation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testConversation = "c1"
	testVisitor      = "v1"
	visitorToken     = "visitor-token"
)

type fakeAuth struct{}

func (fakeAuth) Authenticate(ctx context.Context, token string) (authsvc.Identity, error) {
	if agentID, ok := strings.CutPrefix(token, "agent-"); ok {
		return authsvc.Identity{Agent: model.AgentItem{AgentID: agentID, Name: agentID, IsActive: true}}, nil
	}
	return authsvc.Identity{}, &authsvc.Error{Code: authsvc.ErrorCodeUnauthenticated, Message: "invalid session token"}
}

type fakeEngine struct {
	mu   sync.Mutex
	bus  eventbus.Publisher
	conv model.ConversationItem
}

func newFakeEngine(bus eventbus.Publisher) *fakeEngine {
	return &fakeEngine{
		bus: bus,
		conv: model.ConversationItem{
			ConversationID:   testConversation,
			VisitorID:        testVisitor,
			Status:           model.ConversationStatusAssigned,
			AssignedAgentID:  "a1",
			HandledByAgentID: "a1",
		},
	}
}

func (f *fakeEngine) ValidateVisitorAccess(token string) (conversation.VisitorAccess, error) {
	if token != visitorToken {
		return conversation.VisitorAccess{}, &conversation.Error{Code: conversation.ErrorCodeUnauthenticated, Message: "invalid visitor token"}
	}
	return conversation.VisitorAccess{ConversationID: testConversation, VisitorID: testVisitor}, nil
}

func (f *fakeEngine) AuthorizeRead(ctx context.Context, actor conversation.Actor, conversationID string) (model.ConversationItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conversationID != f.conv.ConversationID {
		return model.ConversationItem{}, &conversation.Error{Code: conversation.ErrorCodeNotFound, Message: "conversation not found"}
	}
	if actor.ID != f.conv.VisitorID && actor.ID != f.conv.AssignedAgentID {
		return model.ConversationItem{}, &conversation.Error{Code: conversation.ErrorCodeUnauthorized, Message: "not allowed"}
	}
	return f.conv, nil
}

func (f *fakeEngine) PostMessage(ctx context.Context, params conversation.PostMessageParams) (model.MessageItem, error) {
	f.mu.Lock()
	closed := f.conv.Status.IsTerminal()
	f.mu.Unlock()
	if closed {
		return model.MessageItem{}, &conversation.Error{Code: conversation.ErrorCodeConflict, Message: "conversation is closed"}
	}
	if strings.TrimSpace(params.Body) == "" {
		return model.MessageItem{}, &conversation.Error{Code: conversation.ErrorCodeValidation, Message: "message is required"}
	}

	msg := model.MessageItem{
		ConversationID: params.ConversationID,
		MessageID:      uuid.NewString(),
		SenderType:     params.SenderType,
		SenderID:       params.SenderID,
		Body:           params.Body,
		CreatedAt:      model.FormatTime(time.Now()),
	}
	_ = f.bus.Publish(ctx, eventbus.ConversationTopic(params.ConversationID), conversation.MessageEvent{
		Type:    conversation.EventMessage,
		Payload: conversation.NewEnvelope(msg),
	})
	return msg, nil
}

func (f *fakeEngine) CloseConversation(ctx context.Context, actor conversation.Actor, conversationID string, rating *conversation.RatingParams) (conversation.CloseResult, error) {
	f.mu.Lock()
	already := f.conv.Status.IsTerminal()
	f.conv.Status = model.ConversationStatusClosed
	f.conv.AssignedAgentID = ""
	conv := f.conv
	f.mu.Unlock()

	if !already {
		_ = f.bus.Publish(ctx, eventbus.ConversationTopic(conversationID), conversation.ConversationEndedEvent{
			Type:           conversation.EventConversationClosed,
			ConversationID: conversationID,
		})
	}
	return conversation.CloseResult{Conversation: conv, AlreadyClosed: already}, nil
}

type gateway struct {
	server  *httptest.Server
	hub     *Hub
	bus     *eventbus.Hub
	handler *Handler
}

func newGateway(t *testing.T) *gateway {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	bus := eventbus.NewHub(logger.Discard())
	go bus.Run(ctx)

	hub := NewHub()
	h := NewHandler(hub, bus, newFakeEngine(bus), fakeAuth{}, Options{Logger: logger.Discard(), PingInterval: 5 * time.Second})

	serve := func(fn func(w http.ResponseWriter, r *http.Request) error) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if err := fn(w, r); err != nil {
				http.Error(w, err.Error(), statusOf(err))
			}
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /queue", serve(h.ServeQueue))
	mux.HandleFunc("GET /agents/{agentId}", serve(func(w http.ResponseWriter, r *http.Request) error {
		return h.ServeAgent(w, r, r.PathValue("agentId"))
	}))
	mux.HandleFunc("GET /conversations/{id}", serve(func(w http.ResponseWriter, r *http.Request) error {
		return h.ServeConversation(w, r, r.PathValue("id"))
	}))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		hub.CloseAll()
		server.Close()
		cancel()
	})
	return &gateway{server: server, hub: hub, bus: bus, handler: h}
}

func statusOf(err error) int {
	var gwErr *GatewayError
	var authErr *authsvc.Error
	var convErr *conversation.Error
	switch {
	case errors.As(err, &gwErr):
		return gwErr.Status
	case errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &convErr) && convErr.Code == conversation.ErrorCodeUnauthorized:
		return http.StatusForbidden
	case errors.As(err, &convErr) && convErr.Code == conversation.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

func (g *gateway) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	conn, resp, err := g.tryDial(path)
	require.NoError(t, err, "dial %s", path)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (g *gateway) tryDial(path string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(g.server.URL, "http") + path
	return websocket.DefaultDialer.Dial(url, nil)
}

// waitForClients blocks until the registry reports n open connections.
func (g *gateway) waitForClients(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return g.hub.Count("") == n }, 2*time.Second, 10*time.Millisecond)
}

// readFrames reads until every wanted frame type has been seen.
func readFrames(t *testing.T, conn *websocket.Conn, want ...string) map[string]map[string]any {
	t.Helper()
	seen := make(map[string]map[string]any)
	deadline := time.Now().Add(2 * time.Second)
	for len(seen) < len(want) {
		require.NoError(t, conn.SetReadDeadline(deadline))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %v, saw %v", want, seen)

		var frame map[string]any
		require.NoError(t, json.Unmarshal(data, &frame))
		typ, _ := frame["type"].(string)
		for _, w := range want {
			if w == typ {
				seen[typ] = frame
			}
		}
	}
	return seen
}

func TestConversationChannelRelaysMessagesToBothParties(t *testing.T) {
	g := newGateway(t)
	visitor := g.dial(t, "/conversations/c1?role=visitor&token="+visitorToken)
	agent := g.dial(t, "/conversations/c1?role=agent&token=agent-a1")
	g.waitForClients(t, 2)

	require.NoError(t, agent.WriteJSON(InboundFrame{Type: FrameMessage, SenderType: "agent", SenderID: "a1", Message: "hello"}))

	frames := readFrames(t, agent, FrameAck, conversation.EventMessage)
	assert.Equal(t, true, frames[FrameAck]["ok"])
	assert.Equal(t, FrameMessage, frames[FrameAck]["request"])

	payload := frames[conversation.EventMessage]["payload"].(map[string]any)
	assert.Equal(t, "hello", payload["message"])
	assert.Equal(t, "agent", payload["sender_type"])
	assert.Equal(t, "a1", payload["sender_id"])

	visitorFrames := readFrames(t, visitor, conversation.EventMessage)
	assert.Equal(t, payload, visitorFrames[conversation.EventMessage]["payload"], "both parties see the identical envelope")
}

func TestConversationChannelRejectsForgedSender(t *testing.T) {
	g := newGateway(t)
	visitor := g.dial(t, "/conversations/c1?token="+visitorToken)

	require.NoError(t, visitor.WriteJSON(InboundFrame{Type: FrameMessage, SenderType: "agent", SenderID: "a1", Message: "hi"}))
	ack := readFrames(t, visitor, FrameAck)[FrameAck]
	assert.Equal(t, false, ack["ok"])
	assert.Equal(t, string(conversation.ErrorCodeUnauthorized), ack["code"])

	require.NoError(t, visitor.WriteJSON(map[string]string{"type": "typing"}))
	ack = readFrames(t, visitor, FrameAck)[FrameAck]
	assert.Equal(t, string(conversation.ErrorCodeValidation), ack["code"])
	assert.Equal(t, "typing", ack["request"])
}

func TestCloseFrameBroadcastsAndIsIdempotent(t *testing.T) {
	g := newGateway(t)
	visitor := g.dial(t, "/conversations/c1?role=visitor&token="+visitorToken)
	agent := g.dial(t, "/conversations/c1?role=agent&token=agent-a1")
	g.waitForClients(t, 2)

	require.NoError(t, agent.WriteJSON(InboundFrame{Type: FrameClose, AgentRating: 4, SystemRating: 5, Feedback: "fast"}))
	frames := readFrames(t, agent, FrameAck, conversation.EventConversationClosed)
	assert.Equal(t, true, frames[FrameAck]["ok"])
	readFrames(t, visitor, conversation.EventConversationClosed)

	require.NoError(t, visitor.WriteJSON(InboundFrame{Type: FrameClose}))
	ack := readFrames(t, visitor, FrameAck)[FrameAck]
	assert.Equal(t, true, ack["ok"])
	assert.Equal(t, true, ack["already_closed"])

	require.NoError(t, visitor.WriteJSON(InboundFrame{Type: FrameMessage, Message: "still there?"}))
	ack = readFrames(t, visitor, FrameAck)[FrameAck]
	assert.Equal(t, string(conversation.ErrorCodeConflict), ack["code"])
}

func TestConversationChannelAuthorization(t *testing.T) {
	g := newGateway(t)

	_, resp, err := g.tryDial("/conversations/c1?role=visitor&token=wrong")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = g.tryDial("/conversations/c1?role=agent&token=agent-a2")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, resp, err = g.tryDial("/conversations/c1?role=robot&token=x")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQueueMonitorReceivesQueueEvents(t *testing.T) {
	g := newGateway(t)

	_, resp, err := g.tryDial("/queue?token=nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	monitor := g.dial(t, "/queue?token=agent-a1")
	g.waitForClients(t, 1)

	require.NoError(t, g.bus.Publish(context.Background(), eventbus.QueueTopic, conversation.NewConversationEvent{
		Type:           conversation.EventNewConversation,
		ConversationID: "c9",
		VisitorName:    "Alice",
		VisitorEmail:   "alice@example.com",
	}))
	frame := readFrames(t, monitor, conversation.EventNewConversation)[conversation.EventNewConversation]
	assert.Equal(t, "Alice", frame["visitor_name"])

	require.NoError(t, monitor.WriteJSON(InboundFrame{Type: FramePing}))
	readFrames(t, monitor, FramePong)
}

func TestAgentChannelRequiresOwnSession(t *testing.T) {
	g := newGateway(t)

	_, resp, err := g.tryDial("/agents/a1?token=agent-a2")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := g.dial(t, "/agents/a1?token=agent-a1")
	g.waitForClients(t, 1)

	require.NoError(t, g.bus.Publish(context.Background(), eventbus.AgentTopic("a1"), conversation.AgentAssignedEvent{
		Type:           conversation.EventAgentAssigned,
		ConversationID: "c1",
		AgentName:      "Bob",
	}))
	frame := readFrames(t, conn, conversation.EventAgentAssigned)[conversation.EventAgentAssigned]
	assert.Equal(t, "c1", frame["conversation_id"])
}

func TestDisconnectReleasesConnection(t *testing.T) {
	g := newGateway(t)
	conn := g.dial(t, "/conversations/c1?role=visitor&token="+visitorToken)
	g.waitForClients(t, 1)
	assert.Equal(t, 1, g.hub.Count(KindConversation))

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	g.waitForClients(t, 0)

	// The topic keeps working for later subscribers.
	again := g.dial(t, "/conversations/c1?role=visitor&token="+visitorToken)
	g.waitForClients(t, 1)
	require.NoError(t, again.WriteJSON(InboundFrame{Type: FrameMessage, Message: "back"}))
	readFrames(t, again, FrameAck, conversation.EventMessage)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, originAllowed(nil, "https://anything.example"))
	assert.True(t, originAllowed([]string{"https://app.example"}, ""))
	assert.True(t, originAllowed([]string{"https://app.example"}, "https://app.example"))
	assert.False(t, originAllowed([]string{"https://app.example"}, "https://evil.example"))
	assert.True(t, originAllowed([]string{"*"}, "https://evil.example"))
	assert.True(t, originAllowed([]string{"https://*.example.com"}, "https://help.example.com"))
}
