// Package websocket is the realtime gateway. Each connection subscribes to
// one event bus topic, relays its events verbatim and, on conversation
// channels, turns inbound frames into engine calls.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"support-chat-backend/internal/api/middleware"
	"support-chat-backend/internal/eventbus"
	"support-chat-backend/internal/model"
	authsvc "support-chat-backend/internal/service/auth"
	"support-chat-backend/internal/service/conversation"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const dispatchTimeout = 15 * time.Second

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (authsvc.Identity, error)
}

type ConversationEngine interface {
	ValidateVisitorAccess(token string) (conversation.VisitorAccess, error)
	AuthorizeRead(ctx context.Context, actor conversation.Actor, conversationID string) (model.ConversationItem, error)
	PostMessage(ctx context.Context, params conversation.PostMessageParams) (model.MessageItem, error)
	CloseConversation(ctx context.Context, actor conversation.Actor, conversationID string, rating *conversation.RatingParams) (conversation.CloseResult, error)
}

type Options struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	Logger         *slog.Logger
}

type Handler struct {
	hub      *Hub
	bus      eventbus.Bus
	engine   ConversationEngine
	auth     Authenticator
	upgrader websocket.Upgrader
	logger   *slog.Logger
	pingGap  time.Duration
}

func NewHandler(h *Hub, bus eventbus.Bus, engine ConversationEngine, auth Authenticator, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingGap
	}
	origins := opts.AllowedOrigins

	return &Handler{
		hub:    h,
		bus:    bus,
		engine: engine,
		auth:   auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(origins, r.Header.Get("Origin"))
			},
		},
		logger:  opts.Logger.With("component", "gateway"),
		pingGap: opts.PingInterval,
	}
}

func (h *Handler) Hub() *Hub {
	return h.hub
}

// ServeQueue opens a receive-only queue monitor for an agent session.
func (h *Handler) ServeQueue(w http.ResponseWriter, r *http.Request) error {
	identity, err := h.auth.Authenticate(r.Context(), requestToken(r))
	if err != nil {
		return err
	}
	return h.join(w, r, KindQueue, eventbus.QueueTopic,
		h.logger.With("agent_id", identity.Agent.AgentID), h.receiveOnly(KindQueue))
}

// ServeAgent opens the private channel of agentID. The session must belong to that agent.
func (h *Handler) ServeAgent(w http.ResponseWriter, r *http.Request, agentID string) error {
	identity, err := h.auth.Authenticate(r.Context(), requestToken(r))
	if err != nil {
		return err
	}
	if identity.Agent.AgentID != agentID {
		return &GatewayError{Status: http.StatusForbidden, Message: "session does not belong to this agent"}
	}
	return h.join(w, r, KindAgent, eventbus.AgentTopic(agentID),
		h.logger.With("agent_id", agentID), h.receiveOnly(KindAgent))
}

// ServeConversation opens a conversation channel for the visitor who owns it
// (role=visitor, visitor token) or for an agent (role=agent, session token).
func (h *Handler) ServeConversation(w http.ResponseWriter, r *http.Request, conversationID string) error {
	ctx := r.Context()
	token := requestToken(r)

	var actor conversation.Actor
	switch r.URL.Query().Get("role") {
	case "", string(model.SenderVisitor):
		access, err := h.engine.ValidateVisitorAccess(token)
		if err != nil {
			return err
		}
		if access.ConversationID != conversationID {
			return &GatewayError{Status: http.StatusForbidden, Message: "token is not valid for this conversation"}
		}
		actor = conversation.VisitorActor(access.VisitorID)
	case string(model.SenderAgent):
		identity, err := h.auth.Authenticate(ctx, token)
		if err != nil {
			return err
		}
		actor = conversation.AgentActor(identity.Agent.AgentID)
	default:
		return &GatewayError{Status: http.StatusBadRequest, Message: "role must be visitor or agent"}
	}

	if _, err := h.engine.AuthorizeRead(ctx, actor, conversationID); err != nil {
		return err
	}

	logger := h.logger.With("conversation_id", conversationID, "actor_type", actor.Type, "actor_id", actor.ID)
	return h.join(w, r, KindConversation, eventbus.ConversationTopic(conversationID), logger,
		func(raw []byte) any {
			return h.dispatch(actor, conversationID, raw)
		})
}

// join subscribes before upgrading so a bus failure is still an HTTP error.
func (h *Handler) join(w http.ResponseWriter, r *http.Request, kind Kind, topic string, logger *slog.Logger, handle frameHandler) error {
	sub, err := h.bus.Subscribe(context.Background(), topic)
	if err != nil {
		return &GatewayError{Status: http.StatusServiceUnavailable, Message: "realtime channel unavailable", Err: err}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		sub.Close()
		logger.Warn("websocket upgrade failed", "error", err)
		return nil
	}

	id := uuid.NewString()
	cl := &WSClient{
		Conn:    conn,
		ID:      id,
		Kind:    kind,
		Topic:   topic,
		sub:     sub,
		hub:     h.hub,
		logger:  logger.With("client_id", id, "kind", kind),
		pingGap: h.pingGap,
		done:    make(chan struct{}),
	}
	cl.start(handle)
	cl.logger.Debug("client connected", "topic", topic)
	return nil
}

func (h *Handler) receiveOnly(kind Kind) frameHandler {
	return func(raw []byte) any {
		var frame InboundFrame
		if err := json.Unmarshal(raw, &frame); err == nil && frame.Type == FramePing {
			countFrame(kind, FramePing, true)
			return pongFrame{Type: FramePong}
		}
		return nil
	}
}

// dispatch runs one inbound conversation frame through the engine and
// builds the ack. The authenticated actor is always the sender.
func (h *Handler) dispatch(actor conversation.Actor, conversationID string, raw []byte) any {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		countFrame(KindConversation, "invalid", false)
		return AckFrame{Type: FrameAck, Request: "unknown", Error: "frame is not valid JSON", Code: string(conversation.ErrorCodeValidation)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	var ack AckFrame
	switch frame.Type {
	case FramePing:
		countFrame(KindConversation, FramePing, true)
		return pongFrame{Type: FramePong}

	case FrameMessage:
		ack = AckFrame{Type: FrameAck, Request: FrameMessage}
		if (frame.SenderType != "" && frame.SenderType != string(actor.Type)) ||
			(frame.SenderID != "" && frame.SenderID != actor.ID) {
			ack.Error = "sender does not match the authenticated party"
			ack.Code = string(conversation.ErrorCodeUnauthorized)
			break
		}
		message, err := h.engine.PostMessage(ctx, conversation.PostMessageParams{
			ConversationID: conversationID,
			SenderType:     actor.Type,
			SenderID:       actor.ID,
			Body:           frame.Message,
		})
		if err != nil {
			fillError(&ack, err)
			break
		}
		ack.OK = true
		ack.MessageID = message.MessageID

	case FrameClose:
		ack = AckFrame{Type: FrameAck, Request: FrameClose}
		var rating *conversation.RatingParams
		if actor.Type == model.SenderAgent && (frame.AgentRating != 0 || frame.SystemRating != 0 || frame.Feedback != "") {
			rating = &conversation.RatingParams{
				AgentRating:  frame.AgentRating,
				SystemRating: frame.SystemRating,
				Comment:      frame.Feedback,
			}
		}
		res, err := h.engine.CloseConversation(ctx, actor, conversationID, rating)
		if err != nil {
			fillError(&ack, err)
			break
		}
		ack.OK = true
		ack.AlreadyClosed = res.AlreadyClosed

	default:
		ack = AckFrame{
			Type:    FrameAck,
			Request: frame.Type,
			Error:   "unknown frame type",
			Code:    string(conversation.ErrorCodeValidation),
		}
	}

	countFrame(KindConversation, ack.Request, ack.OK)
	return ack
}

func fillError(ack *AckFrame, err error) {
	var svcErr *conversation.Error
	if errors.As(err, &svcErr) {
		ack.Code = string(svcErr.Code)
		ack.Error = svcErr.Message
		if svcErr.Reason != "" {
			ack.Error = svcErr.Reason
		}
		return
	}
	ack.Code = string(conversation.ErrorCodeInternal)
	ack.Error = "internal error"
}

// requestToken reads the credential from the query string, where browsers
// can put it, falling back to a bearer header for other clients.
func requestToken(r *http.Request) string {
	if token := strings.TrimSpace(r.URL.Query().Get("token")); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if middleware.MatchOrigin(o, origin) {
			return true
		}
	}
	return false
}

// GatewayError is a rejection raised before the connection is upgraded.
type GatewayError struct {
	Status  int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	return e.Message
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}
