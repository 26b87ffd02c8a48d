package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"support-chat-backend/internal/dto"
	"support-chat-backend/internal/model"
	conversationservice "support-chat-backend/internal/service/conversation"
	"support-chat-backend/utils"
)

// ConversationEndpoints serve the visitor side of a conversation. Every call
// after creation carries the visitor token issued at creation.
type ConversationEndpoints interface {
	Conversations(http.ResponseWriter, *http.Request) error
	Conversation(http.ResponseWriter, *http.Request) error
}

type conversationEndpoints struct {
	service *conversationservice.Service
	prefix  string
}

// NewConversationEndpoints expects Conversation to be mounted at
// prefix+"/conversations/".
func NewConversationEndpoints(service *conversationservice.Service, prefix string) ConversationEndpoints {
	return &conversationEndpoints{
		service: service,
		prefix:  strings.TrimRight(prefix, "/") + "/conversations/",
	}
}

func (h *conversationEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleCreateConversation,
	})
}

func (h *conversationEndpoints) Conversation(w http.ResponseWriter, r *http.Request) error {
	_, action, err := conversationAction(r.URL.Path, h.prefix)
	if err != nil {
		return err
	}

	switch action {
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.handleListMessages,
			http.MethodPost: h.handlePostMessage,
		})
	case "leave":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleLeave,
		})
	case "close":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleClose,
		})
	case "feedback":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleFeedback,
		})
	}
	return notFound(fmt.Errorf("unknown visitor action %q", action))
}

func (h *conversationEndpoints) handleCreateConversation(w http.ResponseWriter, r *http.Request) error {
	var req dto.CreateConversationRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	result, err := h.service.CreateConversation(r.Context(), conversationservice.CreateConversationParams{
		Visitor: conversationservice.VisitorParams{
			Name:      req.Name,
			Email:     req.Email,
			Mobile:    req.Mobile,
			IPAddress: utils.RealClientIP(r),
			UserAgent: r.UserAgent(),
		},
		Message: req.Message,
	})
	if err != nil {
		return err
	}

	resp := dto.CreateConversationResponse{
		OK:             true,
		ConversationID: result.Conversation.ConversationID,
		VisitorID:      result.Visitor.VisitorID,
		VisitorToken:   result.VisitorToken,
		Status:         string(result.Conversation.Status),
	}
	if result.Message != nil {
		msg := toMessageResponse(*result.Message)
		resp.Message = &msg
	}
	return WriteJSON(w, http.StatusCreated, resp)
}

func (h *conversationEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request) error {
	access, err := h.visitorAccess(r)
	if err != nil {
		return err
	}

	result, err := h.service.ListMessages(r.Context(), conversationservice.VisitorActor(access.VisitorID), access.ConversationID, 0)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, toListMessagesResponse(result))
}

func (h *conversationEndpoints) handlePostMessage(w http.ResponseWriter, r *http.Request) error {
	access, err := h.visitorAccess(r)
	if err != nil {
		return err
	}

	var req dto.PostMessageRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	message, err := h.service.PostMessage(r.Context(), conversationservice.PostMessageParams{
		ConversationID: access.ConversationID,
		SenderType:     model.SenderVisitor,
		SenderID:       access.VisitorID,
		Body:           req.Message,
	})
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusCreated, dto.PostMessageResponse{OK: true, Message: toMessageResponse(message)})
}

func (h *conversationEndpoints) handleLeave(w http.ResponseWriter, r *http.Request) error {
	access, err := h.visitorAccess(r)
	if err != nil {
		return err
	}

	result, err := h.service.AbandonConversation(r.Context(), access.VisitorID, access.ConversationID)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, toCloseResponse(result))
}

func (h *conversationEndpoints) handleClose(w http.ResponseWriter, r *http.Request) error {
	access, err := h.visitorAccess(r)
	if err != nil {
		return err
	}

	result, err := h.service.CloseConversation(r.Context(), conversationservice.VisitorActor(access.VisitorID), access.ConversationID, nil)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, toCloseResponse(result))
}

func (h *conversationEndpoints) handleFeedback(w http.ResponseWriter, r *http.Request) error {
	access, err := h.visitorAccess(r)
	if err != nil {
		return err
	}

	var req dto.FeedbackRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	if _, err := h.service.SubmitFeedback(r.Context(), access.VisitorID, access.ConversationID, conversationservice.RatingParams{
		AgentRating:  req.AgentRating,
		SystemRating: req.SystemRating,
		Comment:      req.Comment,
	}); err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, dto.OKResponse{OK: true})
}

// visitorAccess checks the visitor token and that it was issued for the
// conversation named in the path.
func (h *conversationEndpoints) visitorAccess(r *http.Request) (conversationservice.VisitorAccess, error) {
	conversationID, _, err := conversationAction(r.URL.Path, h.prefix)
	if err != nil {
		return conversationservice.VisitorAccess{}, err
	}

	token := strings.TrimSpace(r.Header.Get("X-Visitor-Token"))
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}

	access, err := h.service.ValidateVisitorAccess(token)
	if err != nil {
		return conversationservice.VisitorAccess{}, err
	}
	if access.ConversationID != conversationID {
		return conversationservice.VisitorAccess{}, &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Token does not match conversation",
			ErrorLog:   fmt.Errorf("visitor token for %s used on %s", access.ConversationID, conversationID),
		}
	}
	return access, nil
}

func toConversationResponse(item model.ConversationItem) dto.ConversationResponse {
	return dto.ConversationResponse{
		ConversationID:   item.ConversationID,
		VisitorID:        item.VisitorID,
		VisitorName:      item.VisitorName,
		VisitorEmail:     item.VisitorEmail,
		Status:           string(item.Status),
		AssignedAgentID:  item.AssignedAgentID,
		HandledByAgentID: item.HandledByAgentID,
		AssignedAt:       item.AssignedAt,
		StartedAt:        item.StartedAt,
		EndedAt:          item.EndedAt,
	}
}

func toConversationResponses(items []model.ConversationItem) []dto.ConversationResponse {
	out := make([]dto.ConversationResponse, len(items))
	for i, item := range items {
		out[i] = toConversationResponse(item)
	}
	return out
}

func toMessageResponse(item model.MessageItem) dto.MessageResponse {
	env := conversationservice.NewEnvelope(item)
	return dto.MessageResponse{
		ID:           env.ID,
		Conversation: env.Conversation,
		SenderType:   env.SenderType,
		SenderID:     env.SenderID,
		Message:      env.Message,
		CreatedAt:    env.CreatedAt,
	}
}

func toListMessagesResponse(result conversationservice.ListMessagesResult) dto.ListMessagesResponse {
	resp := dto.ListMessagesResponse{
		OK:           true,
		Conversation: toConversationResponse(result.Conversation),
		Messages:     make([]dto.MessageResponse, len(result.Messages)),
	}
	for i, msg := range result.Messages {
		resp.Messages[i] = toMessageResponse(msg)
	}
	return resp
}

func toCloseResponse(result conversationservice.CloseResult) dto.CloseConversationResponse {
	return dto.CloseConversationResponse{
		OK:            true,
		Status:        string(result.Conversation.Status),
		AlreadyClosed: result.AlreadyClosed,
	}
}
