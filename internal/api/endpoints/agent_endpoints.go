package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"support-chat-backend/internal/api/middleware"
	"support-chat-backend/internal/dto"
	"support-chat-backend/internal/model"
	conversationservice "support-chat-backend/internal/service/conversation"
)

// AgentEndpoints must be mounted behind middleware.RequireAgent.
type AgentEndpoints interface {
	Dashboard(http.ResponseWriter, *http.Request) error
	Conversation(http.ResponseWriter, *http.Request) error
}

type agentEndpoints struct {
	service *conversationservice.Service
	prefix  string
}

func NewAgentEndpoints(service *conversationservice.Service, prefix string) AgentEndpoints {
	return &agentEndpoints{
		service: service,
		prefix:  strings.TrimRight(prefix, "/") + "/conversations/",
	}
}

func (h *agentEndpoints) Dashboard(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleDashboard,
	})
}

func (h *agentEndpoints) Conversation(w http.ResponseWriter, r *http.Request) error {
	_, action, err := conversationAction(r.URL.Path, h.prefix)
	if err != nil {
		return err
	}

	switch action {
	case "accept":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleAccept,
		})
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet:  h.handleListMessages,
			http.MethodPost: h.handlePostMessage,
		})
	case "close":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: h.handleClose,
		})
	}
	return notFound(fmt.Errorf("unknown agent action %q", action))
}

func (h *agentEndpoints) handleDashboard(w http.ResponseWriter, r *http.Request) error {
	agent, err := currentAgent(r)
	if err != nil {
		return err
	}

	result, err := h.service.AgentDashboard(r.Context(), agent)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, dto.DashboardResponse{
		OK:      true,
		Waiting: toConversationResponses(result.Waiting),
		Active:  toConversationResponses(result.Active),
		Closed:  toConversationResponses(result.Closed),
	})
}

func (h *agentEndpoints) handleAccept(w http.ResponseWriter, r *http.Request) error {
	agent, conversationID, err := h.target(r)
	if err != nil {
		return err
	}

	result, err := h.service.ClaimConversation(r.Context(), agent, conversationID)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, dto.AcceptConversationResponse{
		OK:           true,
		Conversation: toConversationResponse(result.Conversation),
	})
}

func (h *agentEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request) error {
	agent, conversationID, err := h.target(r)
	if err != nil {
		return err
	}

	result, err := h.service.ListMessages(r.Context(), conversationservice.AgentActor(agent.ID), conversationID, 0)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, toListMessagesResponse(result))
}

func (h *agentEndpoints) handlePostMessage(w http.ResponseWriter, r *http.Request) error {
	agent, conversationID, err := h.target(r)
	if err != nil {
		return err
	}

	var req dto.PostMessageRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	message, err := h.service.PostMessage(r.Context(), conversationservice.PostMessageParams{
		ConversationID: conversationID,
		SenderType:     model.SenderAgent,
		SenderID:       agent.ID,
		Body:           req.Message,
	})
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusCreated, dto.PostMessageResponse{OK: true, Message: toMessageResponse(message)})
}

func (h *agentEndpoints) handleClose(w http.ResponseWriter, r *http.Request) error {
	agent, conversationID, err := h.target(r)
	if err != nil {
		return err
	}

	var req dto.CloseConversationRequest
	if err := decodeBody(r, &req); err != nil {
		return err
	}

	var rating *conversationservice.RatingParams
	if req.AgentRating != 0 || req.SystemRating != 0 || strings.TrimSpace(req.Feedback) != "" {
		rating = &conversationservice.RatingParams{
			AgentRating:  req.AgentRating,
			SystemRating: req.SystemRating,
			Comment:      req.Feedback,
		}
	}

	result, err := h.service.CloseConversation(r.Context(), conversationservice.AgentActor(agent.ID), conversationID, rating)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, toCloseResponse(result))
}

func (h *agentEndpoints) target(r *http.Request) (conversationservice.Agent, string, error) {
	agent, err := currentAgent(r)
	if err != nil {
		return conversationservice.Agent{}, "", err
	}
	conversationID, _, err := conversationAction(r.URL.Path, h.prefix)
	if err != nil {
		return conversationservice.Agent{}, "", err
	}
	return agent, conversationID, nil
}

func currentAgent(r *http.Request) (conversationservice.Agent, error) {
	identity, ok := middleware.AgentFromContext(r.Context())
	if !ok || identity.Agent.AgentID == "" {
		return conversationservice.Agent{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("agent identity missing from context"),
		}
	}
	return conversationservice.Agent{ID: identity.Agent.AgentID, Name: identity.Agent.Name}, nil
}
