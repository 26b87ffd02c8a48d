package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"support-chat-backend/internal/eventbus"
	"support-chat-backend/internal/model"
)

// ClaimConversation moves a waiting conversation to assigned for agent. Of
// any number of concurrent claims exactly one succeeds; the others get a
// conflict carrying ReasonAlreadyAssignedOrClosed.
func (s *Service) ClaimConversation(ctx context.Context, agent Agent, conversationID string) (ClaimResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	if agent.ID == "" {
		return ClaimResult{}, newError(ErrorCodeUnauthenticated, "agent identity required", nil)
	}
	if conversationID == "" {
		return ClaimResult{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	return s.assign(ctx, agent, conversationID)
}

// AssignConversation hands a waiting conversation to a named agent. It races
// claims under the same conditional transition.
func (s *Service) AssignConversation(ctx context.Context, agentID, conversationID string) (ClaimResult, error) {
	agentID = strings.TrimSpace(agentID)
	conversationID = strings.TrimSpace(conversationID)
	if agentID == "" || conversationID == "" {
		return ClaimResult{}, newError(ErrorCodeValidation, "agentId and conversationId are required", nil)
	}

	stored, err := s.repo.GetAgent(ctx, agentID)
	if err != nil {
		return ClaimResult{}, storeError(err, "agent not found", "failed to load agent")
	}
	if !stored.IsActive {
		return ClaimResult{}, newError(ErrorCodeValidation, "agent is deactivated", nil)
	}

	return s.assign(ctx, Agent{ID: stored.AgentID, Name: stored.Name}, conversationID)
}

func (s *Service) assign(ctx context.Context, agent Agent, conversationID string) (ClaimResult, error) {
	nowStr := s.timestamp()

	conversation, err := s.repo.TransitionConversation(ctx, conversationID, Transition{
		From:          []model.ConversationStatus{model.ConversationStatusWaiting},
		To:            model.ConversationStatusAssigned,
		AssignAgentID: agent.ID,
		AssignedAt:    nowStr,
	})
	switch {
	case errors.Is(err, ErrStaleStatus):
		claimOutcomes.WithLabelValues(claimLost).Inc()
		s.logger.Info("claim lost", "conversation_id", conversationID, "agent_id", agent.ID)
		return ClaimResult{}, &Error{
			Code:    ErrorCodeConflict,
			Message: "conversation already assigned or closed",
			Reason:  ReasonAlreadyAssignedOrClosed,
			Err:     err,
		}
	case errors.Is(err, ErrNotFound):
		claimOutcomes.WithLabelValues(claimNotFound).Inc()
		return ClaimResult{}, newError(ErrorCodeNotFound, "conversation not found", err)
	case err != nil:
		claimOutcomes.WithLabelValues(claimError).Inc()
		s.logger.Error("claim conversation", "conversation_id", conversationID, "agent_id", agent.ID, "error", err)
		return ClaimResult{}, newError(ErrorCodeUnavailable, "failed to assign conversation", err)
	}

	claimOutcomes.WithLabelValues(claimWon).Inc()
	transitionsTotal.WithLabelValues(string(model.ConversationStatusAssigned)).Inc()
	s.logger.Info("conversation assigned", "conversation_id", conversationID, "agent_id", agent.ID)

	name := displayName(agent)
	s.publish(ctx, eventbus.QueueTopic, ConversationAcceptedEvent{
		Type:           EventConversationAccepted,
		ConversationID: conversationID,
		AgentID:        agent.ID,
		AgentName:      name,
	})
	s.publish(ctx, eventbus.AgentTopic(agent.ID), AgentAssignedEvent{
		Type:           EventAgentAssigned,
		ConversationID: conversationID,
		AgentName:      name,
	})

	result := ClaimResult{Conversation: conversation}
	joined := newMessage(conversationID, model.SenderSystem, "", fmt.Sprintf("Agent %s has joined the chat.", name), nowStr)
	if err := s.repo.CreateMessage(ctx, joined); err != nil {
		s.logger.Error("persist join message", "conversation_id", conversationID, "error", err)
		return result, nil
	}
	s.publishMessage(ctx, joined)
	result.SystemMessage = &joined
	return result, nil
}

// ActivateConversation marks an assigned conversation as in service. An
// already active conversation is left as is.
func (s *Service) ActivateConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	conversation, err := s.repo.TransitionConversation(ctx, conversationID, Transition{
		From: []model.ConversationStatus{model.ConversationStatusAssigned},
		To:   model.ConversationStatusActive,
	})
	if errors.Is(err, ErrStaleStatus) {
		current, getErr := s.repo.GetConversation(ctx, conversationID)
		if getErr != nil {
			return model.ConversationItem{}, storeError(getErr, "conversation not found", "failed to fetch conversation")
		}
		if current.Status == model.ConversationStatusActive {
			return current, nil
		}
		return model.ConversationItem{}, newError(ErrorCodeConflict, fmt.Sprintf("conversation is %s", current.Status), err)
	}
	if err != nil {
		return model.ConversationItem{}, storeError(err, "conversation not found", "failed to activate conversation")
	}

	transitionsTotal.WithLabelValues(string(model.ConversationStatusActive)).Inc()
	return conversation, nil
}

func (s *Service) PostMessage(ctx context.Context, params PostMessageParams) (model.MessageItem, error) {
	conversationID := strings.TrimSpace(params.ConversationID)
	body := strings.TrimSpace(params.Body)

	if conversationID == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if body == "" {
		return model.MessageItem{}, newError(ErrorCodeValidation, "message body is required", nil)
	}
	if len([]rune(body)) > MaxMessageLength {
		return model.MessageItem{}, newError(ErrorCodeValidation, "message is too long", nil)
	}
	if params.SenderType != model.SenderVisitor && params.SenderType != model.SenderAgent {
		return model.MessageItem{}, newError(ErrorCodeValidation, "sender_type must be visitor or agent", nil)
	}
	if params.SenderID == "" {
		return model.MessageItem{}, newError(ErrorCodeUnauthenticated, "sender identity required", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return model.MessageItem{}, storeError(err, "conversation not found", "failed to fetch conversation")
	}
	if conversation.Status.IsTerminal() {
		return model.MessageItem{}, newError(ErrorCodeConflict, "conversation is closed", nil)
	}

	switch params.SenderType {
	case model.SenderVisitor:
		if conversation.VisitorID != params.SenderID {
			return model.MessageItem{}, newError(ErrorCodeUnauthorized, "visitor does not own this conversation", nil)
		}
	case model.SenderAgent:
		if conversation.AssignedAgentID != params.SenderID {
			return model.MessageItem{}, newError(ErrorCodeUnauthorized, "agent is not assigned to this conversation", nil)
		}
		if conversation.Status == model.ConversationStatusAssigned {
			if _, err := s.ActivateConversation(ctx, conversationID); err != nil {
				return model.MessageItem{}, err
			}
		}
	}

	message := newMessage(conversationID, params.SenderType, params.SenderID, body, s.timestamp())
	if err := s.repo.CreateMessage(ctx, message); err != nil {
		s.logger.Error("persist message", "conversation_id", conversationID, "error", err)
		return model.MessageItem{}, newError(ErrorCodeUnavailable, "failed to store message", err)
	}

	s.publishMessage(ctx, message)
	return message, nil
}

// CloseConversation ends a conversation on behalf of its visitor or its
// assigned agent. Closing an already ended conversation succeeds with
// AlreadyClosed set and changes nothing.
func (s *Service) CloseConversation(ctx context.Context, actor Actor, conversationID string, rating *RatingParams) (CloseResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return CloseResult{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if actor.ID == "" {
		return CloseResult{}, newError(ErrorCodeUnauthenticated, "actor identity required", nil)
	}
	if actor.Type != model.SenderVisitor && actor.Type != model.SenderAgent {
		return CloseResult{}, newError(ErrorCodeValidation, "only visitors and agents may close conversations", nil)
	}

	// An agent close always records a rating; omitted values count as 5.
	var normalized RatingParams
	if actor.Type == model.SenderAgent {
		var params RatingParams
		if rating != nil {
			params = *rating
		}
		var err error
		if normalized, err = normalizeRating(params); err != nil {
			return CloseResult{}, err
		}
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return CloseResult{}, storeError(err, "conversation not found", "failed to fetch conversation")
	}
	if !canClose(conversation, actor) {
		return CloseResult{}, newError(ErrorCodeUnauthorized, "not allowed to close this conversation", nil)
	}
	if conversation.Status.IsTerminal() {
		return CloseResult{Conversation: conversation, AlreadyClosed: true}, nil
	}

	nowStr := s.timestamp()
	updated, err := s.repo.TransitionConversation(ctx, conversationID, Transition{
		From:       model.SourcesOf(model.ConversationStatusClosed),
		To:         model.ConversationStatusClosed,
		ClearAgent: true,
		EndedAt:    nowStr,
	})
	if errors.Is(err, ErrStaleStatus) {
		current, getErr := s.repo.GetConversation(ctx, conversationID)
		if getErr != nil {
			return CloseResult{}, storeError(getErr, "conversation not found", "failed to fetch conversation")
		}
		if current.Status.IsTerminal() {
			return CloseResult{Conversation: current, AlreadyClosed: true}, nil
		}
		return CloseResult{}, newError(ErrorCodeConflict, "conversation changed while closing", err)
	}
	if err != nil {
		s.logger.Error("close conversation", "conversation_id", conversationID, "error", err)
		return CloseResult{}, storeError(err, "conversation not found", "failed to close conversation")
	}

	transitionsTotal.WithLabelValues(string(model.ConversationStatusClosed)).Inc()
	s.logger.Info("conversation closed", "conversation_id", conversationID, "actor", actor.Type)
	s.publish(ctx, eventbus.ConversationTopic(conversationID), ConversationEndedEvent{
		Type:           EventConversationClosed,
		ConversationID: conversationID,
	})

	result := CloseResult{Conversation: updated}
	if actor.Type == model.SenderAgent {
		item := model.RatingItem{
			ConversationID: conversationID,
			AgentRating:    normalized.AgentRating,
			SystemRating:   normalized.SystemRating,
			Comment:        normalized.Comment,
			SubmittedAt:    nowStr,
		}
		if err := s.repo.UpsertRating(ctx, item); err != nil {
			s.logger.Error("persist rating", "conversation_id", conversationID, "error", err)
			return result, newError(ErrorCodeUnavailable, "conversation closed but rating was not stored", err)
		}
		result.Rating = &item
	}
	return result, nil
}

// AbandonConversation records that the visitor left. A conversation nobody
// served yet becomes abandoned; one already in service is closed.
func (s *Service) AbandonConversation(ctx context.Context, visitorID, conversationID string) (CloseResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return CloseResult{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if visitorID == "" {
		return CloseResult{}, newError(ErrorCodeUnauthenticated, "visitor identity required", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return CloseResult{}, storeError(err, "conversation not found", "failed to fetch conversation")
	}
	if conversation.VisitorID != visitorID {
		return CloseResult{}, newError(ErrorCodeUnauthorized, "visitor does not own this conversation", nil)
	}
	if conversation.Status.IsTerminal() {
		return CloseResult{Conversation: conversation, AlreadyClosed: true}, nil
	}
	if conversation.Status == model.ConversationStatusActive {
		return s.CloseConversation(ctx, VisitorActor(visitorID), conversationID, nil)
	}

	updated, err := s.repo.TransitionConversation(ctx, conversationID, Transition{
		From:       model.SourcesOf(model.ConversationStatusAbandoned),
		To:         model.ConversationStatusAbandoned,
		ClearAgent: true,
		EndedAt:    s.timestamp(),
	})
	if errors.Is(err, ErrStaleStatus) {
		current, getErr := s.repo.GetConversation(ctx, conversationID)
		if getErr != nil {
			return CloseResult{}, storeError(getErr, "conversation not found", "failed to fetch conversation")
		}
		if current.Status.IsTerminal() {
			return CloseResult{Conversation: current, AlreadyClosed: true}, nil
		}
		// An agent started serving in between.
		return s.CloseConversation(ctx, VisitorActor(visitorID), conversationID, nil)
	}
	if err != nil {
		s.logger.Error("abandon conversation", "conversation_id", conversationID, "error", err)
		return CloseResult{}, storeError(err, "conversation not found", "failed to abandon conversation")
	}

	transitionsTotal.WithLabelValues(string(model.ConversationStatusAbandoned)).Inc()
	s.logger.Info("conversation abandoned", "conversation_id", conversationID, "previous_status", conversation.Status)

	event := ConversationEndedEvent{Type: EventConversationAbandoned, ConversationID: conversationID}
	s.publish(ctx, eventbus.ConversationTopic(conversationID), event)
	s.publish(ctx, eventbus.QueueTopic, event)
	if conversation.AssignedAgentID != "" {
		s.publish(ctx, eventbus.AgentTopic(conversation.AssignedAgentID), event)
	}

	return CloseResult{Conversation: updated}, nil
}

// SubmitFeedback stores the visitor's rating. Omitted ratings count as 5.
func (s *Service) SubmitFeedback(ctx context.Context, visitorID, conversationID string, params RatingParams) (model.RatingItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return model.RatingItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if visitorID == "" {
		return model.RatingItem{}, newError(ErrorCodeUnauthenticated, "visitor identity required", nil)
	}
	normalized, err := normalizeRating(params)
	if err != nil {
		return model.RatingItem{}, err
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return model.RatingItem{}, storeError(err, "conversation not found", "failed to fetch conversation")
	}
	if conversation.VisitorID != visitorID {
		return model.RatingItem{}, newError(ErrorCodeUnauthorized, "visitor does not own this conversation", nil)
	}

	item := model.RatingItem{
		ConversationID: conversationID,
		AgentRating:    normalized.AgentRating,
		SystemRating:   normalized.SystemRating,
		Comment:        normalized.Comment,
		SubmittedAt:    s.timestamp(),
	}
	if err := s.repo.UpsertRating(ctx, item); err != nil {
		return model.RatingItem{}, newError(ErrorCodeUnavailable, "failed to store feedback", err)
	}
	return item, nil
}

// AuthorizeRead returns the conversation when actor may read it or watch its
// topic: the owning visitor, any agent while it waits, or its agent.
func (s *Service) AuthorizeRead(ctx context.Context, actor Actor, conversationID string) (model.ConversationItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if actor.ID == "" {
		return model.ConversationItem{}, newError(ErrorCodeUnauthenticated, "actor identity required", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return model.ConversationItem{}, storeError(err, "conversation not found", "failed to fetch conversation")
	}
	if !canRead(conversation, actor) {
		return model.ConversationItem{}, newError(ErrorCodeUnauthorized, "not allowed to read this conversation", nil)
	}
	return conversation, nil
}

func (s *Service) ListMessages(ctx context.Context, actor Actor, conversationID string, limit int) (ListMessagesResult, error) {
	if limit <= 0 || limit > maxMessagesLimit {
		limit = defaultMessagesLimit
	}

	conversation, err := s.AuthorizeRead(ctx, actor, conversationID)
	if err != nil {
		return ListMessagesResult{}, err
	}

	messages, err := s.repo.ListMessages(ctx, conversation.ConversationID, limit)
	if err != nil {
		return ListMessagesResult{}, newError(ErrorCodeUnavailable, "failed to list messages", err)
	}
	if messages == nil {
		messages = []model.MessageItem{}
	}

	return ListMessagesResult{
		Conversation: conversation,
		Messages:     messages,
	}, nil
}

func canClose(c model.ConversationItem, actor Actor) bool {
	switch actor.Type {
	case model.SenderVisitor:
		return c.VisitorID == actor.ID
	case model.SenderAgent:
		if c.Status.IsTerminal() {
			return c.HandledByAgentID == actor.ID
		}
		return c.AssignedAgentID == actor.ID
	}
	return false
}

func canRead(c model.ConversationItem, actor Actor) bool {
	switch actor.Type {
	case model.SenderVisitor:
		return c.VisitorID == actor.ID
	case model.SenderAgent:
		return c.Status == model.ConversationStatusWaiting ||
			c.AssignedAgentID == actor.ID ||
			c.HandledByAgentID == actor.ID
	}
	return false
}

func normalizeRating(params RatingParams) (RatingParams, error) {
	if params.AgentRating == 0 {
		params.AgentRating = 5
	}
	if params.SystemRating == 0 {
		params.SystemRating = 5
	}
	if params.AgentRating < 1 || params.AgentRating > 5 || params.SystemRating < 1 || params.SystemRating > 5 {
		return RatingParams{}, newError(ErrorCodeValidation, "ratings must be between 1 and 5", nil)
	}
	params.Comment = strings.TrimSpace(params.Comment)
	return params, nil
}

func displayName(agent Agent) string {
	if name := strings.TrimSpace(agent.Name); name != "" {
		return name
	}
	return "Support"
}
