package conversation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"support-chat-backend/internal/eventbus"
	"support-chat-backend/internal/model"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation      ErrorCode = "validation_error"
	ErrorCodeUnauthenticated ErrorCode = "unauthenticated"
	ErrorCodeUnauthorized    ErrorCode = "unauthorized"
	ErrorCodeNotFound        ErrorCode = "not_found"
	ErrorCodeConflict        ErrorCode = "conflict"
	ErrorCodeUnavailable     ErrorCode = "unavailable"
	ErrorCodeInternal        ErrorCode = "internal_error"
)

// ReasonAlreadyAssignedOrClosed is reported when a claim loses to another
// agent or the conversation left the queue some other way.
const ReasonAlreadyAssignedOrClosed = "already_assigned_or_closed"

const (
	MaxMessageLength     = 4000
	defaultMessagesLimit = 100
	maxMessagesLimit     = 200
	dashboardClosedLimit = 50
)

type Error struct {
	Code    ErrorCode
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// storeError converts a repository failure into a service error.
func storeError(err error, notFound, failed string) *Error {
	if errors.Is(err, ErrNotFound) {
		return newError(ErrorCodeNotFound, notFound, err)
	}
	return newError(ErrorCodeUnavailable, failed, err)
}

// Agent is an authenticated agent as handed over by the auth layer.
type Agent struct {
	ID   string
	Name string
}

// Actor is whoever drives an operation on a conversation.
type Actor struct {
	Type model.SenderType
	ID   string
}

func VisitorActor(visitorID string) Actor {
	return Actor{Type: model.SenderVisitor, ID: visitorID}
}

func AgentActor(agentID string) Actor {
	return Actor{Type: model.SenderAgent, ID: agentID}
}

type VisitorParams struct {
	Name      string
	Email     string
	Mobile    string
	IPAddress string
	UserAgent string
}

type CreateConversationParams struct {
	Visitor VisitorParams
	Message string
}

type ConversationResult struct {
	Conversation model.ConversationItem
	Visitor      model.VisitorItem
	VisitorToken string
	Message      *model.MessageItem
}

type ClaimResult struct {
	Conversation  model.ConversationItem
	SystemMessage *model.MessageItem
}

type PostMessageParams struct {
	ConversationID string
	SenderType     model.SenderType
	SenderID       string
	Body           string
}

type RatingParams struct {
	AgentRating  int
	SystemRating int
	Comment      string
}

type CloseResult struct {
	Conversation  model.ConversationItem
	AlreadyClosed bool
	Rating        *model.RatingItem
}

type ListMessagesResult struct {
	Conversation model.ConversationItem
	Messages     []model.MessageItem
}

type DashboardResult struct {
	Waiting []model.ConversationItem
	Active  []model.ConversationItem
	Closed  []model.ConversationItem
}

type VisitorAccess struct {
	ConversationID string
	VisitorID      string
}

type Options struct {
	VisitorTokenSecret []byte
	VisitorTokenTTL    time.Duration
	Logger             *slog.Logger
	Now                func() time.Time
}

type Service struct {
	repo     Repository
	bus      eventbus.Publisher
	logger   *slog.Logger
	now      func() time.Time
	secret   []byte
	tokenTTL time.Duration
}

func New(repo Repository, bus eventbus.Publisher, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.VisitorTokenTTL <= 0 {
		opts.VisitorTokenTTL = defaultVisitorTokenTTL
	}
	if bus == nil {
		bus = discardPublisher{}
	}
	secret := make([]byte, len(opts.VisitorTokenSecret))
	copy(secret, opts.VisitorTokenSecret)

	return &Service{
		repo:     repo,
		bus:      bus,
		logger:   opts.Logger.With("component", "conversation"),
		now:      opts.Now,
		secret:   secret,
		tokenTTL: opts.VisitorTokenTTL,
	}
}

func (s *Service) timestamp() string {
	return model.FormatTime(s.now())
}

func (s *Service) CreateConversation(ctx context.Context, params CreateConversationParams) (ConversationResult, error) {
	name := strings.TrimSpace(params.Visitor.Name)
	email := normalizeEmail(params.Visitor.Email)
	body := strings.TrimSpace(params.Message)

	if name == "" {
		return ConversationResult{}, newError(ErrorCodeValidation, "name is required", nil)
	}
	if !isValidEmail(email) {
		return ConversationResult{}, newError(ErrorCodeValidation, "a valid email is required", nil)
	}
	if len([]rune(body)) > MaxMessageLength {
		return ConversationResult{}, newError(ErrorCodeValidation, "message is too long", nil)
	}

	now := s.now().UTC()
	nowStr := model.FormatTime(now)

	visitor := model.VisitorItem{
		VisitorID: uuid.NewString(),
		Name:      name,
		Email:     email,
		Mobile:    strings.TrimSpace(params.Visitor.Mobile),
		IPAddress: strings.TrimSpace(params.Visitor.IPAddress),
		UserAgent: strings.TrimSpace(params.Visitor.UserAgent),
		CreatedAt: nowStr,
	}
	if err := s.repo.CreateVisitor(ctx, visitor); err != nil {
		s.logger.Error("persist visitor", "error", err)
		return ConversationResult{}, newError(ErrorCodeUnavailable, "failed to persist visitor", err)
	}

	conversation := model.ConversationItem{
		ConversationID: uuid.NewString(),
		VisitorID:      visitor.VisitorID,
		VisitorName:    visitor.Name,
		VisitorEmail:   visitor.Email,
		Status:         model.ConversationStatusWaiting,
		StartedAt:      nowStr,
	}
	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		s.logger.Error("persist conversation", "error", err)
		return ConversationResult{}, newError(ErrorCodeUnavailable, "failed to create conversation", err)
	}

	result := ConversationResult{
		Conversation: conversation,
		Visitor:      visitor,
	}

	if body != "" {
		message := newMessage(conversation.ConversationID, model.SenderVisitor, visitor.VisitorID, body, nowStr)
		if err := s.repo.CreateMessage(ctx, message); err != nil {
			s.logger.Error("persist first message", "conversation_id", conversation.ConversationID, "error", err)
			return ConversationResult{}, newError(ErrorCodeUnavailable, "failed to store message", err)
		}
		result.Message = &message
	}

	token, err := s.signVisitorToken(visitorTokenClaims{
		ConversationID: conversation.ConversationID,
		VisitorID:      visitor.VisitorID,
		IssuedAt:       now.Unix(),
		ExpiresAt:      now.Add(s.tokenTTL).Unix(),
	})
	if err != nil {
		return ConversationResult{}, newError(ErrorCodeInternal, "failed to issue visitor token", err)
	}
	result.VisitorToken = token

	s.publish(ctx, eventbus.QueueTopic, NewConversationEvent{
		Type:           EventNewConversation,
		ConversationID: conversation.ConversationID,
		VisitorName:    visitor.Name,
		VisitorEmail:   visitor.Email,
	})

	s.logger.Info("conversation created", "conversation_id", conversation.ConversationID, "visitor_id", visitor.VisitorID)
	return result, nil
}

func (s *Service) GetConversation(ctx context.Context, conversationID string) (model.ConversationItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return model.ConversationItem{}, storeError(err, "conversation not found", "failed to fetch conversation")
	}
	return conversation, nil
}

// ListConversations lists conversations in one status, oldest first.
func (s *Service) ListConversations(ctx context.Context, status model.ConversationStatus, limit int) ([]model.ConversationItem, error) {
	if !status.Valid() {
		return nil, newError(ErrorCodeValidation, "unknown conversation status", nil)
	}
	conversations, err := s.repo.ListConversationsByStatus(ctx, status, limit)
	if err != nil {
		return nil, newError(ErrorCodeUnavailable, "failed to list conversations", err)
	}
	return conversations, nil
}

func (s *Service) AgentDashboard(ctx context.Context, agent Agent) (DashboardResult, error) {
	if agent.ID == "" {
		return DashboardResult{}, newError(ErrorCodeUnauthenticated, "agent identity required", nil)
	}

	waiting, err := s.repo.ListConversationsByStatus(ctx, model.ConversationStatusWaiting, 0)
	if err != nil {
		return DashboardResult{}, newError(ErrorCodeUnavailable, "failed to list waiting conversations", err)
	}
	handled, err := s.repo.ListConversationsByAgent(ctx, agent.ID, 0)
	if err != nil {
		return DashboardResult{}, newError(ErrorCodeUnavailable, "failed to list agent conversations", err)
	}

	result := DashboardResult{
		Waiting: waiting,
		Active:  []model.ConversationItem{},
		Closed:  []model.ConversationItem{},
	}
	for _, c := range handled {
		switch {
		case c.Status.HasAgent() && c.AssignedAgentID == agent.ID:
			result.Active = append(result.Active, c)
		case c.Status.IsTerminal() && len(result.Closed) < dashboardClosedLimit:
			result.Closed = append(result.Closed, c)
		}
	}
	if result.Waiting == nil {
		result.Waiting = []model.ConversationItem{}
	}
	return result, nil
}

func (s *Service) ValidateVisitorAccess(token string) (VisitorAccess, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return VisitorAccess{}, newError(ErrorCodeUnauthenticated, "visitor token required", nil)
	}

	claims, err := s.verifyVisitorToken(token)
	if err != nil {
		return VisitorAccess{}, newError(ErrorCodeUnauthenticated, "invalid visitor token", err)
	}

	return VisitorAccess{
		ConversationID: claims.ConversationID,
		VisitorID:      claims.VisitorID,
	}, nil
}

// newMessage ids are UUIDv7, which increase monotonically within a process,
// so messages written in the same instant keep their write order under the
// sort key.
func newMessage(conversationID string, senderType model.SenderType, senderID, body, createdAt string) model.MessageItem {
	messageID := uuid.Must(uuid.NewV7()).String()
	return model.MessageItem{
		ConversationID: conversationID,
		SortKey:        model.MessageSortKey(createdAt, messageID),
		MessageID:      messageID,
		SenderType:     senderType,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      createdAt,
	}
}

func normalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	return strings.ToLower(email)
}

func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	local, domain := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if local == "" || domain == "" {
		return false
	}
	if !strings.Contains(domain, ".") {
		return false
	}
	return true
}
