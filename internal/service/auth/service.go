package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	internaljwt "support-chat-backend/internal/jwt"
	"support-chat-backend/internal/mail"
	"support-chat-backend/internal/model"
	"support-chat-backend/utils"

	"github.com/google/uuid"
)

const (
	defaultSessionTTL     = 24 * time.Hour
	defaultOTPTTL         = 10 * time.Minute
	defaultOTPMaxAttempts = 3
	// maxSessionLifetime bounds the signed token; the store TTL slides within it.
	maxSessionLifetime = 30 * 24 * time.Hour
)

type Options struct {
	SessionSecret  string
	SessionTTL     time.Duration
	OTPTTL         time.Duration
	OTPMaxAttempts int
	Logger         *slog.Logger
	Now            func() time.Time
}

type Service struct {
	repo        Repository
	sessions    internaljwt.SessionStore
	mailer      mail.Mailer
	logger      *slog.Logger
	now         func() time.Time
	secret      string
	sessionTTL  time.Duration
	otpTTL      time.Duration
	maxAttempts int
}

func New(repo Repository, sessions internaljwt.SessionStore, mailer mail.Mailer, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = defaultSessionTTL
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = defaultOTPTTL
	}
	if opts.OTPMaxAttempts <= 0 {
		opts.OTPMaxAttempts = defaultOTPMaxAttempts
	}

	return &Service{
		repo:        repo,
		sessions:    sessions,
		mailer:      mailer,
		logger:      opts.Logger.With("component", "auth"),
		now:         opts.Now,
		secret:      opts.SessionSecret,
		sessionTTL:  opts.SessionTTL,
		otpTTL:      opts.OTPTTL,
		maxAttempts: opts.OTPMaxAttempts,
	}
}

// RequestOTP mails a fresh login code to email. The stored code is discarded
// again when delivery fails.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if !isValidEmail(email) {
		return newError(ErrorCodeValidation, "a valid email is required", nil)
	}

	code, err := internaljwt.NewOTPCode()
	if err != nil {
		return newError(ErrorCodeInternal, "failed to generate code", err)
	}
	hash, err := internaljwt.HashOTPCode(code)
	if err != nil {
		return newError(ErrorCodeInternal, "failed to hash code", err)
	}

	otp := model.AgentOTPItem{
		OTPID:     uuid.NewString(),
		Email:     email,
		CodeHash:  hash,
		CreatedAt: model.FormatTime(s.now()),
	}
	if err := s.repo.CreateOTP(ctx, otp); err != nil {
		s.logger.Error("persist otp", "error", err)
		return newError(ErrorCodeUnavailable, "failed to store code", err)
	}

	if err := s.mailer.Send(ctx, mail.OTPMessage(email, code, s.otpTTL)); err != nil {
		s.logger.Error("send otp", "email", email, "error", err)
		if delErr := s.repo.DeleteOTP(ctx, otp.OTPID); delErr != nil {
			s.logger.Warn("discard unsent otp", "otp_id", otp.OTPID, "error", delErr)
		}
		return newError(ErrorCodeUnavailable, "failed to send code", err)
	}

	s.logger.Info("otp requested", "email", email)
	return nil
}

// VerifyOTP checks code against the latest code issued for email and, on
// success, signs the agent in, creating the agent on first login.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (LoginResult, error) {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if !isValidEmail(email) || code == "" {
		return LoginResult{}, newError(ErrorCodeValidation, "email and code are required", nil)
	}

	otp, err := s.repo.LatestOTP(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return LoginResult{}, newError(ErrorCodeUnauthenticated, "invalid or expired code", err)
		}
		return LoginResult{}, newError(ErrorCodeUnavailable, "failed to load code", err)
	}

	if otp.IsVerified {
		return LoginResult{}, newError(ErrorCodeUnauthenticated, "code already used", nil)
	}
	if s.now().After(model.ParseTime(otp.CreatedAt).Add(s.otpTTL)) {
		return LoginResult{}, newError(ErrorCodeUnauthenticated, "code expired", nil)
	}
	if otp.Attempts >= s.maxAttempts {
		return LoginResult{}, newError(ErrorCodeUnauthenticated, "too many attempts, request a new code", nil)
	}

	if !internaljwt.ValidateOTPCode(otp.CodeHash, code) {
		otp.Attempts++
		if err := s.repo.UpdateOTP(ctx, otp); err != nil {
			return LoginResult{}, newError(ErrorCodeUnavailable, "failed to record attempt", err)
		}
		return LoginResult{}, newError(ErrorCodeUnauthenticated, "invalid code", nil)
	}

	otp.IsVerified = true
	if err := s.repo.UpdateOTP(ctx, otp); err != nil {
		return LoginResult{}, newError(ErrorCodeUnavailable, "failed to consume code", err)
	}

	agent, err := s.getOrCreateAgent(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if !agent.IsActive {
		return LoginResult{}, newError(ErrorCodeUnauthorized, "agent is deactivated", nil)
	}

	if err := s.repo.SetAgentOnline(ctx, agent.AgentID, true); err != nil {
		s.logger.Warn("mark agent online", "agent_id", agent.AgentID, "error", err)
	}
	agent.IsOnline = true

	return s.issueSession(ctx, agent)
}

func (s *Service) getOrCreateAgent(ctx context.Context, email string) (model.AgentItem, error) {
	agent, err := s.repo.GetAgentByEmail(ctx, email)
	if err == nil {
		return agent, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return model.AgentItem{}, newError(ErrorCodeUnavailable, "failed to load agent", err)
	}

	agent = newAgent(email, "", 0, model.FormatTime(s.now()))
	if err := s.repo.CreateAgent(ctx, agent); err != nil {
		// A concurrent first login may have created the row.
		if existing, getErr := s.repo.GetAgentByEmail(ctx, email); getErr == nil {
			return existing, nil
		}
		return model.AgentItem{}, newError(ErrorCodeUnavailable, "failed to create agent", err)
	}
	s.logger.Info("agent created on first login", "agent_id", agent.AgentID)
	return agent, nil
}

func (s *Service) issueSession(ctx context.Context, agent model.AgentItem) (LoginResult, error) {
	now := s.now()
	session := internaljwt.Session{
		ID:        utils.CreateToken(),
		AgentID:   agent.AgentID,
		Email:     agent.Email,
		CreatedAt: now.Unix(),
	}
	if session.ID == "" {
		return LoginResult{}, newError(ErrorCodeInternal, "failed to create session id", nil)
	}

	expiresAt := now.Add(maxSessionLifetime)
	token, err := internaljwt.CreateToken(s.secret, internaljwt.RoleAgent, internaljwt.Claims{
		AgentID:   agent.AgentID,
		Email:     agent.Email,
		SessionID: session.ID,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return LoginResult{}, newError(ErrorCodeInternal, "failed to issue token", err)
	}

	if err := s.sessions.Save(ctx, session, s.sessionTTL); err != nil {
		return LoginResult{}, newError(ErrorCodeUnavailable, "failed to store session", err)
	}

	return LoginResult{
		Agent:     agent,
		Token:     token,
		ExpiresAt: now.Add(s.sessionTTL),
	}, nil
}

// Authenticate resolves a session token to its agent and extends the session.
func (s *Service) Authenticate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, newError(ErrorCodeUnauthenticated, "session token required", nil)
	}

	claims, err := internaljwt.ParseToken(token, s.secret, internaljwt.RoleAgent)
	if err != nil {
		return Identity{}, newError(ErrorCodeUnauthenticated, "invalid session token", err)
	}

	session, err := s.sessions.Touch(ctx, claims.SessionID, s.sessionTTL)
	if err != nil {
		if errors.Is(err, internaljwt.ErrSessionNotFound) {
			return Identity{}, newError(ErrorCodeUnauthenticated, "session expired", err)
		}
		return Identity{}, newError(ErrorCodeUnavailable, "failed to load session", err)
	}
	if session.AgentID != claims.AgentID {
		return Identity{}, newError(ErrorCodeUnauthenticated, "session does not match token", nil)
	}

	agent, err := s.repo.GetAgent(ctx, claims.AgentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, newError(ErrorCodeUnauthenticated, "agent not found", err)
		}
		return Identity{}, newError(ErrorCodeUnavailable, "failed to load agent", err)
	}
	if !agent.IsActive {
		return Identity{}, newError(ErrorCodeUnauthorized, "agent is deactivated", nil)
	}

	return Identity{Agent: agent, SessionID: session.ID}, nil
}

// Logout ends the session behind token and marks the agent offline. An
// already expired session is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	claims, err := internaljwt.ParseToken(strings.TrimSpace(token), s.secret, internaljwt.RoleAgent)
	if err != nil {
		return newError(ErrorCodeUnauthenticated, "invalid session token", err)
	}

	if err := s.sessions.Delete(ctx, claims.SessionID); err != nil {
		return newError(ErrorCodeUnavailable, "failed to end session", err)
	}
	if err := s.repo.SetAgentOnline(ctx, claims.AgentID, false); err != nil && !errors.Is(err, ErrNotFound) {
		s.logger.Warn("mark agent offline", "agent_id", claims.AgentID, "error", err)
	}
	return nil
}

func (s *Service) ListAgents(ctx context.Context) ([]model.AgentItem, error) {
	agents, err := s.repo.ListAgents(ctx)
	if err != nil {
		return nil, newError(ErrorCodeUnavailable, "failed to list agents", err)
	}
	return agents, nil
}

func (s *Service) CreateAgent(ctx context.Context, params CreateAgentParams) (model.AgentItem, error) {
	email := normalizeEmail(params.Email)
	if !isValidEmail(email) {
		return model.AgentItem{}, newError(ErrorCodeValidation, "a valid email is required", nil)
	}
	if params.MaxConcurrentChats < 0 {
		return model.AgentItem{}, newError(ErrorCodeValidation, "max concurrent chats must not be negative", nil)
	}

	if _, err := s.repo.GetAgentByEmail(ctx, email); err == nil {
		return model.AgentItem{}, newError(ErrorCodeConflict, "an agent with this email already exists", nil)
	} else if !errors.Is(err, ErrNotFound) {
		return model.AgentItem{}, newError(ErrorCodeUnavailable, "failed to load agent", err)
	}

	agent := newAgent(email, params.Name, params.MaxConcurrentChats, model.FormatTime(s.now()))
	if err := s.repo.CreateAgent(ctx, agent); err != nil {
		return model.AgentItem{}, newError(ErrorCodeUnavailable, "failed to create agent", err)
	}
	return agent, nil
}

func (s *Service) SetAgentActive(ctx context.Context, agentID string, active bool) error {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return newError(ErrorCodeValidation, "agentId is required", nil)
	}
	if err := s.repo.SetAgentActive(ctx, agentID, active); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(ErrorCodeNotFound, "agent not found", err)
		}
		return newError(ErrorCodeUnavailable, "failed to update agent", err)
	}
	s.logger.Info("agent activation changed", "agent_id", agentID, "active", active)
	return nil
}

func newAgent(email, name string, maxChats int, createdAt string) model.AgentItem {
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if maxChats == 0 {
		maxChats = model.DefaultMaxConcurrentChats
	}
	return model.AgentItem{
		AgentID:            uuid.NewString(),
		Name:               name,
		Email:              email,
		IsActive:           true,
		MaxConcurrentChats: maxChats,
		CreatedAt:          createdAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isValidEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return false
	}
	return strings.Contains(domain, ".") && !strings.Contains(domain, "@")
}
