package endpoints

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/middleware"
	"support-chat-backend/internal/config"
	"support-chat-backend/internal/database"
	"support-chat-backend/internal/eventbus"
	internaljwt "support-chat-backend/internal/jwt"
	"support-chat-backend/internal/logger"
	"support-chat-backend/internal/mail"
	"support-chat-backend/internal/queue"
	authsvc "support-chat-backend/internal/service/auth"
	conversationservice "support-chat-backend/internal/service/conversation"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	publicPrefix = "/api/public/v1"
	agentPrefix  = "/api/agent/v1"
)

var codePattern = regexp.MustCompile(`\d{6}`)

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (r *recordingMailer) Send(ctx context.Context, msg mail.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingMailer) lastCode(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		t.Fatal("no mail sent")
	}
	return codePattern.FindString(r.sent[len(r.sent)-1].Body)
}

type testEnv struct {
	handler       http.Handler
	conversations *conversationservice.Service
	auth          *authsvc.Service
	mailer        *recordingMailer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQL(config.StoreSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := eventbus.NewHub(logger.Discard())
	go bus.Run(ctx)

	conversations := conversationservice.New(conversationservice.NewSQLRepository(db), bus, conversationservice.Options{
		VisitorTokenSecret: []byte("visitor-secret"),
		Logger:             logger.Discard(),
	})
	mailer := &recordingMailer{}
	auth := authsvc.New(authsvc.NewSQLRepository(db), internaljwt.NewMemorySessionStore(time.Now), mailer, authsvc.Options{
		SessionSecret: "session-secret",
		Logger:        logger.Discard(),
	})

	queueManager := queue.NewRequestQueueManager(16, 2, logger.Discard())
	services := api.Services{
		Conversations: conversations,
		Auth:          auth,
		Widget: config.WidgetConfig{
			BubbleText:   "Chat with us",
			HeaderText:   "Need a hand?",
			ThemeColor:   "#7F56D9",
			WebsocketURL: "wss://chat.example.com/api/ws/v1",
		},
		HealthChecks: map[string]api.HealthCheck{
			"store": (&database.Database{Driver: config.StoreSQLite, SQL: db}).Ping,
		},
	}
	opts := api.Options{Logger: logger.Discard(), Registry: prometheus.NewRegistry()}

	routes := func(mux *http.ServeMux, s *api.APIServer) {
		requireAgent := middleware.RequireAgent(s.Auth())

		visitor := NewConversationEndpoints(s.Conversations(), publicPrefix)
		mux.HandleFunc(publicPrefix+"/conversations", s.MakeHTTPHandleFunc(visitor.Conversations))
		mux.HandleFunc(publicPrefix+"/conversations/", s.MakeHTTPHandleFunc(visitor.Conversation))

		widget := NewWidgetEndpoints(s.Widget())
		mux.HandleFunc(publicPrefix+"/widget", s.MakeHTTPHandleFunc(widget.Settings))

		authEndpoints := NewAuthEndpoints(s.Auth())
		mux.HandleFunc(agentPrefix+"/auth/request-otp", s.MakeHTTPHandleFunc(authEndpoints.RequestOTP))
		mux.HandleFunc(agentPrefix+"/auth/verify-otp", s.MakeHTTPHandleFunc(authEndpoints.VerifyOTP))
		mux.HandleFunc(agentPrefix+"/auth/logout", s.MakeHTTPHandleFunc(authEndpoints.Logout, requireAgent))
		mux.HandleFunc(agentPrefix+"/auth/me", s.MakeHTTPHandleFunc(authEndpoints.Me, requireAgent))

		agent := NewAgentEndpoints(s.Conversations(), agentPrefix)
		mux.HandleFunc(agentPrefix+"/conversations", s.MakeHTTPHandleFunc(agent.Dashboard, requireAgent))
		mux.HandleFunc(agentPrefix+"/conversations/", s.MakeHTTPHandleFunc(agent.Conversation, requireAgent))

		utilsEndpoints := NewUtilsEndpoints(s.HealthChecks())
		mux.HandleFunc(publicPrefix+"/health", s.MakeHTTPHandleFunc(utilsEndpoints.Health))
	}

	server := api.NewAPIServer(":0", queueManager, services, opts, routes)

	t.Cleanup(func() {
		queueManager.Shutdown()
		cancel()
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return &testEnv{
		handler:       server.Handler(),
		conversations: conversations,
		auth:          auth,
		mailer:        mailer,
	}
}

// do sends a JSON request and decodes the JSON response into out when out
// is not nil.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers map[string]string, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if out != nil {
		if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s response (status %d): %v", method, path, rec.Code, err)
		}
	}
	return rec
}

func (e *testEnv) createConversation(t *testing.T, message string) conversationservice.ConversationResult {
	t.Helper()
	result, err := e.conversations.CreateConversation(context.Background(), conversationservice.CreateConversationParams{
		Visitor: conversationservice.VisitorParams{Name: "Visitor", Email: "visitor@example.com"},
		Message: message,
	})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	return result
}

// loginAgent runs the OTP flow through the service and returns the session
// token for email.
func (e *testEnv) loginAgent(t *testing.T, email string) authsvc.LoginResult {
	t.Helper()
	ctx := context.Background()
	if err := e.auth.RequestOTP(ctx, email); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	result, err := e.auth.VerifyOTP(ctx, email, e.mailer.lastCode(t))
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	return result
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func visitorHeader(token string) map[string]string {
	return map[string]string{"X-Visitor-Token": token}
}
