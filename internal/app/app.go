// Package app wires the shared dependencies of the support-chat binaries
// from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/config"
	"support-chat-backend/internal/database"
	"support-chat-backend/internal/env"
	"support-chat-backend/internal/eventbus"
	internaljwt "support-chat-backend/internal/jwt"
	"support-chat-backend/internal/logger"
	"support-chat-backend/internal/mail"
	"support-chat-backend/internal/queue"
	authsvc "support-chat-backend/internal/service/auth"
	"support-chat-backend/internal/service/conversation"
)

const redisPingTimeout = 5 * time.Second

// Bus is an event bus with a liveness check. RedisBus and the in-process
// Hub both satisfy it.
type Bus interface {
	eventbus.Bus
	Ping(ctx context.Context) error
}

type App struct {
	Config        config.Config
	Logger        *slog.Logger
	DB            *database.Database
	Bus           Bus
	Conversations *conversation.Service
	Auth          *authsvc.Service

	closers []func() error
}

// NewBus builds the bus named by cfg.Bus.Driver. The returned func releases
// it: it closes the Redis client or stops the hub.
func NewBus(ctx context.Context, cfg config.Config, log *slog.Logger) (Bus, func() error, error) {
	if cfg.Bus.Driver == config.BusMemory {
		hub := eventbus.NewHub(log)
		runCtx, cancel := context.WithCancel(context.Background())
		go hub.Run(runCtx)
		return hub, func() error { cancel(); return nil }, nil
	}

	client := eventbus.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	bus := eventbus.NewRedisBus(client, log)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := bus.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("connect event bus: %w", err)
	}
	return bus, client.Close, nil
}

// LoadConfig reads the file named by SUPPORT_CONFIG, or config.toml, and
// validates it.
func LoadConfig() (config.Config, error) {
	cfg, err := config.Load(env.GetOrDefault(env.ConfigPath, config.DefaultConfigPath))
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// New opens the store and the event bus and builds the services. With the
// memory bus, agent sessions also stay in process and Redis is never
// dialled. The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg config.Config, name string) (*App, error) {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.L.With("service", name)

	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	a := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	bus, closeBus, err := NewBus(ctx, cfg, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Bus = bus
	a.closers = append(a.closers, closeBus)

	var sessions internaljwt.SessionStore
	if cfg.Bus.Driver == config.BusMemory {
		sessions = internaljwt.NewMemorySessionStore(time.Now)
	} else {
		sessionClient := eventbus.NewRedisClient(cfg.Redis.SessionAddr, cfg.Redis.SessionPassword, cfg.Redis.DB)
		a.closers = append(a.closers, sessionClient.Close)
		sessions = internaljwt.NewRedisSessionStore(sessionClient)
	}

	mailer, err := mail.New(cfg.Mail, log)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Conversations = conversation.New(conversation.NewRepository(db), a.Bus, conversation.Options{
		VisitorTokenSecret: []byte(cfg.Auth.VisitorTokenSecret),
		VisitorTokenTTL:    cfg.Auth.VisitorTokenTTL.Duration,
		Logger:             log,
	})
	a.Auth = authsvc.New(authsvc.NewRepository(db), sessions, mailer, authsvc.Options{
		SessionSecret:  cfg.Auth.SessionSecret,
		SessionTTL:     cfg.Auth.SessionTTL.Duration,
		OTPTTL:         cfg.Auth.OTPTTL.Duration,
		OTPMaxAttempts: cfg.Auth.OTPMaxAttempts,
		Logger:         log,
	})

	log.Info("dependencies ready", "store", db.Driver, "bus", cfg.Bus.Driver)
	return a, nil
}

func (a *App) Queue() *queue.RequestQueueManager {
	return queue.NewRequestQueueManager(a.Config.Queue.Size, a.Config.Queue.Workers, a.Logger)
}

func (a *App) Services() api.Services {
	return api.Services{
		Conversations: a.Conversations,
		Auth:          a.Auth,
		Widget:        a.Config.Widget,
		HealthChecks: map[string]api.HealthCheck{
			"store":     a.DB.Ping,
			"event_bus": a.Bus.Ping,
		},
	}
}

func (a *App) APIOptions() api.Options {
	return api.Options{
		AllowedOrigins: a.Config.CORS.AllowedOrigins,
		Logger:         a.Logger,
	}
}

func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		errs = append(errs, closeFn())
	}
	errs = append(errs, a.DB.Close())
	return errors.Join(errs...)
}
