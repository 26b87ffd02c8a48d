package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"support-chat-backend/internal/api/middleware"
	"support-chat-backend/internal/config"
	"support-chat-backend/internal/queue"
	authsvc "support-chat-backend/internal/service/auth"
	"support-chat-backend/internal/service/conversation"
	"support-chat-backend/internal/websocket"

	"github.com/prometheus/client_golang/prometheus"
)

const shutdownTimeout = 10 * time.Second

type RouteRegistrar func(mux *http.ServeMux, s *APIServer)

// HealthCheck reports whether one dependency of the server is reachable.
type HealthCheck func(ctx context.Context) error

// Services are the collaborators route registrars may hand to endpoints.
// A server only needs the ones its routes use.
type Services struct {
	Conversations *conversation.Service
	Auth          *authsvc.Service
	Gateway       *websocket.Handler
	Widget        config.WidgetConfig
	HealthChecks  map[string]HealthCheck
}

type Options struct {
	AllowedOrigins []string
	Logger         *slog.Logger
	// Registry receives the HTTP metrics. Nil means the default registry.
	Registry *prometheus.Registry
}

type APIServer struct {
	listenAddr          string
	requestQueueManager *queue.RequestQueueManager
	services            Services
	routeRegistrars     []RouteRegistrar
	cors                middleware.CORSConfig
	logger              *slog.Logger
	metrics             *metrics
}

func NewAPIServer(listenAddr string, rqm *queue.RequestQueueManager, services Services, opts Options, registrars ...RouteRegistrar) *APIServer {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &APIServer{
		listenAddr:          listenAddr,
		requestQueueManager: rqm,
		services:            services,
		routeRegistrars:     registrars,
		cors: middleware.CORSConfig{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "OPTIONS", "DELETE"},
			AllowedHeaders:   []string{"Content-Type", "X-Requested-With", "Authorization", "X-Visitor-Token", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
		},
		logger:  opts.Logger.With("component", "api", "listen_addr", listenAddr),
		metrics: newMetrics(opts.Registry, listenAddr, rqm),
	}
}

// Handler builds the routed, instrumented handler without listening.
func (s *APIServer) Handler() http.Handler {
	mux := http.NewServeMux()

	for _, reg := range s.routeRegistrars {
		reg(mux, s)
	}

	mux.Handle("/metrics", s.metrics.metricsHandler())

	return s.metrics.instrument(mux)
}

// Run serves until ctx is cancelled and then drains in-flight requests.
func (s *APIServer) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.listenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

func (s *APIServer) Conversations() *conversation.Service {
	return s.services.Conversations
}

func (s *APIServer) Auth() *authsvc.Service {
	return s.services.Auth
}

func (s *APIServer) Gateway() *websocket.Handler {
	return s.services.Gateway
}

func (s *APIServer) Widget() config.WidgetConfig {
	return s.services.Widget
}

func (s *APIServer) HealthChecks() map[string]HealthCheck {
	return s.services.HealthChecks
}

func (s *APIServer) Logger() *slog.Logger {
	return s.logger
}
