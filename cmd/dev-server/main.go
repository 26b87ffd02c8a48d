// Command dev-server serves the public, agent and websocket surfaces from one
// process and one listener. Paired with bus driver "memory" it needs no
// Redis.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"support-chat-backend/internal/api"
	"support-chat-backend/internal/api/router"
	"support-chat-backend/internal/app"
	"support-chat-backend/internal/websocket"
)

const (
	publicPrefix    = "/api/public/v1"
	agentPrefix     = "/api/agent/v1"
	websocketPrefix = "/api/ws/v1"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("dev-server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, "dev-server")
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	hub := websocket.NewHub()
	handler := websocket.NewHandler(hub, a.Bus, a.Conversations, a.Auth, websocket.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Logger:         a.Logger,
	})
	defer hub.CloseAll()

	queueManager := a.Queue()
	defer queueManager.Shutdown()

	services := a.Services()
	services.Gateway = handler

	server := api.NewAPIServer(
		cfg.Server.PublicAddr,
		queueManager,
		services,
		a.APIOptions(),
		router.UtilsRoutes(publicPrefix),
		router.ConversationPublicRoutes(publicPrefix),
		router.WidgetPublicRoutes(publicPrefix),
		router.UtilsRoutes(agentPrefix),
		router.AuthRoutes(agentPrefix),
		router.ConversationAgentRoutes(agentPrefix),
		router.UtilsRoutes(websocketPrefix),
		router.ConversationWebsocketRoutes(websocketPrefix),
	)

	return server.Run(ctx)
}
