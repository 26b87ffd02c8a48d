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

const prefix = "/api/ws/v1"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("ws-server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, "ws-server")
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

	// Upgrades return as soon as the pumps start, so the queue only bounds
	// concurrent handshakes.
	queueManager := a.Queue()
	defer queueManager.Shutdown()

	services := a.Services()
	services.Gateway = handler

	server := api.NewAPIServer(
		cfg.Server.WebsocketAddr,
		queueManager,
		services,
		a.APIOptions(),
		router.UtilsRoutes(prefix),
		router.ConversationWebsocketRoutes(prefix),
	)

	return server.Run(ctx)
}
