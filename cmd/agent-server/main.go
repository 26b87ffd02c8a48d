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
)

const prefix = "/api/agent/v1"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("agent-server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, "agent-server")
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer a.Close()

	queueManager := a.Queue()
	defer queueManager.Shutdown()

	server := api.NewAPIServer(
		cfg.Server.AgentAddr,
		queueManager,
		a.Services(),
		a.APIOptions(),
		router.UtilsRoutes(prefix),
		router.AuthRoutes(prefix),
		router.ConversationAgentRoutes(prefix),
	)

	return server.Run(ctx)
}
