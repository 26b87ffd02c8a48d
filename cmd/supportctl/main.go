package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"support-chat-backend/internal/app"
	"support-chat-backend/internal/config"
	"support-chat-backend/internal/database"
	"support-chat-backend/internal/env"
	"support-chat-backend/internal/logger"
	authsvc "support-chat-backend/internal/service/auth"
	"support-chat-backend/internal/service/conversation"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:          "supportctl",
		Short:        "Administer the support chat backend",
		Long:         "supportctl manages agents, inspects and assigns conversations and provisions DynamoDB tables.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", env.GetOrDefault(env.ConfigPath, config.DefaultConfigPath), "path to the TOML config file")

	cmd.AddCommand(newAgentsCmd(&configPath))
	cmd.AddCommand(newConversationsCmd(&configPath))
	cmd.AddCommand(newTablesCmd(&configPath))
	return cmd
}

// deps is what the admin commands need. Admin commands never touch agent
// sessions or mail, so the auth service is built without them.
type deps struct {
	cfg           config.Config
	db            *database.Database
	closeBus      func() error
	auth          *authsvc.Service
	conversations *conversation.Service
}

func openDeps(ctx context.Context, configPath string) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(os.Stderr, cfg.Log.Level, "text")

	db, err := database.NewDatabase(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	// With the memory bus, events published here reach no other process.
	bus, closeBus, err := app.NewBus(ctx, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &deps{
		cfg:      cfg,
		db:       db,
		closeBus: closeBus,
		auth: authsvc.New(authsvc.NewRepository(db), nil, nil, authsvc.Options{
			SessionSecret: cfg.Auth.SessionSecret,
			Logger:        log,
		}),
		conversations: conversation.New(conversation.NewRepository(db), bus, conversation.Options{
			VisitorTokenSecret: []byte(cfg.Auth.VisitorTokenSecret),
			Logger:             log,
		}),
	}, nil
}

func (d *deps) Close() {
	_ = d.closeBus()
	_ = d.db.Close()
}

func withDeps(configPath *string, fn func(ctx context.Context, cmd *cobra.Command, args []string, d *deps) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		d, err := openDeps(ctx, *configPath)
		if err != nil {
			return err
		}
		defer d.Close()
		return fn(ctx, cmd, args, d)
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
