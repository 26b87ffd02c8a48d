package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	authsvc "support-chat-backend/internal/service/auth"

	"github.com/spf13/cobra"
)

func newAgentsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Manage support agents",
	}

	cmd.AddCommand(newAgentsListCmd(configPath))
	cmd.AddCommand(newAgentsCreateCmd(configPath))
	cmd.AddCommand(newAgentsActiveCmd(configPath, "activate", "Allow an agent to log in again", true))
	cmd.AddCommand(newAgentsActiveCmd(configPath, "deactivate", "Block an agent from logging in", false))
	return cmd
}

func newAgentsListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all agents",
		Args:  cobra.NoArgs,
		RunE: withDeps(configPath, func(ctx context.Context, cmd *cobra.Command, args []string, d *deps) error {
			agents, err := d.auth.ListAgents(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tEMAIL\tNAME\tACTIVE\tONLINE\tMAX CHATS")
			for _, a := range agents {
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%d\n", a.AgentID, a.Email, a.Name, a.IsActive, a.IsOnline, a.MaxConcurrentChats)
			}
			return w.Flush()
		}),
	}
}

func newAgentsCreateCmd(configPath *string) *cobra.Command {
	var (
		email    string
		name     string
		maxChats int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an agent ahead of their first login",
		Args:  cobra.NoArgs,
		RunE: withDeps(configPath, func(ctx context.Context, cmd *cobra.Command, args []string, d *deps) error {
			agent, err := d.auth.CreateAgent(ctx, authsvc.CreateAgentParams{
				Email:              email,
				Name:               name,
				MaxConcurrentChats: maxChats,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created agent %s (%s)\n", agent.AgentID, agent.Email)
			return nil
		}),
	}

	cmd.Flags().StringVar(&email, "email", "", "agent email address")
	cmd.Flags().StringVar(&name, "name", "", "display name (defaults to the email local part)")
	cmd.Flags().IntVar(&maxChats, "max-chats", 0, "maximum concurrent chats (0 uses the default)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAgentsActiveCmd(configPath *string, use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <agentId>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withDeps(configPath, func(ctx context.Context, cmd *cobra.Command, args []string, d *deps) error {
			if err := d.auth.SetAgentActive(ctx, args[0], active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Agent %s %sd\n", args[0], use)
			return nil
		}),
	}
}
