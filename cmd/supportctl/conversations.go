package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"support-chat-backend/internal/model"

	"github.com/spf13/cobra"
)

func newConversationsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "Inspect and assign conversations",
	}

	cmd.AddCommand(newConversationsListCmd(configPath))
	cmd.AddCommand(newConversationsAssignCmd(configPath))
	return cmd
}

func newConversationsListCmd(configPath *string) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List conversations in one status, oldest first",
		Args:  cobra.NoArgs,
		RunE: withDeps(configPath, func(ctx context.Context, cmd *cobra.Command, args []string, d *deps) error {
			conversations, err := d.conversations.ListConversations(ctx, model.ConversationStatus(status), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tVISITOR\tEMAIL\tAGENT\tSTARTED")
			for _, c := range conversations {
				agent := c.AssignedAgentID
				if agent == "" {
					agent = c.HandledByAgentID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", c.ConversationID, c.Status, c.VisitorName, c.VisitorEmail, agent, c.StartedAt)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().StringVar(&status, "status", string(model.ConversationStatusWaiting), "conversation status to list")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum conversations to show (0 for all)")
	return cmd
}

func newConversationsAssignCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "assign <conversationId> <agentId>",
		Short: "Hand a waiting conversation to an agent",
		Long:  "Assigns through the same conditional transition as an agent's own claim, so it fails if the conversation was already taken.",
		Args:  cobra.ExactArgs(2),
		RunE: withDeps(configPath, func(ctx context.Context, cmd *cobra.Command, args []string, d *deps) error {
			result, err := d.conversations.AssignConversation(ctx, args[1], args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Conversation %s assigned to %s\n", result.Conversation.ConversationID, result.Conversation.AssignedAgentID)
			return nil
		}),
	}
}
