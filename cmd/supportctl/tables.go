package main

import (
	"context"
	"fmt"

	"support-chat-backend/internal/database"

	"github.com/spf13/cobra"
)

func newTablesCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Provision storage",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ensure",
		Short: "Create missing DynamoDB tables and indexes, or migrate the SQL schema",
		Args:  cobra.NoArgs,
		RunE: withDeps(configPath, func(ctx context.Context, cmd *cobra.Command, args []string, d *deps) error {
			out := cmd.OutOrStdout()

			// Opening a SQL store already migrated it.
			if d.db.Client == nil {
				fmt.Fprintf(out, "Migrated %d tables on %s\n", len(database.AllModels()), d.db.Driver)
				return nil
			}

			created, err := d.db.Client.EnsureTables(ctx, database.SupportTables())
			if err != nil {
				return err
			}
			if len(created) == 0 {
				fmt.Fprintln(out, "All tables already exist")
				return nil
			}
			for _, name := range created {
				fmt.Fprintf(out, "Created table %s\n", name)
			}
			return nil
		}),
	})
	return cmd
}
