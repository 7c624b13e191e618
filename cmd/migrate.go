package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var config DatabaseConfig

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long: `Create the users and calendar settings tables if they do not exist.
serve applies the same schema on startup, so running migrate is only needed
before creating users on a fresh database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loadDatabaseEnvVars(cmd, &config)

			db, err := openDatabase(cmd.Context(), config)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "Database schema is up to date")
			return nil
		},
	}

	addDatabaseFlags(cmd, &config)

	return cmd
}
