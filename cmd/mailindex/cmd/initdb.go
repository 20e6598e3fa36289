package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initDBCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Initialize the database schema",
	Long: `Initialize the mailindex database with the required schema.

It is safe to run multiple times - tables are only created if they don't
already exist. Other commands create the schema on demand, so this is only
needed to prepare a database ahead of the first run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("initializing database", "path", cfg.DatabaseDSN())

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		logger.Info("database initialized successfully", "fts5", s.FTS5Available())

		stats, err := s.GetStats()
		if err != nil {
			return fmt.Errorf("get stats: %w", err)
		}
		printStats(cmd.OutOrStdout(), s.Path(), stats)
		if !s.FTS5Available() {
			fmt.Fprintln(cmd.OutOrStdout(), "  Note: SQLite was built without FTS5; body search uses LIKE.")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initDBCmd)
}
