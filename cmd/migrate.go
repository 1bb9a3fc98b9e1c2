package cmd

import (
	"fmt"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the document store migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.zap.Sync() }()
		if a.cfg.DocumentBackend != "postgres" {
			return fmt.Errorf("migrate needs DOCUMENT_BACKEND=postgres, got %q", a.cfg.DocumentBackend)
		}

		db, err := database.Connect(cmd.Context(), a.cfg.DatabaseDriver, a.cfg.DatabaseDSN(), database.PoolConfig{}, a.logger)
		if err != nil {
			return err
		}
		defer db.Close()
		a.db = db
		return a.migrate()
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
