package main

import (
	"github.com/spf13/cobra"

	"github.com/iliyamo/learning-api/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, logger, db, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		if err := migrations.Up(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}
