package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/learning-api/internal/app"
	"github.com/iliyamo/learning-api/internal/config"
	"github.com/iliyamo/learning-api/internal/migrations"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API with its background workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, db, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.JWTSecretGen {
			logger.Warn("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
		}
		if serveMigrate {
			if err := migrations.Up(ctx, db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}

		rdb := config.NewRedisClient(ctx)
		if rdb == nil {
			logger.Warn("redis unavailable; rate limiting and response cache disabled")
		} else {
			defer rdb.Close()
		}

		a, err := app.New(cfg, logger, db, rdb)
		if err != nil {
			return err
		}
		return a.Run(ctx)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "apply pending migrations before serving")
}
