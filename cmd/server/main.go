package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iliyamo/learning-api/internal/config"
	"github.com/iliyamo/learning-api/internal/database"
	"github.com/iliyamo/learning-api/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "learning-api",
	Short:         "Multi-tenant learning content API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.Println("Error loading .env file, skipping:", err)
		}
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Fatalln(err)
	}
}

// bootstrap loads configuration, builds the logger and opens the database.
func bootstrap(ctx context.Context) (config.Config, *logrus.Logger, *sql.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, nil, nil, err
	}
	logger := logging.New(cfg.Env, cfg.LogLevel)
	if err := cfg.RequireDatabase(); err != nil {
		return cfg, logger, nil, err
	}
	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return cfg, logger, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, logger, db, nil
}
