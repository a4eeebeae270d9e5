package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/justestif/wellness-tracker/internal/config"
	"github.com/justestif/wellness-tracker/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if cfg.DatabaseURL == "" {
			return errors.New("database_url is not set")
		}
		logger := cfg.NewLogger(os.Stderr)

		ctx := cmd.Context()
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		applied, err := database.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrating: %w", err)
		}
		if len(applied) == 0 {
			logger.Info("database is up to date")
			return nil
		}
		for _, name := range applied {
			logger.Info("applied migration", "name", name)
		}
		return nil
	},
}
