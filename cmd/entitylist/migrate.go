package main

import (
	"errors"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"github.com/entitylist/entitylist/internal/config"
)

var migrateDown bool

var migrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Run database migrations",
	Args:        cobra.NoArgs,
	Annotations: structuredLogAnnotation(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		m, err := migrate.New(cfg.MigrationsSource(), cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _, _ = m.Close() }()

		apply, direction := m.Up, "up"
		if migrateDown {
			apply, direction = m.Down, "down"
		}
		if err := apply(); err != nil {
			if errors.Is(err, migrate.ErrNoChange) {
				slog.Info("no changes to apply", "direction", direction)
				return nil
			}
			return err
		}

		slog.Info("migrations applied successfully", "direction", direction, "source", cfg.MigrationsSource())
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back every migration instead of applying them")
}
