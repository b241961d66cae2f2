// Package main provides a database migration runner for the embedded migrations.
package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/spf13/cobra"

	"github.com/cory-johannsen/autohtn/internal/config"
	"github.com/cory-johannsen/autohtn/internal/storage/postgres"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		direction  string
		steps      int
	)
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Apply or roll back the rulebook schema migrations",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()

			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			m, err := postgres.NewMigrator(cfg.Database.DSN())
			if err != nil {
				return err
			}
			defer m.Close()

			switch direction {
			case "up":
				if steps > 0 {
					err = m.Steps(steps)
				} else {
					err = m.Up()
				}
			case "down":
				if steps > 0 {
					err = m.Steps(-steps)
				} else {
					err = m.Down()
				}
			default:
				return fmt.Errorf("invalid direction %q: must be 'up' or 'down'", direction)
			}
			if err != nil && !errors.Is(err, migrate.ErrNoChange) {
				return fmt.Errorf("migration failed: %w", err)
			}

			version, dirty, _ := m.Version()
			out := cmd.OutOrStdout()
			if errors.Is(err, migrate.ErrNoChange) {
				fmt.Fprintf(out, "no changes (version=%d dirty=%v) [%s]\n", version, dirty, time.Since(start))
			} else {
				fmt.Fprintf(out, "migrated %s to version=%d dirty=%v [%s]\n", direction, version, dirty, time.Since(start))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "configs/dev.yaml", "path to configuration file")
	cmd.Flags().StringVar(&direction, "direction", "up", "migration direction: up or down")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return cmd
}
