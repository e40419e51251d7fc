package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/proxyhq/nudge-engine/internal/notification"
	"github.com/proxyhq/nudge-engine/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down]",
	Short:     "Apply or roll back the embedded schema migrations",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{string(database.Up), string(database.Down)},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required", notification.ErrConfiguration)
		}

		dir := database.Direction(args[0])
		if err := database.Migrate(cfg.Database.URL, dir); err != nil {
			return err
		}
		fmt.Printf("Migrations applied (%s)\n", dir)
		return nil
	},
}
