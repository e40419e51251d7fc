package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/proxyhq/nudge-engine/internal/config"
	"github.com/proxyhq/nudge-engine/internal/notification"
	"github.com/proxyhq/nudge-engine/pkg/secrets"
)

const (
	exitError       = 1
	exitConfigError = 2
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "nudge",
	Short:         "Push nudge dispatch engine",
	Long:          `Sweeps active push subscriptions, generates persona nudges and delivers them over Web Push.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, notification.ErrConfiguration) {
			os.Exit(exitConfigError)
		}
		os.Exit(exitError)
	}
}

func init() {
	cobra.OnInitialize(loadDotEnv)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	rootCmd.AddCommand(runCmd, serveCmd, consumeCmd, triggerCmd, migrateCmd, vapidKeysCmd)
}

// loadDotEnv reads .env when present; real environment variables win.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: failed to load .env: %v\n", err)
	}
}

func loadConfig(ctx context.Context) (*config.Config, error) {
	v, err := config.New(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", notification.ErrConfiguration, err)
	}

	var src config.SecretSource
	if v.GetString("secrets.id") != "" {
		src = secrets.NewSecretsManager(v.GetString("secrets.region"))
	}
	return config.Load(ctx, v, src)
}

func main() {
	Execute()
}
