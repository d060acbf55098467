package main

import (
	"fmt"
	"os"

	"bodega/internal/config"
	"bodega/internal/infra"
	"bodega/internal/logger"
	"bodega/internal/router"

	"github.com/spf13/cobra"
)

var version = "1.0.0"

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "billingctl",
	Short: "Operator tools for the bodega billing back-office",
	Long: `billingctl runs maintenance tasks against the billing database:
rebuilding stored invoice totals, checking the exchange rate source and
printing the accounts-receivable summary.

Configuration comes from the same environment variables as the API
(DATABASE_URL, RATE_SOURCE_URL, ...), optionally loaded from .env.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if dsn, _ := cmd.Flags().GetString("database-url"); dsn != "" {
			cfg.DatabaseURL = dsn
		}
		return logger.Setup(logger.LogConfig{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			Output: cfg.LogOutput,
		})
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log := logger.WithComponent("billingctl")
		log.Error().Err(err).Msg("command failed")
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("database-url", "", "Postgres DSN (overrides DATABASE_URL)")
}

// openServices connects to Postgres and wires the ledgers. Migrations run on
// connect, same as the API.
func openServices() (*router.Services, error) {
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	return router.NewServices(cfg, db), nil
}
