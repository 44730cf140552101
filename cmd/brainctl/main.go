// Command brainctl runs single generation jobs and database maintenance
// outside the HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"brainsim/internal/bootstrap"
	"brainsim/internal/http/httpapi"
	"brainsim/internal/infra"
)

var rootCmd = &cobra.Command{
	Use:           "brainctl",
	Short:         "Brain progression generation tools",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig reads .env when present and the process environment. The cli
// logger writes to stderr so stdout carries only command output.
func loadConfig() (*infra.Config, *infra.Logger, error) {
	_ = godotenv.Load()
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger := infra.NewLogger("cli")
	return cfg, &logger, nil
}

// openDatabase is replaced in tests.
var openDatabase = bootstrap.OpenDatabase

// loadProviders loads config, fills empty provider keys from integration_tokens
// when DATABASE_URL is set and builds the providers. The returned func closes
// the database.
func loadProviders(cmd *cobra.Command) (*bootstrap.Providers, *infra.Logger, func(), error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := openDatabase(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open database: %w", err)
	}
	providers, err := bootstrap.NewProviders(cfg, httpapi.VideoDir(cfg.StaticDir), logger)
	if err != nil {
		db.Close()
		return nil, nil, nil, err
	}
	return providers, logger, db.Close, nil
}
