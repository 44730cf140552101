package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"brainsim/internal/infra"
	"brainsim/internal/infra/credentials"
)

func init() {
	rootCmd.AddCommand(credentialCmd)
	credentialCmd.AddCommand(credentialSetCmd)
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage provider keys stored in the database",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set NAME VALUE",
	Short: "Store a provider key (" + strings.Join(credentials.Known, ", ") + ")",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := infra.NewDBPool(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer pool.Close()

		store := credentials.NewStore(infra.NewSQLRunner(pool, *logger))
		if err := store.Set(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("store credential: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored %s.\n", strings.ToUpper(args[0]))
		return nil
	},
}
