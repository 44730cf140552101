package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"brainsim/internal/infra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := infra.OpenSQL(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()

		migrations, err := infra.Migrations()
		if err != nil {
			return err
		}
		applied, err := infra.Migrate(cmd.Context(), db, logger, migrations)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date.")
			return nil
		}
		for _, v := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %s\n", v)
		}
		return nil
	},
}
