package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"alchemyst.ke/billing/internal/app"
	"alchemyst.ke/billing/internal/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.StorageDriver != config.StoragePostgres {
			return errors.New("migrate needs STORAGE_DRIVER=postgres")
		}
		storage, err := app.OpenStorage(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		storage.Close()

		fmt.Printf("Schema is up to date (%d migrations)\n", len(app.Migrations))
		return nil
	},
}
