package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"alchemyst.ke/billing/internal/app"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one expiration sweep and exit",
	Long: `Expire or auto-renew every package whose expiry has passed.

Uses the same lock as the scheduled sweep, so it refuses to run while
another sweep holds it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer application.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.SweepLockTTL)
		defer cancel()

		res, err := application.Sweeper.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		fmt.Printf("Processed expirations: %d expired, %d auto-renewed, %d failed (%s)\n",
			res.Expired, res.AutoRenewed, res.Failed, res.Took)
		return nil
	},
}
