// Package main is the billing service entry point.
// Every subcommand loads the configuration first; serve shuts down gracefully
// on SIGINT/SIGTERM.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"alchemyst.ke/billing/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:           "billing",
	Short:         "Wallet and subscription engine of the listings marketplace",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
			log.SetLevel(level)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(accountCmd)
}

func main() {
	setupLogging()

	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Fatal("command failed")
	}
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
