package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"alchemyst.ke/billing/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the daily expiration sweep",
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info("=== billing starting ===")

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		application, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer application.Close()

		if application.Scheduler != nil {
			if err := application.Scheduler.Start(ctx); err != nil {
				return err
			}
			defer application.Scheduler.Stop()
			log.WithField("next", application.Scheduler.Next()).Info("next sweep scheduled")
		}

		errCh := make(chan error, 1)
		go func() { errCh <- application.Server.Start() }()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		log.Info("=== billing ready ===")

		select {
		case sig := <-quit:
			log.Infof("received %s, shutting down", sig)
		case err := <-errCh:
			if err != nil {
				return err
			}
		}

		cancel()
		if err := application.Server.Shutdown(context.Background()); err != nil {
			log.WithError(err).Warn("HTTP shutdown incomplete")
		}

		log.Info("=== billing stopped ===")
		return nil
	},
}
