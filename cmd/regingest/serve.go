package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/regingest/internal/api"
	"github.com/dgallion1/regingest/internal/pipeline"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API for asynchronous ingestion runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log := root.logger()
			cfg, err := root.config()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			if err := cfg.Validate(true); err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := openApp(ctx, cfg, log, true)
			if err != nil {
				return err
			}
			defer a.Close()

			runner := pipeline.NewRunner(a.coord, cfg.MaxQueueSize, 1, cfg.RunTTL, cfg.ReportDir, log)
			runner.Start(ctx)

			srv := api.NewServer(runner, a.stats, log, cfg)
			httpServer := &http.Server{
				Addr:         ":" + cfg.Port,
				Handler:      srv,
				ReadTimeout:  30 * time.Second,
				WriteTimeout: 120 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			// Graceful shutdown.
			done := make(chan struct{})
			go func() {
				defer close(done)
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				select {
				case <-sigCh:
				case <-ctx.Done():
				}
				log.Info("shutting down...")

				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				httpServer.Shutdown(shutdownCtx)

				runner.Stop()
			}()

			log.Info("starting regingest", "port", cfg.Port, "indexer", cfg.Indexer)
			err = httpServer.ListenAndServe()
			cancel()
			<-done
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default PORT)")
	return cmd
}
