package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/edugest/internal/api"
	"github.com/dgallion1/edugest/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP ingestion API",
	Long: `serve starts the worker pool and the HTTP API. Uploads are queued and
processed in the background; poll /api/ingest/{jobID}/status for progress.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.close()
		if err := a.cfg.ValidateServer(); err != nil {
			return err
		}

		ctx := cmd.Context()
		deps := a.deps()
		orch := pipeline.NewOrchestrator(pipeline.Options{
			WorkerCount:  a.cfg.WorkerCount,
			MaxQueueSize: a.cfg.MaxQueueSize,
		}, pipeline.NewMemoryTracker(a.cfg.JobTTL), deps, a.log)
		orch.Start(ctx)

		srv := api.NewServer(orch, api.Services{
			Classifier:  deps.Classifier,
			Configs:     a.configs,
			Corrections: a.store,
			Structurer:  pipeline.NewStructurer(a.store, a.configs, a.gateway, a.log),
			Stats:       a.stats,
			Calls:       a.store,
			Model:       a.model,
		}, a.log, a.cfg)

		httpServer := &http.Server{
			Addr:         ":" + a.cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			a.log.Info("starting edugest", "port", a.cfg.Port, "workers", a.cfg.WorkerCount)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			orch.Stop()
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		a.log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.log.Warn("http shutdown", "error", err)
		}
		orch.Stop()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
