package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/manualqa/internal/api"
	"github.com/dgallion1/manualqa/internal/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, _, err := setup(false)
		if err != nil {
			return err
		}
		a, err := newApp(cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Initialize pipeline.
		orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
			WorkerCount:  cfg.WorkerCount,
			MaxQueueSize: cfg.MaxQueueSize,
			JobTTL:       cfg.JobTTL,
		}, a.index, a.workerConfig(), log)
		orch.Start(ctx)

		go func() {
			if err := a.assistant.Warmup(ctx); err != nil {
				log.Warn("warm-up failed", "model", a.generator.Model(), "error", err)
			}
		}()

		// Start session cleanup.
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n := a.sessions.Cleanup(); n > 0 {
						log.Info("expired sessions", "removed", n)
					}
				}
			}
		}()

		srv := api.NewServer(api.Deps{
			Assistant: a.assistant,
			Sessions:  a.sessions,
			Ingest:    orch,
			Index:     a.index,
			LLM:       llmStats{model: a.generator.Model(), stats: a.stats},
		}, api.Options{APIKey: cfg.APIKey, MaxUploadBytes: cfg.MaxUploadBytes}, log)

		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: cfg.GenerateTimeout + 30*time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			log.Info("shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			httpServer.Shutdown(shutdownCtx)
		}()

		log.Info("starting manualqa", "port", cfg.Port, "model", a.generator.Model(), "vector_backend", cfg.VectorBackend)
		err = httpServer.ListenAndServe()
		cancel()
		orch.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
