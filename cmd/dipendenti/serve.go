package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/web"
	"github.com/spf13/cobra"
)

// serveCmd starts the HTTP API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API over HTTP",
	Long: `Start an HTTP server accepting CSV uploads as runs.

  POST /api/runs                    upload a CSV under the next run id
  POST /api/runs/{idrun}            upload a CSV (raw body or multipart "file")
  POST /api/preview                 dry-run classification summary
  GET  /api/runs                    list runs
  GET  /api/runs/{idrun}/accepted   accepted rows (JSON, text/html, text/plain)
  GET  /api/runs/{idrun}/rejected   rejected rows
  GET  /api/accepted?min_salary=N   union of accepted rows
  GET  /api/rejected                union of rejected rows
  GET  /healthz`,
	RunE: serve,
}

func serve(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	server := web.NewServer(a.session, core.NewRunSet(), a.store, a.cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := a.session.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for runs to complete", "active", status.Active)
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}
