// Command dipendenti validates and classifies employee CSV files.
//
// Usage:
//
//	dipendenti run [files...] [--manifest runs.yaml]
//	dipendenti serve
//	dipendenti watch [dir]
//	dipendenti menu
//	dipendenti reset [--yes]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/logging"
	"github.com/JonMunkholm/dipendenti/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var envFile string

// diagnostics receives slog output.
var diagnostics io.Writer = os.Stderr

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dipendenti",
	Short: "Employee record validation and classification",
	Long: `dipendenti loads employee CSV files (CF, NOME, DN, SALARIO), splits
every run into accepted and rejected records, and reports on the result.

Every load, show, access and classification is appended to the audit
trail (AUDIT_LOG_PATH, default tlog.txt).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load (missing file is ignored)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(menuCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand starts from.
type app struct {
	cfg     *config.Config
	session *core.Session
	store   store.Store
}

// bootstrap loads configuration, sets up logging, opens the audit trail and
// the store. The caller must call close.
func bootstrap(ctx context.Context) (*app, error) {
	// Overload overwrites existing env vars
	if err := godotenv.Overload(envFile); err != nil {
		slog.Debug("no env file loaded, using environment variables", "path", envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	// Tables go to stdout, diagnostics to stderr.
	logging.SetupWriter(diagnostics, cfg.Logging.Level, cfg.Logging.Format)
	slog.Debug("configuration loaded", "config", cfg.String())

	audit, err := logging.OpenAuditLog(cfg.Audit.Path)
	if err != nil {
		return nil, err
	}

	session := core.NewSession(core.SessionOptions{
		Audit:             audit,
		ShowLimit:         cfg.Report.ShowRows,
		MaxConcurrentRuns: cfg.Runs.MaxConcurrent,
		MaxWait:           cfg.Runs.MaxWaitTime,
	})

	st, err := store.Open(ctx, cfg.Store, session.Logger())
	if err != nil {
		session.Close()
		return nil, err
	}

	slog.Info("session started",
		"session_id", session.ID(),
		"audit_log", cfg.Audit.Path,
		"store", cfg.Store.Driver,
	)
	return &app{cfg: cfg, session: session, store: st}, nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("close store", "error", err)
		}
	}
	if err := a.session.Close(); err != nil {
		slog.Error("close session", "error", err)
	}
}

// userError prints the user-facing message of err when it has one.
func userError(err error) error {
	if err == nil {
		return nil
	}
	slog.Error("command failed", "error", err)
	if core.IsUserFacing(err) {
		return errors.New(core.FormatUserError(err))
	}
	return err
}
