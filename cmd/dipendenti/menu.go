package main

import (
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/dipendenti/internal/application"
	"github.com/spf13/cobra"
)

var logFile string

// menuCmd starts the interactive menu
var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Interactive menu over the batch, its tables and the store",
	Long: `Open a terminal menu to run the batch (same runs as "run"), show the
accepted and rejected unions, and inspect or reset the store.

Diagnostics are discarded unless --log-file is given.`,
	RunE: menu,
}

func init() {
	menuCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing {idrun, path} runs")
	menuCmd.Flags().StringVar(&logFile, "log-file", "", "Append diagnostics to this file")
}

func menu(cmd *cobra.Command, args []string) error {
	diagnostics = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		diagnostics = f
	}

	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	m, err := resolveManifest(nil, a.cfg)
	if err != nil {
		return err
	}

	batch := &application.Batch{
		Session:         a.session,
		Store:           a.store,
		SalaryThreshold: a.cfg.Report.SalaryThreshold,
	}
	return application.RunMenu(ctx, batch, m, os.Stdin, os.Stdout)
}
