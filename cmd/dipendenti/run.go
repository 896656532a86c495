package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/dipendenti/internal/application"
	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/spf13/cobra"
)

var manifestPath string

// runCmd executes the batch flow
var runCmd = &cobra.Command{
	Use:   "run [files...]",
	Short: "Load, classify and report a batch of files",
	Long: `Load every file as a run (numbered 1..n in argument order), show it,
classify it, then show the accepted and rejected tables of each run, the
accepted rows of the first run above SALARY_THRESHOLD, and the unions of
all runs. Results are persisted when STORE_DRIVER is set.

Without arguments the manifest (--manifest or RUN_MANIFEST) is used, and
without a manifest the files Flusso.csv (run 1) and Flusso2.csv (run 2).`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing {idrun, path} runs")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	m, err := resolveManifest(args, a.cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Runs.Timeout)
	defer cancel()

	batch := &application.Batch{
		Session:         a.session,
		Store:           a.store,
		Out:             os.Stdout,
		SalaryThreshold: a.cfg.Report.SalaryThreshold,
	}
	_, err = batch.Run(ctx, m)
	return userError(err)
}

// resolveManifest picks the runs from arguments, the manifest flag or
// setting, or the default pair.
func resolveManifest(args []string, cfg *config.Config) (*config.Manifest, error) {
	switch {
	case len(args) > 0:
		return config.ManifestFromPaths(args), nil
	case manifestPath != "":
		return config.LoadManifest(manifestPath)
	case cfg.Runs.Manifest != "":
		return config.LoadManifest(cfg.Runs.Manifest)
	default:
		return config.DefaultManifest(), nil
	}
}
