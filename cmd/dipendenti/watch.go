package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/dipendenti/internal/application"
	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/spf13/cobra"
)

// watchCmd ingests files dropped into a directory
var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Classify every CSV dropped into a directory",
	Long: `Watch a directory (argument or WATCH_DIR) and process every file
matching WATCH_PATTERN as a new run once it has been quiet for WATCH_SETTLE.
Files already present are processed first. Each run's accepted and rejected
tables are shown and, when STORE_DRIVER is set, persisted.`,
	Args: cobra.MaximumNArgs(1),
	RunE: watch,
}

func watch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	dir, err := watchDir(args, a.cfg)
	if err != nil {
		return err
	}

	w := &application.Watcher{
		Session:    a.session,
		Runs:       core.NewRunSet(),
		Store:      a.store,
		Out:        os.Stdout,
		Dir:        dir,
		Pattern:    a.cfg.Watch.Pattern,
		Settle:     a.cfg.Watch.Settle,
		RunTimeout: a.cfg.Runs.Timeout,
	}
	return userError(w.Run(ctx))
}

// watchDir picks the directory from the argument or WATCH_DIR.
func watchDir(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if cfg.Watch.Dir != "" {
		return cfg.Watch.Dir, nil
	}
	return "", errors.New("no directory to watch: pass one or set WATCH_DIR")
}
