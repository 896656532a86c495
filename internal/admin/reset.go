// Package admin provides administrative operations on the persisted data.
package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/store"
)

// ResetTimeout is the maximum duration for a reset.
const ResetTimeout = 30 * time.Second

// ErrAborted is returned when the operator declines the reset.
var ErrAborted = errors.New("reset aborted")

// ErrNoStore is returned when persistence is disabled.
var ErrNoStore = errors.New("no store configured")

// Reset deletes every stored row of dipendenti_ok and dipendenti_scarti.
// Unless force is set, the operator is asked to confirm on in/out.
func Reset(ctx context.Context, st store.Store, in io.Reader, out io.Writer, force bool) error {
	if st == nil {
		return ErrNoStore
	}

	ctx, cancel := context.WithTimeout(ctx, ResetTimeout)
	defer cancel()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	if !force {
		ok, err := confirm(in, out, fmt.Sprintf(
			"Delete %d accepted and %d rejected rows from %d runs? [y/N] ",
			stats.Accepted, stats.Rejected, stats.Runs))
		if err != nil {
			return err
		}
		if !ok {
			return ErrAborted
		}
	}

	if err := st.Reset(ctx); err != nil {
		return err
	}
	slog.Info("store reset", "accepted", stats.Accepted, "rejected", stats.Rejected, "runs", stats.Runs)
	return nil
}

// confirm prints prompt and reads a yes/no answer. EOF counts as no.
func confirm(in io.Reader, out io.Writer, prompt string) (bool, error) {
	if _, err := io.WriteString(out, prompt); err != nil {
		return false, err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes", "s", "si", "sì":
		return true, nil
	}
	return false, nil
}
