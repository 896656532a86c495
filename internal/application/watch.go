package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/store"
	"github.com/fsnotify/fsnotify"
)

// minTick bounds how often pending files are checked.
const minTick = 10 * time.Millisecond

// Watcher ingests every file dropped into Dir as a new run. A file is
// processed once it has seen no write for Settle. Files already in Dir when
// Run starts are processed first, in name order.
type Watcher struct {
	Session    *core.Session
	Runs       *core.RunSet // required: assigns the run ids
	Store      store.Store  // nil disables persistence
	Out        io.Writer
	Dir        string
	Pattern    string        // glob matched against the base name
	Settle     time.Duration // quiet period before a file is read
	RunTimeout time.Duration // per file; zero means none

	// OnRun, when set, is called after every ingest attempt.
	OnRun func(path string, run *core.Run, err error)
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if w.Runs == nil {
		return errors.New("watch: no run set")
	}
	if _, err := filepath.Match(w.Pattern, ""); err != nil {
		return fmt.Errorf("watch: pattern %q: %w", w.Pattern, err)
	}
	logger := w.Session.Logger().With("dir", w.Dir)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}
	logger.Info("watching for files", "pattern", w.Pattern, "settle", w.Settle)

	existing, err := w.existing()
	if err != nil {
		return err
	}
	// Files listed here may also show up as events raised before the
	// listing; those are skipped unless the file changed since.
	listed := make(map[string]fileStamp, len(existing))
	for _, path := range existing {
		if st, ok := stampOf(path); ok {
			listed[path] = st
		}
		w.ingest(ctx, path)
	}

	tick := time.NewTicker(max(w.Settle/4, minTick))
	defer tick.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			logger.Info("watch stopped", "pending", len(pending))
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !w.matches(event.Name) {
				continue
			}
			pending[event.Name] = time.Now()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)

		case now := <-tick.C:
			for _, path := range settled(pending, now, w.Settle) {
				delete(pending, path)
				if alreadyListed(listed, path) {
					logger.Debug("file already ingested", "path", path)
					continue
				}
				w.ingest(ctx, path)
			}
		}
	}
}

// fileStamp identifies one version of a file.
type fileStamp struct {
	size    int64
	modTime time.Time
}

func stampOf(path string) (fileStamp, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStamp{}, false
	}
	return fileStamp{size: fi.Size(), modTime: fi.ModTime()}, true
}

// alreadyListed reports whether path was ingested from the startup listing
// and has not changed since. The listing entry is consumed either way.
func alreadyListed(listed map[string]fileStamp, path string) bool {
	prev, ok := listed[path]
	if !ok {
		return false
	}
	delete(listed, path)
	st, ok := stampOf(path)
	return ok && st == prev
}

// settled returns the pending paths quiet for at least settle, sorted.
func settled(pending map[string]time.Time, now time.Time, settle time.Duration) []string {
	var ready []string
	for path, last := range pending {
		if now.Sub(last) >= settle {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func (w *Watcher) matches(path string) bool {
	ok, _ := filepath.Match(w.Pattern, filepath.Base(path))
	return ok
}

func (w *Watcher) existing() ([]string, error) {
	entries, err := os.ReadDir(w.Dir)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", w.Dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && w.matches(e.Name()) {
			paths = append(paths, filepath.Join(w.Dir, e.Name()))
		}
	}
	return paths, nil
}

// ingest processes one file. Failures are logged; the watch goes on.
func (w *Watcher) ingest(ctx context.Context, path string) {
	run, err := w.Ingest(ctx, path)
	if err != nil {
		w.Session.Logger().Warn("file not ingested", "path", path, "error", err)
	}
	if w.OnRun != nil {
		w.OnRun(path, run, err)
	}
}

// Ingest loads and classifies the file at path under the next run id,
// shows both partitions and persists the run.
func (w *Watcher) Ingest(ctx context.Context, path string) (*core.Run, error) {
	if w.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.RunTimeout)
		defer cancel()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	s := w.Session
	id := w.Runs.Reserve()
	defer w.Runs.Release(id)

	run, err := s.Process(ctx, f, filepath.Base(path), id)
	if err != nil {
		return nil, err
	}
	if err := w.Runs.Add(run); err != nil {
		return nil, err
	}

	if w.Store != nil {
		res, err := w.Store.SaveRun(ctx, s.ID(), run)
		if err != nil {
			w.Runs.Remove(id)
			return nil, fmt.Errorf("persist run %d: %w", id, err)
		}
		s.Logger().Info("run persisted", "idrun", id, "accepted", res.Accepted, "rejected", res.Rejected)
	}

	if w.Out != nil {
		if err := w.section(fmt.Sprintf("%s (IDRUN=%d) OK", run.Source, id), run.Accepted); err != nil {
			return run, err
		}
		if err := w.section(fmt.Sprintf("%s (IDRUN=%d) Scarti", run.Source, id), run.Rejected); err != nil {
			return run, err
		}
	}
	return run, nil
}

func (w *Watcher) section(title string, t *core.Table) error {
	if _, err := fmt.Fprintf(w.Out, "=== %s ===\n", title); err != nil {
		return err
	}
	return w.Session.Show(w.Out, t)
}
