package application

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/logging"
	"github.com/JonMunkholm/dipendenti/internal/store"
	"github.com/google/go-cmp/cmp"
)

type ingested struct {
	name string
	id   int
	err  bool
}

func newWatcher(t *testing.T, dir string, st store.Store) (*Watcher, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	s := core.NewSession(core.SessionOptions{
		Logger: logging.Discard(),
		Now:    func() time.Time { return testNow },
	})
	return &Watcher{
		Session: s,
		Runs:    core.NewRunSet(),
		Store:   st,
		Out:     &out,
		Dir:     dir,
		Pattern: "*.csv",
		Settle:  20 * time.Millisecond,
	}, &out
}

// collect records ingests and signals after each one.
func collect(w *Watcher) (func() []ingested, chan struct{}) {
	var (
		mu  sync.Mutex
		got []ingested
	)
	done := make(chan struct{}, 16)
	w.OnRun = func(path string, run *core.Run, err error) {
		mu.Lock()
		rec := ingested{name: filepath.Base(path), err: err != nil}
		if run != nil {
			rec.id = run.ID
		}
		got = append(got, rec)
		mu.Unlock()
		done <- struct{}{}
	}
	return func() []ingested {
		mu.Lock()
		defer mu.Unlock()
		return append([]ingested(nil), got...)
	}, done
}

func wait(t *testing.T, done <-chan struct{}, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for ingest %d of %d", i+1, n)
		}
	}
}

func TestWatcher_IngestsExistingAndDroppedFiles(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"b.csv":     flusso2,
		"a.csv":     flusso1,
		"notes.txt": "not a run",
	})
	w, out := newWatcher(t, dir, nil)
	got, done := collect(w)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	wait(t, done, 2)
	if err := os.WriteFile(filepath.Join(dir, "c.csv"), []byte(flusso1), 0o644); err != nil {
		t.Fatal(err)
	}
	wait(t, done, 1)

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []ingested{{"a.csv", 1, false}, {"b.csv", 2, false}, {"c.csv", 3, false}}
	if diff := cmp.Diff(want, got(), cmp.AllowUnexported(ingested{})); diff != "" {
		t.Errorf("ingests mismatch (-want +got):\n%s", diff)
	}
	if w.Runs.Count() != 3 {
		t.Errorf("registered runs = %d, want 3", w.Runs.Count())
	}
	for _, heading := range []string{"=== a.csv (IDRUN=1) OK ===", "=== c.csv (IDRUN=3) Scarti ==="} {
		if !strings.Contains(out.String(), heading) {
			t.Errorf("output missing %q", heading)
		}
	}
}

// An event for a file the startup listing already ingested, with the file
// unchanged, must not produce a second run.
func TestWatcher_ListedFileNotIngestedTwice(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.csv": flusso1})
	path := filepath.Join(dir, "a.csv")
	w, _ := newWatcher(t, dir, nil)
	got, done := collect(w)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	wait(t, done, 1)
	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(flusso1), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, fi.ModTime(), fi.ModTime()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "c.csv"), []byte(flusso2), 0o644); err != nil {
		t.Fatal(err)
	}
	wait(t, done, 1)

	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []ingested{{"a.csv", 1, false}, {"c.csv", 2, false}}
	if diff := cmp.Diff(want, got(), cmp.AllowUnexported(ingested{})); diff != "" {
		t.Errorf("ingests mismatch (-want +got):\n%s", diff)
	}
}

func TestAlreadyListed(t *testing.T) {
	dir := writeFiles(t, map[string]string{"a.csv": flusso1})
	path := filepath.Join(dir, "a.csv")
	st, ok := stampOf(path)
	if !ok {
		t.Fatal("stampOf() failed on an existing file")
	}

	listed := map[string]fileStamp{path: st}
	if !alreadyListed(listed, path) {
		t.Error("unchanged listed file should be skipped")
	}
	if alreadyListed(listed, path) {
		t.Error("listing entry should be consumed after the first event")
	}

	listed[path] = st
	if err := os.WriteFile(path, []byte(flusso1+flusso2), 0o644); err != nil {
		t.Fatal(err)
	}
	if alreadyListed(listed, path) {
		t.Error("rewritten listed file should be ingested again")
	}
	if alreadyListed(map[string]fileStamp{}, path) {
		t.Error("unlisted file should not be skipped")
	}
}

func TestWatcher_SchemaMismatchDoesNotStop(t *testing.T) {
	dir := writeFiles(t, map[string]string{"bad.csv": "CF,NOME\nX,Y\n", "good.csv": flusso1})
	w, _ := newWatcher(t, dir, nil)
	got, done := collect(w)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	wait(t, done, 2)
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []ingested{{"bad.csv", 0, true}, {"good.csv", 1, false}}
	if diff := cmp.Diff(want, got(), cmp.AllowUnexported(ingested{})); diff != "" {
		t.Errorf("ingests mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_Ingest_Persists(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:", 0, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	dir := writeFiles(t, map[string]string{"a.csv": flusso1})
	w, _ := newWatcher(t, dir, db)

	run, err := w.Ingest(ctx, filepath.Join(dir, "a.csv"))
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if run.ID != 1 || run.Source != "a.csv" {
		t.Errorf("run = %d %q, want 1 a.csv", run.ID, run.Source)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(store.Stats{Accepted: 2, Rejected: 1, Runs: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_RunErrors(t *testing.T) {
	w, _ := newWatcher(t, filepath.Join(t.TempDir(), "missing"), nil)
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() on a missing directory should fail")
	}

	w, _ = newWatcher(t, t.TempDir(), nil)
	w.Pattern = "["
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() with a bad pattern should fail")
	}

	w.Pattern = "*.csv"
	w.Runs = nil
	if err := w.Run(context.Background()); err == nil {
		t.Error("Run() without a run set should fail")
	}
}

func TestSettled(t *testing.T) {
	now := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
	pending := map[string]time.Time{
		"/in/b.csv": now.Add(-2 * time.Second),
		"/in/a.csv": now.Add(-time.Second),
		"/in/c.csv": now.Add(-100 * time.Millisecond),
	}
	got := settled(pending, now, time.Second)
	if diff := cmp.Diff([]string{"/in/a.csv", "/in/b.csv"}, got); diff != "" {
		t.Errorf("settled mismatch (-want +got):\n%s", diff)
	}
}
