package application

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/logging"
	"github.com/JonMunkholm/dipendenti/internal/store"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

func newMenu(t *testing.T, st store.Store) (Model, *Batch) {
	t.Helper()
	dir := writeFiles(t, map[string]string{"Flusso.csv": flusso1, "Flusso2.csv": flusso2})
	m := config.ManifestFromPaths([]string{filepath.Join(dir, "Flusso.csv"), filepath.Join(dir, "Flusso2.csv")})
	b, _, _ := newBatch(t, st)
	return NewModel(context.Background(), b, m), b
}

// press feeds keys to the model and runs any command the last one returns.
func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	if cmd != nil {
		next, _ := m.Update(cmd())
		m = next.(Model)
	}
	return m
}

func TestMenu_Navigation(t *testing.T) {
	m, _ := newMenu(t, nil)

	m = press(t, m, keyUp)
	if m.cursor != 0 {
		t.Errorf("cursor = %d after up at top, want 0", m.cursor)
	}

	m = press(t, m, keyDown, keyEnter)
	if m.menu.Title != "Tables" {
		t.Fatalf("menu = %q, want Tables", m.menu.Title)
	}

	m = press(t, m, keyDown, keyDown, keyEnter)
	if m.menu.Title != "Dipendenti" {
		t.Errorf("Back led to %q, want Dipendenti", m.menu.Title)
	}

	m = press(t, m, keyDown, keyDown, keyEnter, keyEsc)
	if m.menu.Title != "Dipendenti" {
		t.Errorf("esc led to %q, want Dipendenti", m.menu.Title)
	}
	if !strings.Contains(m.View(), "> Run batch (2 files)") {
		t.Errorf("view does not mark the selected item:\n%s", m.View())
	}
}

func TestMenu_RunBatchThenTables(t *testing.T) {
	m, b := newMenu(t, nil)

	m = press(t, m, keyEnter)
	if m.failed {
		t.Fatalf("batch failed: %s", m.status)
	}
	if m.status != "2 runs: 3 accepted, 2 rejected" {
		t.Errorf("status = %q", m.status)
	}
	if !strings.Contains(m.output, "=== OK totale ===") {
		t.Error("batch output not shown")
	}
	if b.Runs.Count() != 2 {
		t.Errorf("runs after batch = %d, want 2", b.Runs.Count())
	}

	// Running again replaces the runs instead of failing on duplicate ids.
	m = press(t, m, keyEnter)
	if m.failed {
		t.Fatalf("second batch failed: %s", m.status)
	}

	m = press(t, m, keyDown, keyEnter, keyDown, keyEnter)
	if m.status != "Scarti totale: 2 rows" {
		t.Errorf("status = %q, want Scarti totale: 2 rows", m.status)
	}
	if !strings.Contains(m.output, "SHORT") {
		t.Errorf("rejected union missing SHORT:\n%s", m.output)
	}
}

func TestMenu_StoreWithoutDriver(t *testing.T) {
	m, _ := newMenu(t, nil)
	m = press(t, m, keyDown, keyDown, keyEnter, keyEnter)
	if m.menu.Title != "Store" || m.busy || m.status != "" {
		t.Errorf("selecting the error item changed state: menu %q busy %v status %q", m.menu.Title, m.busy, m.status)
	}
	if !strings.Contains(m.View(), "no store configured") {
		t.Errorf("view missing store error:\n%s", m.View())
	}
}

func TestMenu_StoreStatsAndReset(t *testing.T) {
	ctx := context.Background()
	db, err := store.OpenSQLite(ctx, ":memory:", 0, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatal(err)
	}

	m, _ := newMenu(t, db)
	m = press(t, m, keyEnter)
	if !strings.HasSuffix(m.status, ", persisted") {
		t.Errorf("status = %q, want persisted", m.status)
	}

	m = press(t, m, keyDown, keyDown, keyEnter, keyEnter)
	if m.status != "Stored: 3 accepted, 2 rejected, 2 runs" {
		t.Errorf("status = %q", m.status)
	}

	m = press(t, m, keyDown, keyEnter, keyEnter)
	if m.status != "Store reset" {
		t.Errorf("status = %q, want Store reset", m.status)
	}
	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Accepted != 0 || stats.Rejected != 0 {
		t.Errorf("stats after reset = %+v", stats)
	}
}

func TestMenu_ErrorStatus(t *testing.T) {
	m, _ := newMenu(t, nil)
	next, _ := m.Update(errMsg{errors.New("disk full")})
	m = next.(Model)
	if !m.failed || m.status != "disk full" {
		t.Errorf("failed=%v status=%q", m.failed, m.status)
	}
}

func TestMenu_Quit(t *testing.T) {
	m, _ := newMenu(t, nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}
