package application

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/core"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

/* ----------------------------------------
	MENU TREE
---------------------------------------- */

type MenuItem struct {
	Label   string
	Submenu *Menu
	Action  func() tea.Cmd
}

type Menu struct {
	Title  string
	Items  []MenuItem
	Parent *Menu
}

// Messages produced by actions.
type (
	doneMsg struct {
		status string
		output string
	}
	batchDoneMsg struct {
		runs   *core.RunSet
		report *Report
		output string
	}
	errMsg struct{ err error }
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Faint(true)
)

/* ----------------------------------------
	MENU TREE DEFINITION
---------------------------------------- */

func linkParents(menu *Menu, parent *Menu) {
	menu.Parent = parent

	for i := range menu.Items {
		item := &menu.Items[i]

		if item.Label == "Back" {
			item.Submenu = parent
			continue
		}

		if item.Submenu != nil {
			linkParents(item.Submenu, menu)
		}
	}
}

func buildMenuTree(ctx context.Context, b *Batch, m *config.Manifest) *Menu {
	root := &Menu{
		Title: "Dipendenti",
		Items: []MenuItem{
			{Label: fmt.Sprintf("Run batch (%d files)", len(m.Runs)), Action: runBatch(ctx, b, m)},
			{Label: "Tables ->", Submenu: loadTables(b)},
			{Label: "Store ->", Submenu: loadStore(ctx, b)},
			{Label: "Quit", Action: func() tea.Cmd { return tea.Quit }},
		},
	}

	linkParents(root, nil)

	return root
}

/* ----------------------------------------
	LOAD MENUS
---------------------------------------- */

func loadTables(b *Batch) *Menu {
	show := func(title string, union func(*core.RunSet) (*core.Table, error)) func() tea.Cmd {
		return func() tea.Cmd {
			runs := b.Runs
			return func() tea.Msg {
				t, err := union(runs)
				if err != nil {
					return errMsg{err}
				}
				var buf bytes.Buffer
				if err := b.Session.Show(&buf, b.Session.Frame(t)); err != nil {
					return errMsg{err}
				}
				return doneMsg{status: fmt.Sprintf("%s: %d rows", title, t.Count()), output: buf.String()}
			}
		}
	}

	return &Menu{
		Title: "Tables",
		Items: []MenuItem{
			{Label: "Accepted (all runs)", Action: show("OK totale", (*core.RunSet).AcceptedUnion)},
			{Label: "Rejected (all runs)", Action: show("Scarti totale", (*core.RunSet).RejectedUnion)},
			{Label: "Back"},
		},
	}
}

func loadStore(ctx context.Context, b *Batch) *Menu {
	if b.Store == nil {
		return &Menu{
			Title: "Store",
			Items: []MenuItem{
				{Label: "Error: no store configured (set STORE_DRIVER)"},
				{Label: "Back"},
			},
		}
	}

	stats := func() tea.Cmd {
		return func() tea.Msg {
			st, err := b.Store.Stats(ctx)
			if err != nil {
				return errMsg{err}
			}
			return doneMsg{status: fmt.Sprintf("Stored: %d accepted, %d rejected, %d runs", st.Accepted, st.Rejected, st.Runs)}
		}
	}
	reset := func() tea.Cmd {
		return func() tea.Msg {
			if err := b.Store.Reset(ctx); err != nil {
				return errMsg{err}
			}
			return doneMsg{status: "Store reset"}
		}
	}

	return &Menu{
		Title: "Store",
		Items: []MenuItem{
			{Label: "Stats", Action: stats},
			{Label: "Reset ->", Submenu: &Menu{
				Title: "Delete every stored row?",
				Items: []MenuItem{
					{Label: "Yes, reset", Action: reset},
					{Label: "Back"},
				},
			}},
			{Label: "Back"},
		},
	}
}

// runBatch runs the manifest into a fresh run set, so the batch can be
// repeated.
func runBatch(ctx context.Context, b *Batch, m *config.Manifest) func() tea.Cmd {
	return func() tea.Cmd {
		next := *b
		return func() tea.Msg {
			var buf bytes.Buffer
			next.Out = &buf
			next.Runs = core.NewRunSet()
			report, err := next.Run(ctx, m)
			if err != nil {
				return errMsg{err}
			}
			return batchDoneMsg{runs: next.Runs, report: report, output: buf.String()}
		}
	}
}

/* ----------------------------------------
	MODEL
---------------------------------------- */

// Model is the interactive menu over a batch.
type Model struct {
	batch  *Batch
	menu   *Menu
	cursor int
	busy   bool
	status string
	failed bool
	output string
}

// NewModel builds the menu for running m through b.
func NewModel(ctx context.Context, b *Batch, m *config.Manifest) Model {
	if b.Runs == nil {
		b.Runs = core.NewRunSet()
	}
	return Model{batch: b, menu: buildMenuTree(ctx, b, m)}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case doneMsg:
		m.busy, m.failed = false, false
		m.status, m.output = msg.status, msg.output

	case batchDoneMsg:
		m.busy, m.failed = false, false
		m.batch.Runs = msg.runs
		m.status = fmt.Sprintf("%d runs: %d accepted, %d rejected",
			len(msg.report.Runs), msg.report.Accepted.Count(), msg.report.Rejected.Count())
		if len(msg.report.Saved) > 0 {
			m.status += ", persisted"
		}
		m.output = msg.output

	case errMsg:
		m.busy, m.failed = false, true
		m.status = msg.err.Error()
		if core.IsUserFacing(msg.err) {
			m.status = core.FormatUserError(msg.err)
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(m.menu.Items)-1 {
			m.cursor++
		}

	case "esc", "backspace":
		if m.menu.Parent != nil {
			m.menu, m.cursor = m.menu.Parent, 0
		}

	case "enter":
		item := m.menu.Items[m.cursor]
		switch {
		case item.Submenu != nil:
			m.menu, m.cursor = item.Submenu, 0
		case item.Action != nil && !m.busy:
			m.busy, m.status, m.output = true, "Working...", ""
			return m, item.Action()
		}
	}
	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(m.menu.Title))
	b.WriteString("\n\n")
	for i, item := range m.menu.Items {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("> " + item.Label))
		} else {
			b.WriteString("  " + item.Label)
		}
		b.WriteByte('\n')
	}

	if m.status != "" {
		b.WriteByte('\n')
		if m.failed {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(m.status)
		}
		b.WriteByte('\n')
	}
	if m.output != "" {
		b.WriteByte('\n')
		b.WriteString(m.output)
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("up/down: move, enter: select, esc: back, q: quit"))
	b.WriteByte('\n')
	return b.String()
}

// RunMenu runs the interactive menu on in/out until the user quits.
func RunMenu(ctx context.Context, b *Batch, m *config.Manifest, in io.Reader, out io.Writer) error {
	p := tea.NewProgram(NewModel(ctx, b, m),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("menu: %w", err)
	}
	return nil
}
