// Package templates holds the HTML components of the web UI.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// RunRow is one line of the runs overview.
type RunRow struct {
	ID       int
	Source   string
	Total    int
	Accepted int
	Rejected int
}

// Cell is a pre-formatted table cell. Null cells are styled apart from
// any text value, including the text "null".
type Cell struct {
	Text string
	Null bool
}

// TableData is a rendered table: headers plus pre-formatted cells.
type TableData struct {
	Title   string
	Columns []string
	Rows    [][]Cell
	Total   int // rows before any limit
}

// page wraps body in the common document shell.
func page(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="it"><head><meta charset="utf-8"><title>%s</title>`+
			`<style>table{border-collapse:collapse}td,th{border:1px solid #999;padding:2px 6px;text-align:left}`+
			`td.null{color:#999;font-style:italic}</style></head><body>`,
			templ.EscapeString(title)); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, "</body></html>")
		return err
	})
}

// TablePage renders a full page for one table.
func TablePage(t TableData) templ.Component {
	return page(t.Title, TablePartial(t))
}

// TablePartial renders the table element and its caption.
func TablePartial(t TableData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h1>")
		b.WriteString(templ.EscapeString(t.Title))
		b.WriteString("</h1>")
		fmt.Fprintf(&b, `<p class="count">%d righe</p>`, t.Total)

		b.WriteString("<table><thead><tr>")
		for _, c := range t.Columns {
			b.WriteString("<th>")
			b.WriteString(templ.EscapeString(c))
			b.WriteString("</th>")
		}
		b.WriteString("</tr></thead><tbody>")
		for _, row := range t.Rows {
			b.WriteString("<tr>")
			for _, cell := range row {
				if cell.Null {
					b.WriteString(`<td class="null">null</td>`)
					continue
				}
				b.WriteString("<td>")
				b.WriteString(templ.EscapeString(cell.Text))
				b.WriteString("</td>")
			}
			b.WriteString("</tr>")
		}
		b.WriteString("</tbody></table>")
		if len(t.Rows) < t.Total {
			fmt.Fprintf(&b, `<p class="truncated">only showing top %d rows</p>`, len(t.Rows))
		}

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// RunsPage renders the overview of processed runs.
func RunsPage(runs []RunRow) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString("<h1>Runs</h1><table><thead><tr>" +
			"<th>IDRUN</th><th>File</th><th>Righe</th><th>OK</th><th>KO</th>" +
			"</tr></thead><tbody>")
		for _, r := range runs {
			fmt.Fprintf(&b,
				`<tr><td><a href="/api/runs/%d">%d</a></td><td>%s</td><td>%d</td>`+
					`<td><a href="/api/runs/%d/accepted">%d</a></td>`+
					`<td><a href="/api/runs/%d/rejected">%d</a></td></tr>`,
				r.ID, r.ID, templ.EscapeString(r.Source), r.Total,
				r.ID, r.Accepted, r.ID, r.Rejected)
		}
		b.WriteString("</tbody></table>")
		_, err := io.WriteString(w, b.String())
		return err
	})
	return page("Runs", body)
}

// ErrorAlert renders a user-facing error fragment.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="error" role="alert"><strong>%s</strong><p>%s</p><small>Code: %s</small></div>`,
			templ.EscapeString(message), templ.EscapeString(action), templ.EscapeString(code))
		return err
	})
}
