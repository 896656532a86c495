package web

// handlers_common.go holds request parsing and response encoding shared by
// the handlers.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/logging"
	"github.com/JonMunkholm/dipendenti/internal/web/templates"
	"github.com/go-chi/chi/v5"
)

// errBadRequest marks malformed request parameters.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// tableKind selects the partition a handler serves.
type tableKind int

const (
	kindAccepted tableKind = iota
	kindRejected
)

func (k tableKind) String() string {
	if k == kindRejected {
		return "rejected"
	}
	return "accepted"
}

// runIDParam parses the {idrun} path parameter.
func runIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "idrun")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("invalid run id %q", raw)
	}
	return id, nil
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseFilters reads filter[COL]=op:value parameters, plus min_salary when
// the accepted partition is queried.
//
// A value without an operator prefix is an equality test.
func parseFilters(r *http.Request, kind tableKind) (core.FilterSet, error) {
	var fs core.FilterSet
	q := r.URL.Query()

	for key, values := range q {
		if !strings.HasPrefix(key, "filter[") || !strings.HasSuffix(key, "]") {
			continue
		}
		col := strings.ToUpper(strings.TrimSuffix(strings.TrimPrefix(key, "filter["), "]"))
		for _, v := range values {
			op, val, found := strings.Cut(v, ":")
			if !found {
				op, val = string(core.OpEquals), v
			}
			fs.Filters = append(fs.Filters, core.ColumnFilter{
				Column:   col,
				Operator: core.FilterOperator(op),
				Value:    val,
			})
		}
	}

	if raw := q.Get("min_salary"); raw != "" {
		if kind != kindAccepted {
			return fs, badRequest("min_salary applies to accepted rows only")
		}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fs, badRequest("invalid min_salary %q", raw)
		}
		fs.Filters = append(fs.Filters, core.ColumnFilter{
			Column:   core.ColSalario,
			Operator: core.OpGreater,
			Value:    raw,
		})
	}

	return fs, nil
}

// parseColumns reads the optional comma-separated columns parameter.
func parseColumns(r *http.Request) []string {
	raw := r.URL.Query().Get("columns")
	if raw == "" {
		return nil
	}
	var cols []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.ToUpper(strings.TrimSpace(c)); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// query applies the filter and projection parameters of r to t.
func query(r *http.Request, t *core.Table, kind tableKind) (*core.Table, error) {
	fs, err := parseFilters(r, kind)
	if err != nil {
		return nil, err
	}
	if len(fs.Filters) > 0 {
		if t, err = core.Filter(t, fs); err != nil {
			return nil, err
		}
	}
	if cols := parseColumns(r); len(cols) > 0 {
		if t, err = t.Select(cols...); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// tableJSON is the JSON form of a table.
type tableJSON struct {
	RunID   int              `json:"idrun"`
	Kind    string           `json:"kind"`
	Columns []string         `json:"columns"`
	Count   int              `json:"count"`
	Rows    []map[string]any `json:"rows"`
}

// jsonCell converts a cell to its JSON value. Dates encode as YYYY-MM-DD.
func jsonCell(v any) any {
	if d, ok := v.(time.Time); ok {
		return d.Format(core.DateLayout)
	}
	return v
}

func newTableJSON(t *core.Table, limit int) tableJSON {
	rows := t.Rows()
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := tableJSON{
		RunID:   t.RunID(),
		Kind:    string(t.Kind()),
		Columns: t.Columns(),
		Count:   t.Count(),
		Rows:    make([]map[string]any, len(rows)),
	}
	for i, row := range rows {
		m := make(map[string]any, len(row))
		for k, v := range row {
			m[k] = jsonCell(v)
		}
		out.Rows[i] = m
	}
	return out
}

// newTableData prepares t for the HTML table component.
func newTableData(title string, t *core.Table, limit int) templates.TableData {
	rows := t.Rows()
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	cols := t.Columns()
	data := templates.TableData{
		Title:   title,
		Columns: cols,
		Rows:    make([][]templates.Cell, len(rows)),
		Total:   t.Count(),
	}
	for i, row := range rows {
		cells := make([]templates.Cell, len(cols))
		for j, c := range cols {
			text, ok := core.CellText(row[c])
			cells[j] = templates.Cell{Text: text, Null: !ok}
		}
		data.Rows[i] = cells
	}
	return data
}

// respondTable writes t as JSON, an HTML page, or the text grid
// depending on the Accept header.
func (s *Server) respondTable(w http.ResponseWriter, r *http.Request, title string, t *core.Table) {
	if wantsText(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := s.session.Show(w, t); err != nil {
			logging.FromContext(r.Context()).Error("show failed", "error", err)
		}
		return
	}

	t = s.session.Frame(t)
	limit := parseIntParam(r, "limit", 0)

	if wantsHTML(r) {
		if limit == 0 {
			limit = s.cfg.Report.ShowRows
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.TablePage(newTableData(title, t, limit)).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render failed", "error", err)
		}
		return
	}

	writeJSON(w, r, http.StatusOK, newTableJSON(t, limit))
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode error", "error", err)
	}
}
