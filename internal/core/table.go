package core

// table.go defines Table, the immutable record batch every stage of the
// flow produces and consumes.
//
// A Table is created in exactly two ways: by loading a CSV (Session.Load)
// or by wrapping an in-memory batch (NewTable). Every operation returns a
// new Table; none mutates its receiver.

import (
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Table is an immutable, ordered record batch tagged with a run identifier.
type Table struct {
	runID   int
	kind    TableKind
	source  string
	columns []string
	rows    []Row
}

// NewTable wraps an in-memory batch. Rows are copied and projected onto
// columns: missing cells become null and cells outside columns are dropped.
func NewTable(runID int, kind TableKind, columns []string, rows []Row) (*Table, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("new table: no columns")
	}
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("new table: empty column name")
		}
		if seen[c] {
			return nil, fmt.Errorf("new table: duplicate column %q", c)
		}
		seen[c] = true
	}

	copied := make([]Row, len(rows))
	for i, r := range rows {
		copied[i] = projectRow(r, columns)
	}

	return newTable(runID, kind, "", slices.Clone(columns), copied), nil
}

// newTable builds a table from data the caller already owns.
func newTable(runID int, kind TableKind, source string, columns []string, rows []Row) *Table {
	return &Table{
		runID:   runID,
		kind:    kind,
		source:  source,
		columns: columns,
		rows:    rows,
	}
}

// RunID returns the run identifier shared by every row of the table.
func (t *Table) RunID() int { return t.runID }

// Kind returns the stage that produced the table.
func (t *Table) Kind() TableKind { return t.kind }

// Source returns the file or stream the table was loaded from, if any.
func (t *Table) Source() string { return t.source }

// Columns returns the column names in order.
func (t *Table) Columns() []string { return slices.Clone(t.columns) }

// Count returns the number of rows.
func (t *Table) Count() int { return len(t.rows) }

// HasColumn reports whether the table has the named column.
func (t *Table) HasColumn(name string) bool {
	return slices.Contains(t.columns, name)
}

// Row returns a copy of row i.
func (t *Table) Row(i int) Row {
	return projectRow(t.rows[i], t.columns)
}

// Rows returns a copy of every row.
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	for i, r := range t.rows {
		out[i] = projectRow(r, t.columns)
	}
	return out
}

// Value returns the cell at row i, column col.
func (t *Table) Value(i int, col string) (any, bool) {
	if i < 0 || i >= len(t.rows) || !t.HasColumn(col) {
		return nil, false
	}
	return t.rows[i][col], true
}

// Select projects the table onto cols, in the given order.
func (t *Table) Select(cols ...string) (*Table, error) {
	for _, c := range cols {
		if !t.HasColumn(c) {
			return nil, fmt.Errorf("select %q: %w", c, ErrUnknownColumn)
		}
	}
	out, err := NewTable(t.runID, KindView, cols, t.rows)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	out.source = t.source
	return out, nil
}

// Drop removes cols from the table. Unknown names are ignored.
func (t *Table) Drop(cols ...string) *Table {
	keep := make([]string, 0, len(t.columns))
	for _, c := range t.columns {
		if !slices.Contains(cols, c) {
			keep = append(keep, c)
		}
	}

	rows := make([]Row, len(t.rows))
	for i, r := range t.rows {
		rows[i] = projectRow(r, keep)
	}
	return newTable(t.runID, KindView, t.source, keep, rows)
}

// AcceptedRecords decodes an Accepted table into typed records.
func (t *Table) AcceptedRecords() ([]AcceptedRecord, error) {
	if t.kind != KindAccepted {
		return nil, fmt.Errorf("accepted records from %s table: %w", t.kind, ErrWrongKind)
	}

	out := make([]AcceptedRecord, len(t.rows))
	for i, r := range t.rows {
		rec := AcceptedRecord{}
		var ok [6]bool
		rec.IDRun, ok[0] = r[ColIDRun].(int)
		rec.CF, ok[1] = r[ColCF].(string)
		rec.Nome, ok[2] = r[ColNome].(string)
		rec.DN, ok[3] = r[ColDN].(time.Time)
		rec.Salario, ok[4] = r[ColSalario].(float64)
		rec.DINS, ok[5] = r[ColDINS].(time.Time)
		for j, good := range ok {
			if !good {
				return nil, fmt.Errorf("accepted row %d: column %s has %T", i, OutputColumns[j], r[OutputColumns[j]])
			}
		}
		out[i] = rec
	}
	return out, nil
}

// RejectedRecords decodes a Rejected table into typed records.
func (t *Table) RejectedRecords() ([]RejectedRecord, error) {
	if t.kind != KindRejected {
		return nil, fmt.Errorf("rejected records from %s table: %w", t.kind, ErrWrongKind)
	}

	out := make([]RejectedRecord, len(t.rows))
	for i, r := range t.rows {
		idrun, ok := r[ColIDRun].(int)
		if !ok {
			return nil, fmt.Errorf("rejected row %d: column %s has %T", i, ColIDRun, r[ColIDRun])
		}
		dins, ok := r[ColDINS].(time.Time)
		if !ok {
			return nil, fmt.Errorf("rejected row %d: column %s has %T", i, ColDINS, r[ColDINS])
		}
		out[i] = RejectedRecord{
			IDRun:   idrun,
			CF:      toText(r[ColCF]),
			Nome:    toText(r[ColNome]),
			DN:      toText(r[ColDN]),
			Salario: toText(r[ColSalario]),
			DINS:    dins,
		}
	}
	return out, nil
}

// projectRow copies r restricted to columns.
func projectRow(r Row, columns []string) Row {
	out := make(Row, len(columns))
	for _, c := range columns {
		out[c] = r[c]
	}
	return out
}

// toText converts a cell to a nullable text value.
func toText(v any) pgtype.Text {
	s, ok := CellText(v)
	if !ok {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}
