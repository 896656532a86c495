package core

// report.go provides the relational operators used to inspect and combine
// tables across runs: union by column name and filtering.

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Union appends b's rows to a's, matching columns by name. The result keeps
// a's column order. When both tables share a run id (or kind) the result
// keeps it; otherwise the run id is 0 and the kind is KindView.
func Union(a, b *Table) (*Table, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("union: nil table")
	}
	if !sameColumnSet(a.columns, b.columns) {
		return nil, fmt.Errorf("union %v with %v: %w", a.columns, b.columns, ErrColumnMismatch)
	}

	rows := make([]Row, 0, len(a.rows)+len(b.rows))
	for _, r := range a.rows {
		rows = append(rows, projectRow(r, a.columns))
	}
	for _, r := range b.rows {
		rows = append(rows, projectRow(r, a.columns))
	}

	runID := a.runID
	if a.runID != b.runID {
		runID = 0
	}
	kind := a.kind
	if a.kind != b.kind {
		kind = KindView
	}
	return newTable(runID, kind, "", slices.Clone(a.columns), rows), nil
}

// UnionAll folds Union over tables, left to right.
func UnionAll(tables ...*Table) (*Table, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("union: no tables")
	}
	out := tables[0]
	for _, t := range tables[1:] {
		var err error
		if out, err = Union(out, t); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Filter keeps the rows of t that satisfy every filter in fs. Null cells
// never match. The result keeps t's kind and run id.
func Filter(t *Table, fs FilterSet) (*Table, error) {
	for _, f := range fs.Filters {
		if !t.HasColumn(f.Column) {
			return nil, fmt.Errorf("filter %q: %w", f.Column, ErrUnknownColumn)
		}
		if !validOperator(f.Operator) {
			return nil, fmt.Errorf("filter %q: %w %q", f.Column, ErrUnsupportedOperator, f.Operator)
		}
	}

	var rows []Row
	for _, r := range t.rows {
		keep := true
		for _, f := range fs.Filters {
			if !matchFilter(r[f.Column], f) {
				keep = false
				break
			}
		}
		if keep {
			rows = append(rows, projectRow(r, t.columns))
		}
	}
	return newTable(t.runID, t.kind, t.source, slices.Clone(t.columns), rows), nil
}

func validOperator(op FilterOperator) bool {
	switch op {
	case OpContains, OpEquals, OpStartsWith, OpEndsWith,
		OpGreaterEq, OpLessEq, OpGreater, OpLess, OpIn:
		return true
	}
	return false
}

// matchFilter tests a single cell. Numbers and dates compare by value.
// Against a numeric literal, text that is not a number never matches;
// otherwise text compares lexically.
func matchFilter(v any, f ColumnFilter) bool {
	if v == nil {
		return false
	}

	switch f.Operator {
	case OpIn:
		for _, candidate := range strings.Split(f.Value, ",") {
			if c, ok := compareCell(v, strings.TrimSpace(candidate)); ok && c == 0 {
				return true
			}
		}
		return false
	case OpContains, OpStartsWith, OpEndsWith:
		s, _ := CellText(v)
		switch f.Operator {
		case OpContains:
			return strings.Contains(strings.ToLower(s), strings.ToLower(f.Value))
		case OpStartsWith:
			return strings.HasPrefix(strings.ToLower(s), strings.ToLower(f.Value))
		default:
			return strings.HasSuffix(strings.ToLower(s), strings.ToLower(f.Value))
		}
	}

	c, ok := compareCell(v, f.Value)
	if !ok {
		return false
	}
	switch f.Operator {
	case OpEquals:
		return c == 0
	case OpGreater:
		return c > 0
	case OpGreaterEq:
		return c >= 0
	case OpLess:
		return c < 0
	case OpLessEq:
		return c <= 0
	}
	return false
}

// compareCell compares a cell to a literal. ok is false when the literal
// cannot be read as the cell's type.
func compareCell(v any, literal string) (int, bool) {
	switch x := v.(type) {
	case time.Time:
		d, err := ParseDate(literal)
		if err != nil {
			return 0, false
		}
		return Today(x).Compare(d), true
	case int, int64, float64:
		a, _ := toFloat(x)
		b, ok := toFloat(literal)
		if !ok {
			return 0, false
		}
		return compareFloat(a, b), true
	}

	// A numeric literal casts the cell; text that does not cast is null.
	s, _ := CellText(v)
	if b, okB := toFloat(literal); okB {
		a, okA := toFloat(s)
		if !okA {
			return 0, false
		}
		return compareFloat(a, b), true
	}
	return strings.Compare(s, literal), true
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func sameColumnSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, c := range a {
		if !slices.Contains(b, c) {
			return false
		}
	}
	return true
}
