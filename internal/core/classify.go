package core

// classify.go partitions a table into Accepted and Rejected tables.
//
// The flow:
//  1. Every predicate is evaluated on every row (independently)
//  2. Per-predicate pass counts and OK/KO totals go to the audit trail
//  3. Valid rows are cast (SALARIO to float64, DN to a date) into Accepted
//  4. Invalid rows keep their raw DN/SALARIO text in Rejected
//
// Both outputs carry the parent's run id, a fresh DINS stamp, and the
// canonical column order. The parent table is never modified.

import (
	"context"
	"fmt"
	"time"

	"github.com/JonMunkholm/dipendenti/internal/logging"
)

// Classify splits t into its Accepted and Rejected partitions.
//
// Any failing cast on the Accepted side returns a
// *ClassificationInvariantError; malformed values on the Rejected side are
// expected and preserved as text.
func (s *Session) Classify(ctx context.Context, t *Table) (accepted, rejected *Table, err error) {
	if t == nil {
		return nil, nil, fmt.Errorf("classify: nil table")
	}

	runID := t.RunID()
	logger := s.logger.With("idrun", runID)

	flags := make([]Flags, len(t.rows))
	for i, row := range t.rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, fmt.Errorf("classify run %d: %w", runID, err)
			}
		}
		flags[i] = s.validator.ValidateRow(row)
	}

	for _, p := range s.validator.Predicates() {
		passed := 0
		for _, f := range flags {
			if f[p.Flag] {
				passed++
			}
		}
		logger.Debug("predicate evaluated", "filter", p.Column, "passed", passed)
		s.record(logging.AuditEvent{
			RunID:     runID,
			Operation: OpClassify,
			Fields: []logging.AuditField{
				{Key: "Filtro", Value: p.Column},
				{Key: "Righe", Value: passed},
			},
		})
	}

	ok := 0
	for _, f := range flags {
		if f.Valid() {
			ok++
		}
	}
	s.record(logging.AuditEvent{
		RunID:     runID,
		Operation: OpClassify,
		Fields: []logging.AuditField{
			{Key: "Totale righe OK", Value: ok},
			{Key: "Totale righe KO", Value: len(flags) - ok},
		},
	})

	today := s.today()
	okRows := make([]Row, 0, ok)
	koRows := make([]Row, 0, len(flags)-ok)

	for i, row := range t.rows {
		if !flags[i].Valid() {
			koRows = append(koRows, rejectRow(runID, row, today))
			continue
		}
		out, err := s.acceptRow(runID, i, row, today)
		if err != nil {
			logger.Error("accepted row failed cast", "row", i, "error", err)
			return nil, nil, err
		}
		okRows = append(okRows, out)
	}

	accepted = newTable(runID, KindAccepted, t.source, outputColumns(), okRows)
	rejected = newTable(runID, KindRejected, t.source, outputColumns(), koRows)

	logger.Info("run classified", "accepted", accepted.Count(), "rejected", rejected.Count())
	s.record(logging.AuditEvent{
		RunID:     runID,
		Operation: OpClassify,
		Fields: []logging.AuditField{
			{Key: "DF_OK righe", Value: accepted.Count()},
			{Key: "DF_SCARTI righe", Value: rejected.Count()},
		},
	})

	return accepted, rejected, nil
}

// acceptRow casts a validated row into the Accepted shape.
func (s *Session) acceptRow(runID, i int, row Row, today time.Time) (Row, error) {
	invariant := func(col string, err error) error {
		return &ClassificationInvariantError{RunID: runID, Row: i, Column: col, Value: row[col], Err: err}
	}

	cf, okCF := CellText(row[ColCF])
	nome, okNome := CellText(row[ColNome])
	if !okCF {
		return nil, invariant(ColCF, fmt.Errorf("null value"))
	}
	if !okNome {
		return nil, invariant(ColNome, fmt.Errorf("null value"))
	}

	salario, err := castSalario(row[ColSalario])
	if err != nil {
		return nil, invariant(ColSalario, err)
	}
	dn, err := castDate(row[ColDN])
	if err != nil {
		return nil, invariant(ColDN, err)
	}
	if raw, isText := row[ColDN].(string); isText && dn.Format(DateLayout) != raw {
		s.logger.Warn("birth date rolled over month end", "idrun", runID, "row", i, "dn", raw, "date", dn.Format(DateLayout))
	}

	return Row{
		ColIDRun:   runID,
		ColCF:      cf,
		ColNome:    nome,
		ColDN:      dn,
		ColSalario: salario,
		ColDINS:    today,
	}, nil
}

// rejectRow keeps the raw cells of an invalid row.
func rejectRow(runID int, row Row, today time.Time) Row {
	return Row{
		ColIDRun:   runID,
		ColCF:      row[ColCF],
		ColNome:    row[ColNome],
		ColDN:      row[ColDN],
		ColSalario: row[ColSalario],
		ColDINS:    today,
	}
}

func castSalario(v any) (float64, error) {
	if f, ok := v.(float64); ok {
		return f, nil
	}
	s, ok := CellText(v)
	if !ok {
		return 0, fmt.Errorf("null value")
	}
	return ParseSalario(s)
}

func castDate(v any) (time.Time, error) {
	if d, ok := v.(time.Time); ok {
		return Today(d), nil
	}
	s, ok := CellText(v)
	if !ok {
		return time.Time{}, fmt.Errorf("null value")
	}
	return ParseDate(s)
}

func outputColumns() []string {
	cols := make([]string, len(OutputColumns))
	copy(cols, OutputColumns)
	return cols
}
