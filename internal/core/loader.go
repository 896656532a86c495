package core

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/JonMunkholm/dipendenti/internal/logging"
)

// ContextCheckInterval is how often (in rows) to check for context cancellation.
var ContextCheckInterval = 100

// Load reads the CSV file at path into a raw table for runID.
func (s *Session) Load(ctx context.Context, path string, runID int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load run %d: %w", runID, err)
	}
	defer f.Close()

	return s.LoadReader(ctx, f, path, runID)
}

// progressStep is the percentage between two progress log lines.
const progressStep = 25

// sizeOf returns the byte size of r when it can be known up front
// (files, strings.Reader, bytes.Reader, multipart parts), or 0.
func sizeOf(r io.Reader) int64 {
	switch x := r.(type) {
	case interface{ Size() int64 }:
		return x.Size()
	case interface{ Stat() (os.FileInfo, error) }:
		if fi, err := x.Stat(); err == nil && fi.Mode().IsRegular() {
			return fi.Size()
		}
	}
	return 0
}

// LoadReader reads CSV from r into a raw table for runID. source names the
// input in errors and in the audit trail.
//
// The header must name exactly CF, NOME, DN and SALARIO, and every data row
// must have four fields; otherwise a *SchemaMismatchError is returned.
// Empty cells load as null. DINS is stamped with the current date.
func (s *Session) LoadReader(ctx context.Context, r io.Reader, source string, runID int) (*Table, error) {
	counter := NewCountingReader(NewBOMSkippingReader(r), sizeOf(r))
	reader := csv.NewReader(counter)
	reader.FieldsPerRecord = len(InputSpecs)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &SchemaMismatchError{Source: source, Line: 1, Reason: "missing header row"}
		}
		return nil, schemaError(source, "malformed header", err)
	}

	idx, err := ValidateHeaders(header, InputSpecs)
	if err != nil {
		return nil, &SchemaMismatchError{Source: source, Line: 1, Reason: "bad header", Err: err}
	}

	today := s.today()
	var rows []Row
	logged := 0

	for n := 0; ; n++ {
		if n%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("load run %d: %w", runID, err)
			}
			if pct := counter.Progress(); pct >= logged+progressStep {
				logged = pct - pct%progressStep
				s.logger.Debug("load progress", "idrun", runID, "source", source, "rows", n, "percent", pct)
			}
		}

		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, schemaError(source, "malformed row", err)
		}

		row := make(Row, len(LoadedColumns))
		for _, spec := range InputSpecs {
			row[spec.Name] = rawCell(rec[idx[strings.ToLower(spec.Name)]])
		}
		row[ColDINS] = today
		rows = append(rows, row)
	}

	t := newTable(runID, KindRaw, source, LoadedColumns, rows)

	s.logger.Info("run loaded", "idrun", runID, "source", source, "rows", t.Count(), "bytes", counter.BytesRead, "size", counter.Total)
	s.record(logging.AuditEvent{
		RunID:     runID,
		Operation: OpLoad,
		Status:    logging.StatusOK,
		Fields:    []logging.AuditField{{Key: "File", Value: source}},
	})

	return t, nil
}

// rawCell maps an empty field to null and keeps anything else verbatim.
func rawCell(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// schemaError wraps a csv reader error, lifting its line number.
func schemaError(source, reason string, err error) *SchemaMismatchError {
	e := &SchemaMismatchError{Source: source, Reason: reason, Err: err}
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		e.Line = pe.Line
		e.Err = pe.Err
	}
	return e
}
