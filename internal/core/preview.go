package core

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// PreviewSummary contains the summary counts of a dry-run classification.
type PreviewSummary struct {
	TotalRows       int            `json:"totalRows"`
	AcceptedRows    int            `json:"acceptedRows"`
	RejectedRows    int            `json:"rejectedRows"`
	FailedBy        map[string]int `json:"failedBy"` // predicate flag -> rows failing it
	DuplicateInFile int            `json:"duplicateInFile"`
}

// RowPreview represents a single row for preview display.
type RowPreview struct {
	LineNumber int               `json:"lineNumber"`
	Values     map[string]string `json:"values"`
}

// ErrorPreview represents a row that would be rejected, with the predicates
// it fails.
type ErrorPreview struct {
	LineNumber int               `json:"lineNumber"`
	Values     map[string]string `json:"values"`
	Errors     []string          `json:"errors"`
}

// DuplicatePreview represents a CF that appears on several lines.
// Duplicates do not affect classification.
type DuplicatePreview struct {
	CF          string `json:"cf"`
	LineNumbers []int  `json:"lineNumbers"`
}

// PreviewResponse is the result of Preview.
type PreviewResponse struct {
	RunID            int                `json:"idrun"`
	Source           string             `json:"source"`
	Summary          PreviewSummary     `json:"summary"`
	AcceptedSamples  []RowPreview       `json:"acceptedSamples"`
	ErrorSamples     []ErrorPreview     `json:"errorSamples"`
	DuplicateSamples []DuplicatePreview `json:"duplicateSamples"`
	ProcessingTimeMs int64              `json:"processingTimeMs"`
}

// Sample limits
const (
	maxAcceptedSamples  = 10
	maxErrorSamples     = 20
	maxDuplicateSamples = 10
)

// Preview evaluates the predicates over a loaded table without producing
// the Accepted and Rejected tables. It records nothing in the audit trail.
// Line numbers count the header as line 1.
func (s *Session) Preview(ctx context.Context, t *Table) (*PreviewResponse, error) {
	start := time.Now()

	resp := &PreviewResponse{
		RunID:   t.RunID(),
		Source:  t.Source(),
		Summary: PreviewSummary{TotalRows: t.Count(), FailedBy: make(map[string]int)},
	}
	linesByCF := make(map[string][]int)

	for i, row := range t.rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("preview run %d: %w", t.RunID(), err)
			}
		}
		line := i + 2

		if cf, ok := CellText(row[ColCF]); ok {
			linesByCF[cf] = append(linesByCF[cf], line)
		}

		var failed []string
		flags := s.validator.ValidateRow(row)
		for _, p := range s.validator.Predicates() {
			if !flags[p.Flag] {
				failed = append(failed, p.Flag)
				resp.Summary.FailedBy[p.Flag]++
			}
		}

		if len(failed) == 0 {
			resp.Summary.AcceptedRows++
			if len(resp.AcceptedSamples) < maxAcceptedSamples {
				resp.AcceptedSamples = append(resp.AcceptedSamples, RowPreview{LineNumber: line, Values: previewValues(row)})
			}
			continue
		}

		resp.Summary.RejectedRows++
		if len(resp.ErrorSamples) < maxErrorSamples {
			resp.ErrorSamples = append(resp.ErrorSamples, ErrorPreview{
				LineNumber: line,
				Values:     previewValues(row),
				Errors:     failed,
			})
		}
	}

	var dups []DuplicatePreview
	for cf, lines := range linesByCF {
		if len(lines) > 1 {
			resp.Summary.DuplicateInFile++
			dups = append(dups, DuplicatePreview{CF: cf, LineNumbers: lines})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].LineNumbers[0] < dups[j].LineNumbers[0] })
	if len(dups) > maxDuplicateSamples {
		dups = dups[:maxDuplicateSamples]
	}
	resp.DuplicateSamples = dups

	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	s.logger.Debug("preview complete",
		"idrun", t.RunID(),
		"rows", resp.Summary.TotalRows,
		"accepted", resp.Summary.AcceptedRows,
		"rejected", resp.Summary.RejectedRows,
	)
	return resp, nil
}

// previewValues formats the input columns of row. Null cells are omitted.
func previewValues(row Row) map[string]string {
	values := make(map[string]string, len(InputSpecs))
	for _, spec := range InputSpecs {
		if s, ok := CellText(row[spec.Name]); ok {
			values[spec.Name] = s
		}
	}
	return values
}
