// Package application runs the batch flow over a manifest of input files:
// load and show every run, classify, report, and optionally persist.
// Watcher ingests files dropped into a directory as they arrive.
package application

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/JonMunkholm/dipendenti/internal/config"
	"github.com/JonMunkholm/dipendenti/internal/core"
	"github.com/JonMunkholm/dipendenti/internal/store"
)

// DefaultSalaryThreshold is the SALARIO lower bound of the batch report.
const DefaultSalaryThreshold = 3000

// reportColumns is the projection of the salary report.
var reportColumns = []string{core.ColIDRun, core.ColCF, core.ColNome, core.ColSalario}

// Batch runs a manifest through a session, writing every table to Out.
type Batch struct {
	Session         *core.Session
	Runs            *core.RunSet // receives the processed runs; optional
	Store           store.Store  // nil disables persistence
	Out             io.Writer
	SalaryThreshold float64
}

// Report is what a batch produced.
type Report struct {
	Runs     []*core.Run
	HighPaid *core.Table // accepted rows of the first run above the threshold
	Accepted *core.Table // union of every Accepted table
	Rejected *core.Table // union of every Rejected table
	Saved    []store.SaveResult
}

// Run executes the flow. A schema mismatch in any file aborts the batch
// before anything is persisted.
func (b *Batch) Run(ctx context.Context, m *config.Manifest) (*Report, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	s := b.Session
	logger := s.Logger()

	threshold := b.SalaryThreshold
	if threshold == 0 {
		threshold = DefaultSalaryThreshold
	}

	// Load
	raws := make([]*core.Table, len(m.Runs))
	for i, spec := range m.Runs {
		raw, err := s.Load(ctx, spec.Path, spec.ID)
		if err != nil {
			return nil, err
		}
		raws[i] = raw
		if err := b.section(fmt.Sprintf("Tabella%d", spec.ID), raw); err != nil {
			return nil, err
		}
	}

	// Classify
	report := &Report{Runs: make([]*core.Run, len(raws))}
	for i, raw := range raws {
		ok, ko, err := s.Classify(ctx, raw)
		if err != nil {
			return nil, err
		}
		report.Runs[i] = &core.Run{
			ID:          raw.RunID(),
			Source:      raw.Source(),
			Raw:         raw,
			Accepted:    ok,
			Rejected:    ko,
			ProcessedAt: s.Now(),
		}
	}
	for _, run := range report.Runs {
		if err := b.section(fmt.Sprintf("Tabella%d OK", run.ID), run.Accepted); err != nil {
			return nil, err
		}
		if err := b.section(fmt.Sprintf("Tabella%d Scarti", run.ID), run.Rejected); err != nil {
			return nil, err
		}
	}

	// Salary report on the first run
	limit := strconv.FormatFloat(threshold, 'f', -1, 64)
	first := s.Frame(report.Runs[0].Accepted)
	high, err := core.Filter(first, core.FilterSet{Filters: []core.ColumnFilter{{
		Column:   core.ColSalario,
		Operator: core.OpGreater,
		Value:    limit,
	}}})
	if err != nil {
		return nil, err
	}
	if report.HighPaid, err = high.Select(reportColumns...); err != nil {
		return nil, err
	}
	if err := b.section("SALARIO > "+limit, report.HighPaid); err != nil {
		return nil, err
	}

	// Unions
	oks := make([]*core.Table, len(report.Runs))
	kos := make([]*core.Table, len(report.Runs))
	for i, run := range report.Runs {
		oks[i] = s.Frame(run.Accepted)
		kos[i] = s.Frame(run.Rejected)
	}
	if report.Accepted, err = core.UnionAll(oks...); err != nil {
		return nil, err
	}
	if report.Rejected, err = core.UnionAll(kos...); err != nil {
		return nil, err
	}
	if err := b.section("OK totale", report.Accepted); err != nil {
		return nil, err
	}
	if err := b.section("Scarti totale", report.Rejected); err != nil {
		return nil, err
	}

	if b.Runs != nil {
		for _, run := range report.Runs {
			if err := b.Runs.Add(run); err != nil {
				return nil, err
			}
		}
	}

	if b.Store != nil {
		for _, run := range report.Runs {
			res, err := b.Store.SaveRun(ctx, s.ID(), run)
			if err != nil {
				return report, fmt.Errorf("persist run %d: %w", run.ID, err)
			}
			report.Saved = append(report.Saved, res)
			logger.Info("run persisted", "idrun", run.ID, "accepted", res.Accepted, "rejected", res.Rejected)
		}
	}

	return report, nil
}

// section prints a heading followed by the table.
func (b *Batch) section(title string, t *core.Table) error {
	if _, err := fmt.Fprintf(b.Out, "=== %s ===\n", title); err != nil {
		return err
	}
	return b.Session.Show(b.Out, t)
}
