// Package core provides the business logic for employee record ingestion
// and classification.
//
// # Architecture
//
// The package is organized around a few concepts:
//
//   - Table: an immutable record batch tagged with a run id (IDRUN). Tables
//     come from Session.Load or NewTable and are never modified in place.
//   - Session: the process-wide execution context. It owns the audit trail,
//     the clock used for DINS stamps, and the row validator.
//   - Predicates: four independent, field-local rules (SALARIO, DN, NOME,
//     CF). A row is accepted only if all four pass.
//   - RunSet: the registry of processed runs, used to union results.
//
// # Flow
//
//  1. [Session.Load] reads a CSV with the fixed header CF,NOME,DN,SALARIO
//  2. [Session.Classify] splits it into Accepted (typed) and Rejected (raw)
//  3. [Union] / [Filter] / [Table.Select] combine and inspect the results
//  4. [Session.Show] renders a table to the console
//
// [Session.Preview] evaluates the predicates on a loaded table without
// classifying it, reporting which rules each rejected row fails.
//
// # Error Handling
//
// [SchemaMismatchError] is fatal to a load. [ClassificationInvariantError]
// signals a defect in the predicates and is never swallowed. Bad values are
// not errors: they are why a row lands in Rejected. [MapError] turns any of
// these into a user message with a support code.
//
// # Audit Trail
//
// Every Load, Show, Frame and Classify call appends a line to the session's
// audit log (see the logging package) for traceability of each run.
package core
