package core

import (
	"errors"
	"fmt"
)

var (
	// ErrColumnMismatch is returned by Union when the column sets differ.
	ErrColumnMismatch = errors.New("column mismatch")

	// ErrUnknownColumn is returned when an operation names a column the table lacks.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrRunExists is returned when a run id is registered twice.
	ErrRunExists = errors.New("run already exists")

	// ErrRunNotFound is returned when a run id is not registered.
	ErrRunNotFound = errors.New("run not found")

	// ErrUnsupportedOperator is returned by Filter for an unknown comparison operator.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrWrongKind is returned when a typed decode is asked of the wrong table kind.
	ErrWrongKind = errors.New("wrong table kind")
)

// SchemaMismatchError reports that an input source does not conform to the
// fixed four-column text schema. Fatal to the load; never retried.
type SchemaMismatchError struct {
	Source string
	Line   int // 0 when not tied to a line
	Reason string
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	msg := "schema mismatch in " + e.Source
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaMismatchError) Unwrap() error {
	return e.Err
}

// ClassificationInvariantError reports that a row reached a typed cast in
// the Accepted branch without satisfying the matching format predicate.
// It indicates a defect in the predicates, not bad input.
type ClassificationInvariantError struct {
	RunID  int
	Row    int
	Column string
	Value  any
	Err    error
}

func (e *ClassificationInvariantError) Error() string {
	return fmt.Sprintf("classification invariant violated: run %d row %d column %s value %v: %v",
		e.RunID, e.Row, e.Column, e.Value, e.Err)
}

func (e *ClassificationInvariantError) Unwrap() error {
	return e.Err
}
