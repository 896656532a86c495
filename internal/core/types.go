package core

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Column names of the employee flow.
const (
	ColIDRun   = "IDRUN"
	ColCF      = "CF"
	ColNome    = "NOME"
	ColDN      = "DN"
	ColSalario = "SALARIO"
	ColDINS    = "DINS"
)

// DateLayout is the only date format accepted for DN and emitted for dates.
const DateLayout = "2006-01-02"

// Audit operation names.
const (
	OpLoad     = "Costruttore"
	OpShow     = "Show"
	OpFrame    = "GivemeDataFrame"
	OpClassify = "pulisci"
)

var (
	// LoadedColumns is the column order of a freshly loaded table.
	LoadedColumns = []string{ColCF, ColNome, ColDN, ColSalario, ColDINS}

	// OutputColumns is the canonical column order of Accepted and Rejected tables.
	OutputColumns = []string{ColIDRun, ColCF, ColNome, ColDN, ColSalario, ColDINS}
)

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldDate
	FieldNumeric
)

// FieldSpec defines a single input CSV column.
type FieldSpec struct {
	Name     string    // Column header name (matched case-insensitively)
	Type     FieldType // Type the column is cast to once accepted
	Required bool      // Column must exist in CSV header
}

// InputSpecs is the fixed four-column text schema of an input file.
var InputSpecs = []FieldSpec{
	{Name: ColCF, Type: FieldText, Required: true},
	{Name: ColNome, Type: FieldText, Required: true},
	{Name: ColDN, Type: FieldDate, Required: true},
	{Name: ColSalario, Type: FieldNumeric, Required: true},
}

// HeaderIndex maps column names (lowercase) to their position in the CSV row.
type HeaderIndex map[string]int

// TableKind tells which stage of the flow produced a table.
type TableKind string

const (
	KindRaw      TableKind = "raw"
	KindAccepted TableKind = "accepted"
	KindRejected TableKind = "rejected"
	KindView     TableKind = "view"
)

// Row is a single record keyed by column name.
//
// Cell values are one of: nil (null), string, int, float64, or time.Time
// (dates, always at midnight UTC).
type Row map[string]any

// AcceptedRecord is the typed form of an Accepted row.
type AcceptedRecord struct {
	IDRun   int
	CF      string
	Nome    string
	DN      time.Time
	Salario float64
	DINS    time.Time
}

// RejectedRecord is the typed form of a Rejected row. Text fields stay
// nullable and DN/SALARIO are the raw input text.
type RejectedRecord struct {
	IDRun   int
	CF      pgtype.Text
	Nome    pgtype.Text
	DN      pgtype.Text
	Salario pgtype.Text
	DINS    time.Time
}

// FilterOperator represents a comparison operator for column filters.
type FilterOperator string

const (
	OpContains   FilterOperator = "contains"
	OpEquals     FilterOperator = "eq"
	OpStartsWith FilterOperator = "starts"
	OpEndsWith   FilterOperator = "ends"
	OpGreaterEq  FilterOperator = "gte"
	OpLessEq     FilterOperator = "lte"
	OpGreater    FilterOperator = "gt"
	OpLess       FilterOperator = "lt"
	OpIn         FilterOperator = "in"
)

// ColumnFilter represents a single filter condition on a column.
type ColumnFilter struct {
	Column   string         // Column name
	Operator FilterOperator // Comparison operator
	Value    string         // Filter value (comma-separated for OpIn)
}

// FilterSet represents all active filters (combined with AND logic).
type FilterSet struct {
	Filters []ColumnFilter
}
