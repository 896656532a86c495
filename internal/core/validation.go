package core

// validation.go provides header validation for input files and the per-row
// predicates that decide whether a record is accepted.
//
// Each predicate reads a single column and is evaluated independently of
// the others; a null cell fails its predicate. A row is valid only when
// every predicate passes.

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	salarioPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)
	dnPattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	digitPattern   = regexp.MustCompile(`[0-9]`)
	cfPattern      = regexp.MustCompile(`^.{16}$`)
)

// Flag names of the derived validity columns.
const (
	FlagSalario = "valid_salario"
	FlagDN      = "valid_dn"
	FlagNome    = "valid_nome"
	FlagCF      = "valid_cf"
)

// CheckFunc tests the text of one cell. present is false for null cells.
type CheckFunc func(value string, present bool) bool

// Predicate is a named, field-local validation rule.
type Predicate struct {
	Column string    // Column the rule reads
	Flag   string    // Name of the derived boolean
	Check  CheckFunc // Rule itself
}

// DefaultPredicates are the employee record rules, in evaluation order.
var DefaultPredicates = []Predicate{
	{Column: ColSalario, Flag: FlagSalario, Check: ValidSalario},
	{Column: ColDN, Flag: FlagDN, Check: ValidDN},
	{Column: ColNome, Flag: FlagNome, Check: ValidNome},
	{Column: ColCF, Flag: FlagCF, Check: ValidCF},
}

// ValidSalario accepts an unsigned integer or decimal numeral greater than zero.
func ValidSalario(s string, present bool) bool {
	if !present || !salarioPattern.MatchString(s) {
		return false
	}
	f, err := ParseSalario(s)
	return err == nil && f > 0
}

// ValidDN accepts YYYY-MM-DD with month in 1..12 and day in 1..31.
// The day is range-checked only; it is not checked against the month.
func ValidDN(s string, present bool) bool {
	if !present || !dnPattern.MatchString(s) {
		return false
	}
	m, err := strconv.Atoi(s[5:7])
	if err != nil || m < 1 || m > 12 {
		return false
	}
	d, err := strconv.Atoi(s[8:10])
	return err == nil && d >= 1 && d <= 31
}

// ValidNome accepts any non-empty name without digits.
func ValidNome(s string, present bool) bool {
	return present && s != "" && !digitPattern.MatchString(s)
}

// ValidCF accepts a tax code of exactly 16 characters.
func ValidCF(s string, present bool) bool {
	return present && cfPattern.MatchString(s)
}

// Flags holds the outcome of each predicate for one row, keyed by flag name.
type Flags map[string]bool

// Valid reports whether every predicate passed.
func (f Flags) Valid() bool {
	for _, ok := range f {
		if !ok {
			return false
		}
	}
	return true
}

// RowValidator evaluates an ordered list of predicates against rows.
type RowValidator struct {
	predicates []Predicate
}

// NewRowValidator creates a validator for the given predicates.
func NewRowValidator(predicates []Predicate) *RowValidator {
	return &RowValidator{predicates: predicates}
}

// DefaultValidator returns a validator over DefaultPredicates.
func DefaultValidator() *RowValidator {
	return NewRowValidator(DefaultPredicates)
}

// Predicates returns the validator's rules in evaluation order.
func (v *RowValidator) Predicates() []Predicate {
	out := make([]Predicate, len(v.predicates))
	copy(out, v.predicates)
	return out
}

// ValidateRow evaluates every predicate against row.
func (v *RowValidator) ValidateRow(row Row) Flags {
	flags := make(Flags, len(v.predicates))
	for _, p := range v.predicates {
		s, present := CellText(row[p.Column])
		flags[p.Flag] = p.Check(s, present)
	}
	return flags
}

// ValidateHeaders checks that headers name exactly the columns in specs
// (trimmed, case-insensitive, any order). Returns the header index.
func ValidateHeaders(headers []string, specs []FieldSpec) (HeaderIndex, error) {
	idx := MakeHeaderIndex(headers)
	if len(idx) != len(headers) {
		return nil, fmt.Errorf("duplicate column in header %v", headers)
	}

	var missing []string
	for _, spec := range specs {
		if !spec.Required {
			continue
		}
		if _, ok := idx[strings.ToLower(spec.Name)]; !ok {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	if len(headers) != len(specs) {
		var extra []string
		for _, h := range headers {
			if !isSpecColumn(h, specs) {
				extra = append(extra, strings.TrimSpace(h))
			}
		}
		return nil, fmt.Errorf("expected %d columns, got %d (unexpected: %s)",
			len(specs), len(headers), strings.Join(extra, ", "))
	}

	return idx, nil
}

func isSpecColumn(h string, specs []FieldSpec) bool {
	for _, spec := range specs {
		if strings.EqualFold(spec.Name, strings.TrimSpace(h)) {
			return true
		}
	}
	return false
}
