// Package validation checks credit batches against the declarative schema.
// All rows and all checks are evaluated before an error is returned.
package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/pkg/stats"
)

// ErrSchema is matched by every *SchemaErrors
var ErrSchema = errors.New("schema validation failed")

// FrameScope is the Column value of a batch-level failure
const FrameScope = "DataFrameSchema"

const (
	CheckNotNullable = "not_nullable"
	CheckUnique      = "field_uniqueness"
)

// Failure is one violated rule
type Failure struct {
	Column       string   `json:"column"`
	Check        string   `json:"check"`
	Rows         []int    `json:"rows,omitempty"`
	FailureCases []string `json:"failure_cases,omitempty"`
}

// SchemaErrors carries every failure found in one pass
type SchemaErrors struct {
	Failures []Failure
}

func (e *SchemaErrors) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d failure(s)", ErrSchema, len(e.Failures))
	for _, f := range e.Failures {
		fmt.Fprintf(&b, "; %s %s", f.Column, f.Check)
		if len(f.Rows) > 0 {
			fmt.Fprintf(&b, " rows=%v", f.Rows)
		}
		if len(f.FailureCases) > 0 {
			fmt.Fprintf(&b, " cases=%v", f.FailureCases)
		}
	}
	return b.String()
}

// Unwrap supports errors.Is(err, ErrSchema)
func (e *SchemaErrors) Unwrap() error {
	return ErrSchema
}

// Columns returns the distinct columns named by the failures
func (e *SchemaErrors) Columns() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range e.Failures {
		if !seen[f.Column] {
			seen[f.Column] = true
			out = append(out, f.Column)
		}
	}
	return out
}

// Validate checks records against CreditSchema.
// On success the input slice is returned unchanged.
func Validate(records []contracts.Record) ([]contracts.Record, error) {
	return CreditSchema().Validate(records)
}

// Validate checks every row and every frame check, collecting all failures
func (s *Schema) Validate(records []contracts.Record) ([]contracts.Record, error) {
	var failures []Failure

	// 1. 컬럼 규칙
	for _, rule := range s.Columns {
		failures = append(failures, s.checkColumn(rule, records)...)
	}

	// 2. 교차 검증
	for _, fc := range s.Checks {
		rows, cases, ok := fc.Run(records)
		if ok {
			continue
		}
		failures = append(failures, Failure{
			Column:       FrameScope,
			Check:        fc.Name,
			Rows:         rows,
			FailureCases: cases,
		})
	}

	if len(failures) > 0 {
		return nil, &SchemaErrors{Failures: failures}
	}
	return records, nil
}

func (s *Schema) checkColumn(rule ColumnRule, records []contracts.Record) []Failure {
	name := rule.Column.String()
	var nullRows []int
	failedRows := make([][]int, len(rule.Checks))
	failedCases := make([][]string, len(rule.Checks))
	values := make([]float64, len(records))

	for i := range records {
		v, ok := records[i].Value(rule.Column)
		values[i] = v
		if !ok {
			nullRows = append(nullRows, i)
			continue
		}
		for j, check := range rule.Checks {
			if !check.Test(v) {
				failedRows[j] = append(failedRows[j], i)
				failedCases[j] = append(failedCases[j], formatNum(v))
			}
		}
	}

	var failures []Failure
	if len(nullRows) > 0 {
		cases := make([]string, len(nullRows))
		for i := range cases {
			cases[i] = "NaN"
		}
		failures = append(failures, Failure{Column: name, Check: CheckNotNullable, Rows: nullRows, FailureCases: cases})
	}
	for j, check := range rule.Checks {
		if len(failedRows[j]) > 0 {
			failures = append(failures, Failure{Column: name, Check: check.Name, Rows: failedRows[j], FailureCases: failedCases[j]})
		}
	}
	if rule.Unique {
		if rows, cases := duplicates(values); len(rows) > 0 {
			failures = append(failures, Failure{Column: name, Check: CheckUnique, Rows: rows, FailureCases: cases})
		}
	}
	return failures
}

// duplicates returns every row whose present value occurs more than once
func duplicates(values []float64) ([]int, []string) {
	counts := make(map[float64]int, len(values))
	for _, v := range stats.Present(values) {
		counts[v]++
	}
	var rows []int
	var cases []string
	for i, v := range values {
		if counts[v] > 1 {
			rows = append(rows, i)
			cases = append(cases, formatNum(v))
		}
	}
	return rows, cases
}
