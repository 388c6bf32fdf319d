package validation

import (
	"fmt"
	"strconv"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/pkg/stats"
)

// MinMedianLimitBal is the lower bound (exclusive) on a batch's median LIMIT_BAL
const MinMedianLimitBal = 10000.0

// Check is a per-cell rule
type Check struct {
	Name string
	Test func(v float64) bool
}

// ColumnRule binds checks to one column. Every column is non-nullable.
type ColumnRule struct {
	Column contracts.Column
	Checks []Check
	Unique bool
}

// FrameCheck is a rule over the whole batch. It returns the offending
// row indices and failure cases; ok is false when the check fails.
type FrameCheck struct {
	Name string
	Run  func(records []contracts.Record) (rows []int, cases []string, ok bool)
}

// Schema is the declarative credit batch schema
type Schema struct {
	Columns []ColumnRule
	Checks  []FrameCheck
}

func greaterThan(min float64) Check {
	return Check{
		Name: "greater_than(" + formatNum(min) + ")",
		Test: func(v float64) bool { return v > min },
	}
}

func greaterOrEqual(min float64) Check {
	return Check{
		Name: "greater_than_or_equal_to(" + formatNum(min) + ")",
		Test: func(v float64) bool { return v >= min },
	}
}

func lessOrEqual(max float64) Check {
	return Check{
		Name: "less_than_or_equal_to(" + formatNum(max) + ")",
		Test: func(v float64) bool { return v <= max },
	}
}

func isIn(allowed ...int) Check {
	set := make(map[float64]bool, len(allowed))
	name := "isin(["
	for i, a := range allowed {
		set[float64(a)] = true
		if i > 0 {
			name += ", "
		}
		name += strconv.Itoa(a)
	}
	return Check{
		Name: name + "])",
		Test: func(v float64) bool { return set[v] },
	}
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CreditSchema returns the schema every prepared credit batch must satisfy
// ⭐ SSOT: 컬럼별 규칙과 교차 검증은 여기서만 정의
func CreditSchema() *Schema {
	payStatus := isIn(-1, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9)

	cols := []ColumnRule{
		{Column: contracts.ColID, Checks: []Check{greaterThan(0)}, Unique: true},
		{Column: contracts.ColLimitBal, Checks: []Check{greaterOrEqual(0)}},
		{Column: contracts.ColSex, Checks: []Check{isIn(1, 2)}},
		{Column: contracts.ColEducation, Checks: []Check{isIn(1, 2, 3, 4, 5, 6)}},
		{Column: contracts.ColMarriage, Checks: []Check{isIn(1, 2, 3)}},
		{Column: contracts.ColAge, Checks: []Check{greaterOrEqual(18), lessOrEqual(100)}},
	}
	for _, c := range contracts.PayColumns {
		cols = append(cols, ColumnRule{Column: c, Checks: []Check{payStatus}})
	}
	// BILL_AMT sign is unconstrained: negative balances are credits
	for _, c := range contracts.BillAmtColumns {
		cols = append(cols, ColumnRule{Column: c})
	}
	for _, c := range contracts.PayAmtColumns {
		cols = append(cols, ColumnRule{Column: c, Checks: []Check{greaterOrEqual(0)}})
	}
	cols = append(cols, ColumnRule{Column: contracts.ColDefault, Checks: []Check{isIn(0, 1)}})

	return &Schema{
		Columns: cols,
		Checks: []FrameCheck{
			{Name: "married_adult", Run: marriedAdult},
			{Name: "median_limit_bal", Run: medianLimitBal},
		},
	}
}

// marriedAdult: MARRIAGE == 1 implies AGE >= 18
func marriedAdult(records []contracts.Record) ([]int, []string, bool) {
	var rows []int
	var cases []string
	for i := range records {
		r := &records[i]
		if r.IsMissing(contracts.ColMarriage) || r.IsMissing(contracts.ColAge) {
			continue
		}
		if r.Marriage == 1 && r.Age < 18 {
			rows = append(rows, i)
			cases = append(cases, fmt.Sprintf("MARRIAGE=1 AGE=%d", r.Age))
		}
	}
	return rows, cases, len(rows) == 0
}

// medianLimitBal: the batch median of LIMIT_BAL must exceed MinMedianLimitBal.
// An empty batch has no median and fails.
func medianLimitBal(records []contracts.Record) ([]int, []string, bool) {
	vals := make([]float64, len(records))
	for i := range records {
		vals[i], _ = records[i].Value(contracts.ColLimitBal)
	}
	median, ok := stats.Median(vals)
	if !ok {
		return nil, []string{"median undefined"}, false
	}
	if median > MinMedianLimitBal {
		return nil, nil, true
	}
	return nil, []string{"median=" + formatNum(median)}, false
}
