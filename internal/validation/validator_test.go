package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/internal/testutil"
)

func requireSchemaErrors(t *testing.T, err error) *SchemaErrors {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))
	var se *SchemaErrors
	require.True(t, errors.As(err, &se))
	return se
}

func findFailure(se *SchemaErrors, column, check string) *Failure {
	for i := range se.Failures {
		if se.Failures[i].Column == column && se.Failures[i].Check == check {
			return &se.Failures[i]
		}
	}
	return nil
}

func TestValidatePassesFixture(t *testing.T) {
	in := testutil.TwoRowRecords()
	snapshot := testutil.TwoRowRecords()

	out, err := Validate(in)
	require.NoError(t, err)
	assert.Equal(t, snapshot, out, "validation must not change the batch")
	assert.Equal(t, snapshot, in)
}

func TestValidatePassesSyntheticBatch(t *testing.T) {
	in := testutil.SyntheticRecords(300, 7)
	out, err := Validate(in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestValidateRejectsAge150(t *testing.T) {
	in := testutil.TwoRowRecords()
	in[0].Age = 150

	_, err := Validate(in)
	se := requireSchemaErrors(t, err)
	f := findFailure(se, "AGE", "less_than_or_equal_to(100)")
	require.NotNil(t, f)
	assert.Equal(t, []int{0}, f.Rows)
	assert.Equal(t, []string{"150"}, f.FailureCases)
	assert.Contains(t, err.Error(), "AGE")
}

func TestValidateCollectsEveryFailure(t *testing.T) {
	in := testutil.TwoRowRecords()
	in[0].Sex = 3
	in[1].Pay[3] = -2
	in[1].PayAmt[0] = -5
	in[1].Default = 2
	in[0].SetMissing(contracts.ColBillAmt4)

	_, err := Validate(in)
	se := requireSchemaErrors(t, err)

	tests := []struct {
		column string
		check  string
		rows   []int
	}{
		{"SEX", "isin([1, 2])", []int{0}},
		{"PAY_4", "isin([-1, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9])", []int{1}},
		{"PAY_AMT1", "greater_than_or_equal_to(0)", []int{1}},
		{"default.payment.next.month", "isin([0, 1])", []int{1}},
		{"BILL_AMT4", CheckNotNullable, []int{0}},
	}
	for _, tt := range tests {
		t.Run(tt.column, func(t *testing.T) {
			f := findFailure(se, tt.column, tt.check)
			require.NotNil(t, f, "expected %s %s", tt.column, tt.check)
			assert.Equal(t, tt.rows, f.Rows)
		})
	}
	assert.Len(t, se.Failures, len(tests))
}

func TestValidateDuplicateIDs(t *testing.T) {
	in := testutil.TwoRowRecords()
	in = append(in, in[0])
	in[2].Sex = 2

	_, err := Validate(in)
	se := requireSchemaErrors(t, err)
	f := findFailure(se, "ID", CheckUnique)
	require.NotNil(t, f)
	assert.Equal(t, []int{0, 2}, f.Rows)
}

func TestValidateLowMedianLimitBal(t *testing.T) {
	in := testutil.TwoRowRecords()
	in[0].LimitBal = 5000
	in[1].LimitBal = 9000

	_, err := Validate(in)
	se := requireSchemaErrors(t, err)
	require.Len(t, se.Failures, 1, "every row is individually valid")
	assert.Equal(t, FrameScope, se.Failures[0].Column)
	assert.Equal(t, "median_limit_bal", se.Failures[0].Check)
	assert.Equal(t, []string{"median=7000"}, se.Failures[0].FailureCases)
}

func TestValidateMedianBoundaryIsExclusive(t *testing.T) {
	in := testutil.TwoRowRecords()
	in[0].LimitBal = 10000
	in[1].LimitBal = 10000

	_, err := Validate(in)
	se := requireSchemaErrors(t, err)
	assert.NotNil(t, findFailure(se, FrameScope, "median_limit_bal"))
}

func TestValidateEmptyBatch(t *testing.T) {
	_, err := Validate(nil)
	se := requireSchemaErrors(t, err)
	require.Len(t, se.Failures, 1)
	assert.Equal(t, "median_limit_bal", se.Failures[0].Check)
	assert.Equal(t, []string{"median undefined"}, se.Failures[0].FailureCases)
}

func TestValidateMarriedMinor(t *testing.T) {
	in := testutil.TwoRowRecords()
	in[0].Marriage = 1
	in[0].Age = 16

	_, err := Validate(in)
	se := requireSchemaErrors(t, err)
	assert.NotNil(t, findFailure(se, "AGE", "greater_than_or_equal_to(18)"))
	f := findFailure(se, FrameScope, "married_adult")
	require.NotNil(t, f)
	assert.Equal(t, []int{0}, f.Rows)
}

func TestValidateAllowsNegativeBills(t *testing.T) {
	in := testutil.TwoRowRecords()
	in[0].BillAmt[0] = -1500

	_, err := Validate(in)
	assert.NoError(t, err)
}

func TestSchemaErrorsColumns(t *testing.T) {
	se := &SchemaErrors{Failures: []Failure{
		{Column: "AGE", Check: "a"},
		{Column: "SEX", Check: "b"},
		{Column: "AGE", Check: "c"},
	}}
	assert.Equal(t, []string{"AGE", "SEX"}, se.Columns())
}
