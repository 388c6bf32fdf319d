package features

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/prepare"
	"github.com/wonny/creditpd/internal/testutil"
	"github.com/wonny/creditpd/internal/validation"
	"github.com/wonny/creditpd/pkg/logger"
)

func TestAgeBin(t *testing.T) {
	tests := []struct {
		age    int
		want   int
		wantOK bool
	}{
		{20, 0, false},
		{21, 0, true},
		{30, 0, true},
		{31, 1, true},
		{40, 1, true},
		{45, 2, true},
		{60, 3, true},
		{61, 4, true},
		{80, 4, true},
		{81, 0, false},
		{18, 0, false},
	}

	for _, tt := range tests {
		got, ok := AgeBin(tt.age)
		assert.Equal(t, tt.wantOK, ok, "age %d", tt.age)
		if tt.wantOK {
			assert.Equal(t, tt.want, got, "age %d", tt.age)
		}
	}
}

func TestEngineerFixture(t *testing.T) {
	out := Engineer(testutil.TwoRowRecords())
	require.Len(t, out, 2)

	// row 1: PAY = 0,2,1,0,-1,-1
	assert.Equal(t, -1, out[0].PayWeight)
	assert.Equal(t, 0, out[0].AgeBinned)
	assert.InDelta(t, 7704.5, out[0].BillTotal, 1e-9)
	assert.InDelta(t, 689.0, out[0].PayTotal, 1e-9)
	assert.InDelta(t, 689.0/7704.5, out[0].PayRatio, 1e-12)

	// row 2: PAY = -1,2,1,0,-1,-1
	assert.Equal(t, 0, out[1].PayWeight)
	assert.Equal(t, 1, out[1].AgeBinned)
	assert.InDelta(t, 11000.3, out[1].BillTotal, 1e-9)
	assert.InDelta(t, 6000.0, out[1].PayTotal, 1e-9)
}

func TestEngineerPayRatioRule(t *testing.T) {
	in := testutil.SyntheticRecords(200, 11)
	in[0].BillAmt = [6]float64{}
	in[1].BillAmt = [6]float64{-100, 50, 0, 0, 0, 0}

	out := Engineer(in)
	for i, f := range out {
		if f.BillTotal > 0 {
			assert.Equal(t, f.PayTotal/f.BillTotal, f.PayRatio, "row %d", i)
		} else {
			assert.Equal(t, 0.0, f.PayRatio, "row %d", i)
		}
	}
	assert.Equal(t, 0.0, out[0].PayRatio)
	assert.Equal(t, 0.0, out[1].PayRatio)
}

func TestEngineerSkipsMissingTerms(t *testing.T) {
	in := testutil.TwoRowRecords()
	in[0].SetMissing(contracts.ColBillAmt1)
	in[0].SetMissing(contracts.ColPay2)
	in[0].SetMissing(contracts.ColAge)

	out := Engineer(in)
	assert.InDelta(t, 3791.4, out[0].BillTotal, 1e-9)
	assert.Equal(t, 1, out[0].PayWeight)
	assert.True(t, out[0].Missing.Has(contracts.ColAgeBinned))
	assert.True(t, out[0].Missing.Has(contracts.ColBillAmt1))
	assert.False(t, out[0].Missing.Has(contracts.ColAge), "AGE is not a feature column")
}

func TestEngineerAgeOutsideBinsIsMissing(t *testing.T) {
	in := testutil.TwoRowRecords()
	in[0].Age = 19
	in[1].Age = 85

	out := Engineer(in)
	assert.True(t, out[0].Missing.Has(contracts.ColAgeBinned))
	assert.True(t, out[1].Missing.Has(contracts.ColAgeBinned))
}

func TestPrepareValidateEngineerEndToEnd(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "raw.csv")
	prepared := filepath.Join(dir, "processed", "prepared.csv")
	featured := filepath.Join(dir, "processed", "featured.csv")
	require.NoError(t, os.WriteFile(raw, []byte(testutil.TwoRowCSV), 0o644))

	codec := dataset.New(logger.Nop())
	ctx := context.Background()

	_, err := prepare.NewPreparer(codec, logger.Nop()).Run(ctx, raw, prepared)
	require.NoError(t, err)

	records, err := codec.ReadRawFile(prepared)
	require.NoError(t, err)
	_, err = validation.Validate(records)
	require.NoError(t, err)

	res, err := NewBuilder(codec, logger.Nop()).Run(ctx, prepared, featured)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)

	data, err := os.ReadFile(featured)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	header := strings.Split(lines[0], ",")
	assert.NotContains(t, header, "AGE")
	assert.NotContains(t, header, "ID")
	for _, name := range []string{"PAY_WEIGHT", "AGE_BINNED", "BILL_TOTAL", "PAY_TOTAL", "PAY_RATIO"} {
		assert.Contains(t, header, name)
	}

	out, err := codec.ReadFeaturesFile(featured)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, f := range out {
		for _, c := range []contracts.Column{contracts.ColPayWeight, contracts.ColAgeBinned, contracts.ColBillTotal, contracts.ColPayTotal, contracts.ColPayRatio} {
			_, ok := f.Value(c)
			assert.True(t, ok, "%s must be numeric", c)
		}
	}
}

func TestBuilderRunMissingColumn(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "prepared.csv")
	require.NoError(t, os.WriteFile(in, []byte("ID,LIMIT_BAL,SEX\n1,20000,1\n"), 0o644))

	_, err := NewBuilder(dataset.New(logger.Nop()), logger.Nop()).Run(context.Background(), in, filepath.Join(dir, "out.csv"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrMissingColumn))
}

func TestBuilderRunUnlabelledBatch(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "scoring.csv")
	featured := filepath.Join(dir, "featured.csv")
	csv := "ID,AGE,PAY_0,PAY_2,PAY_3,PAY_4,PAY_5,PAY_6,BILL_AMT1,BILL_AMT2,BILL_AMT3,BILL_AMT4,BILL_AMT5,BILL_AMT6,PAY_AMT1,PAY_AMT2,PAY_AMT3,PAY_AMT4,PAY_AMT5,PAY_AMT6\n" +
		"1,25,0,2,1,0,-1,-1,3913.1,3102.3,689.1,0,0,0,0,689,0,0,0,0\n"
	require.NoError(t, os.WriteFile(in, []byte(csv), 0o644))

	codec := dataset.New(logger.Nop())
	res, err := NewBuilder(codec, logger.Nop()).Run(context.Background(), in, featured)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)

	out, err := codec.ReadFeaturesFile(featured)
	require.NoError(t, err)
	require.Len(t, out, 1)
	f := out[0]
	assert.Equal(t, -1, f.PayWeight)
	assert.Equal(t, 0, f.AgeBinned)
	assert.InDelta(t, 689.0/7704.5, f.PayRatio, 1e-12)
	for _, c := range []contracts.Column{contracts.ColDefault, contracts.ColLimitBal, contracts.ColSex, contracts.ColEducation, contracts.ColMarriage} {
		assert.True(t, f.Missing.Has(c), "absent %s carries through as missing", c)
	}
}
