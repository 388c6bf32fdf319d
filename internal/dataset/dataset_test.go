package dataset

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/internal/testutil"
	"github.com/wonny/creditpd/pkg/logger"
)

func newCodec() *Codec {
	return New(logger.Nop())
}

func TestReadRawFixture(t *testing.T) {
	records, err := newCodec().ReadRaw(strings.NewReader(testutil.TwoRowCSV))
	require.NoError(t, err)
	assert.Equal(t, testutil.TwoRowRecords(), records)
}

func TestReadRawCoercion(t *testing.T) {
	header := strings.Join(contracts.Names(contracts.RawColumns()), ",")
	row := "7,abc,1,2.5,1,34.9,0,0,0,0,0,0,1,2,3,4,5,6,1,1,1,1,1,NaN,1"

	records, err := newCodec().ReadRaw(strings.NewReader(header + "\n" + row + "\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.True(t, r.IsMissing(contracts.ColLimitBal), "unparseable number becomes missing")
	assert.True(t, r.IsMissing(contracts.ColEducation), "fractional code becomes missing")
	assert.True(t, r.IsMissing(contracts.ColPayAmt6))
	assert.False(t, r.IsMissing(contracts.ColAge))
	assert.Equal(t, 34, r.Age, "AGE truncated")
	assert.Equal(t, int64(7), r.ID)
}

func TestReadRawMissingColumn(t *testing.T) {
	csv := "ID,LIMIT_BAL\n1,20000\n"
	_, err := newCodec().ReadRaw(strings.NewReader(csv))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingColumn))

	var mce *MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Contains(t, mce.Columns, "AGE")
	assert.Contains(t, mce.Columns, "PAY_6")
	assert.NotContains(t, mce.Columns, "ID")
}

func TestReadRawHeaderOnly(t *testing.T) {
	header := strings.Join(contracts.Names(contracts.RawColumns()), ",")
	records, err := newCodec().ReadRaw(strings.NewReader(header + "\n"))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadRawEmptyInput(t *testing.T) {
	_, err := newCodec().ReadRaw(strings.NewReader(""))
	assert.Error(t, err)
}

func TestWriteRawThenRead(t *testing.T) {
	c := newCodec()
	in := testutil.TwoRowRecords()
	in[1].SetMissing(contracts.ColBillAmt3)

	var buf bytes.Buffer
	require.NoError(t, c.WriteRaw(&buf, in))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(contracts.Names(contracts.RawColumns()), ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,20000,1,2,1,25,"))

	out, err := c.ReadRaw(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFeatureFileRoundTrip(t *testing.T) {
	c := newCodec()
	path := filepath.Join(t.TempDir(), "nested", "featured.csv")

	in := []contracts.FeatureRecord{
		{LimitBal: 20000, Sex: 1, Education: 2, Marriage: 1, PayWeight: -1, AgeBinned: 0, BillTotal: 7704.5, PayTotal: 689, PayRatio: 689 / 7704.5},
	}
	in[0].Set(contracts.ColAgeBinned, math.NaN())

	require.NoError(t, c.WriteFeaturesFile(path, in))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ID,")
	assert.NotContains(t, string(data), ",AGE,")

	out, err := c.ReadFeaturesFile(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestWriteEmptyBatchWritesHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, newCodec().WriteFeatures(&buf, nil))
	assert.Equal(t, strings.Join(contracts.Names(contracts.FeatureColumns()), ",")+"\n", buf.String())
}

func TestReadRawFileNotFound(t *testing.T) {
	_, err := newCodec().ReadRawFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadRawHugeIntegersAreMissing(t *testing.T) {
	header := strings.Join(contracts.Names(contracts.RawColumns()), ",")
	row := "100000000000000000,20000,1,2,1,1e20,1e20,0,0,0,0,-9e18,1,2,3,4,5,6,1,1,1,1,1,1,0"

	records, err := newCodec().ReadRaw(strings.NewReader(header + "\n" + row + "\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	for _, c := range []contracts.Column{contracts.ColID, contracts.ColAge, contracts.ColPay0, contracts.ColPay6} {
		assert.True(t, r.IsMissing(c), "%s beyond 2^53 must be missing", c)
	}
	assert.Equal(t, 0, r.Pay[0])
	assert.False(t, r.IsMissing(contracts.ColPay2))
}

func TestCoerceIntegerBound(t *testing.T) {
	assert.Equal(t, float64(maxExactInt), coerce(contracts.ColID, "9007199254740992"))
	assert.True(t, math.IsNaN(coerce(contracts.ColPay0, "1e20")))
	assert.True(t, math.IsNaN(coerce(contracts.ColPay0, "-1e20")))
	assert.Equal(t, 1e20, coerce(contracts.ColBillAmt1, "1e20"), "real columns are unbounded")
}

func TestReadSourceWithoutLabel(t *testing.T) {
	cols := contracts.EngineeringColumns()
	header := strings.Join(contracts.Names(cols), ",")
	row := "1,25,0,2,1,0,-1,-1,3913.1,3102.3,689.1,0,0,0,0,689,0,0,0,0"

	records, err := newCodec().ReadSource(strings.NewReader(header + "\n" + row + "\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, 25, r.Age)
	assert.Equal(t, [6]int{0, 2, 1, 0, -1, -1}, r.Pay)
	for _, c := range []contracts.Column{contracts.ColDefault, contracts.ColLimitBal, contracts.ColSex} {
		assert.True(t, r.IsMissing(c), "absent %s must be missing", c)
	}

	_, err = newCodec().ReadSource(strings.NewReader("ID,AGE\n1,25\n"))
	assert.True(t, errors.Is(err, ErrMissingColumn))
}
