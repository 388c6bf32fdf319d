// Package features derives model features from prepared credit records.
package features

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/pkg/logger"
)

// AgeBinEdges are the AGE bucket edges; bucket i is (edge[i], edge[i+1]]
var AgeBinEdges = []int{20, 30, 40, 50, 60, 80}

// AgeBin returns the bucket index of age. ok is false outside (20, 80].
func AgeBin(age int) (int, bool) {
	for i := 1; i < len(AgeBinEdges); i++ {
		if age > AgeBinEdges[i-1] && age <= AgeBinEdges[i] {
			return i - 1, true
		}
	}
	return 0, false
}

// PayRatio is payTotal/billTotal when billTotal > 0, else 0
func PayRatio(payTotal, billTotal float64) float64 {
	if billTotal > 0 {
		return payTotal / billTotal
	}
	return 0
}

// Engineer derives PAY_WEIGHT, AGE_BINNED, BILL_TOTAL, PAY_TOTAL and
// PAY_RATIO. ID and AGE are not carried into the output.
// Missing terms are skipped in every sum.
func Engineer(records []contracts.Record) []contracts.FeatureRecord {
	out := make([]contracts.FeatureRecord, len(records))
	for i := range records {
		out[i] = engineerOne(&records[i])
	}
	return out
}

func engineerOne(r *contracts.Record) contracts.FeatureRecord {
	f := contracts.FeatureRecord{
		LimitBal:  r.LimitBal,
		Sex:       r.Sex,
		Education: r.Education,
		Marriage:  r.Marriage,
		Pay:       r.Pay,
		BillAmt:   r.BillAmt,
		PayAmt:    r.PayAmt,
		Default:   r.Default,
	}
	for _, c := range contracts.FeatureColumns() {
		if r.IsMissing(c) {
			f.Missing = f.Missing.With(c)
		}
	}

	// 1. PAY_WEIGHT = -Σ PAY_*
	weight := 0
	for i, c := range contracts.PayColumns {
		if !r.IsMissing(c) {
			weight -= r.Pay[i]
		}
	}
	f.PayWeight = weight

	// 2. AGE_BINNED
	if bin, ok := AgeBin(r.Age); ok && !r.IsMissing(contracts.ColAge) {
		f.AgeBinned = bin
	} else {
		f.Missing = f.Missing.With(contracts.ColAgeBinned)
	}

	// 3. 합계와 비율
	f.BillTotal = sumPresent(r, contracts.BillAmtColumns, r.BillAmt)
	f.PayTotal = sumPresent(r, contracts.PayAmtColumns, r.PayAmt)
	f.PayRatio = PayRatio(f.PayTotal, f.BillTotal)

	return f
}

// sumPresent adds the present amounts exactly, so totals do not depend on
// float accumulation order
func sumPresent(r *contracts.Record, cols [6]contracts.Column, vals [6]float64) float64 {
	total := decimal.Zero
	for i, c := range cols {
		if r.IsMissing(c) {
			continue
		}
		total = total.Add(decimal.NewFromFloat(vals[i]))
	}
	return total.InexactFloat64()
}

// Result summarizes one file-level feature run
type Result struct {
	Rows         int
	MissingBins  int
	ZeroBillRows int
}

// Builder runs Engineer over CSV files
type Builder struct {
	codec *dataset.Codec
	log   *logger.Logger
}

// NewBuilder creates a Builder
func NewBuilder(codec *dataset.Codec, log *logger.Logger) *Builder {
	return &Builder{codec: codec, log: log.Component("features")}
}

// Run reads the prepared batch at in and writes its features to out.
// Only the PAY, BILL_AMT, PAY_AMT, AGE and ID columns are required; a batch
// lacking one fails with dataset.ErrMissingColumn. Other absent columns,
// the label included, are written as missing cells.
func (b *Builder) Run(ctx context.Context, in, out string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := b.codec.ReadSourceFile(in)
	if err != nil {
		return nil, fmt.Errorf("load prepared batch: %w", err)
	}

	featured := Engineer(records)

	if err := b.codec.WriteFeaturesFile(out, featured); err != nil {
		return nil, fmt.Errorf("write feature batch: %w", err)
	}

	res := &Result{Rows: len(featured)}
	for i := range featured {
		if featured[i].Missing.Has(contracts.ColAgeBinned) {
			res.MissingBins++
		}
		if featured[i].BillTotal <= 0 {
			res.ZeroBillRows++
		}
	}
	b.log.WithFields(map[string]interface{}{
		"input":        in,
		"output":       out,
		"rows":         res.Rows,
		"missing_bins": res.MissingBins,
		"zero_bill":    res.ZeroBillRows,
	}).Info("Features engineered")

	return res, nil
}
