// Package prepare cleans raw credit batches.
package prepare

import (
	"context"
	"fmt"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/pkg/logger"
)

const (
	// EducationOther is the code unknown EDUCATION sentinels map to
	EducationOther = 6
	// MarriageOther is the code unknown MARRIAGE sentinels map to
	MarriageOther = 3
	// PayStatusFloor is the lowest valid payment-status code
	PayStatusFloor = -1
)

// Prepare returns a cleaned copy of records. It never fails on data quality.
//
// Sentinel 0 codes of EDUCATION and MARRIAGE are remapped, payment statuses
// are clipped to PayStatusFloor, then exact duplicates are dropped keeping
// the first occurrence. Deduplicating after normalization makes
// Prepare(Prepare(x)) == Prepare(x). Numeric coercion already happened when
// the batch was decoded.
func Prepare(records []contracts.Record) []contracts.Record {
	seen := make(map[contracts.Record]struct{}, len(records))
	out := make([]contracts.Record, 0, len(records))

	for _, r := range records {
		normalize(&r)
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

func normalize(r *contracts.Record) {
	if !r.IsMissing(contracts.ColEducation) && r.Education == 0 {
		r.Education = EducationOther
	}
	if !r.IsMissing(contracts.ColMarriage) && r.Marriage == 0 {
		r.Marriage = MarriageOther
	}
	for i, c := range contracts.PayColumns {
		if !r.IsMissing(c) && r.Pay[i] < PayStatusFloor {
			r.Pay[i] = PayStatusFloor
		}
	}
}

// Result summarizes one file-level preparation
type Result struct {
	InputRows  int
	OutputRows int
}

// Preparer runs Prepare over CSV files
type Preparer struct {
	codec *dataset.Codec
	log   *logger.Logger
}

// NewPreparer creates a Preparer
func NewPreparer(codec *dataset.Codec, log *logger.Logger) *Preparer {
	return &Preparer{codec: codec, log: log.Component("prepare")}
}

// Run reads the raw batch at in, prepares it and writes it to out
func (p *Preparer) Run(ctx context.Context, in, out string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := p.codec.ReadRawFile(in)
	if err != nil {
		return nil, fmt.Errorf("load raw batch: %w", err)
	}

	prepared := Prepare(records)

	if err := p.codec.WriteRawFile(out, prepared); err != nil {
		return nil, fmt.Errorf("write prepared batch: %w", err)
	}

	res := &Result{InputRows: len(records), OutputRows: len(prepared)}
	p.log.WithFields(map[string]interface{}{
		"input":      in,
		"output":     out,
		"rows_in":    res.InputRows,
		"rows_out":   res.OutputRows,
		"duplicates": res.InputRows - res.OutputRows,
	}).Info("Batch prepared")

	return res, nil
}
