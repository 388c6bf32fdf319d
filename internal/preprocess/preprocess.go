// Package preprocess builds the column-wise transform in front of every
// classifier: numeric columns are median-imputed then standardized,
// categorical columns are mode-imputed then one-hot encoded.
package preprocess

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/creditpd/pkg/stats"
)

// CategoricalFeatures is the fixed categorical column set
var CategoricalFeatures = []string{"SEX", "EDUCATION", "MARRIAGE", "AGE_BINNED"}

var (
	ErrNotFitted = errors.New("preprocessor not fitted")
	ErrNoRows    = errors.New("no rows to fit")
)

// Preprocessor holds the statistics learned at Fit time.
// Fields are exported for gob persistence.
type Preprocessor struct {
	Features       []string
	NumericIdx     []int
	CategoricalIdx []int

	Medians []float64
	Means   []float64
	Scales  []float64

	Modes []float64
	Vocab [][]float64 // sorted categories per categorical column

	Fitted bool
}

// New partitions featureNames into numeric and categorical columns.
// Categorical columns absent from featureNames are skipped.
func New(featureNames []string) *Preprocessor {
	isCat := make(map[string]bool, len(CategoricalFeatures))
	for _, c := range CategoricalFeatures {
		isCat[c] = true
	}

	p := &Preprocessor{Features: append([]string(nil), featureNames...)}
	for i, name := range featureNames {
		if !isCat[name] {
			p.NumericIdx = append(p.NumericIdx, i)
		}
	}
	// categorical block follows the fixed order, not the input order
	for _, c := range CategoricalFeatures {
		for i, name := range featureNames {
			if name == c {
				p.CategoricalIdx = append(p.CategoricalIdx, i)
			}
		}
	}
	return p
}

func column(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	col := make([]float64, r)
	for i := 0; i < r; i++ {
		col[i] = X.At(i, j)
	}
	return col
}

func (p *Preprocessor) checkWidth(X mat.Matrix) error {
	if _, c := X.Dims(); c != len(p.Features) {
		return fmt.Errorf("expected %d feature columns, got %d", len(p.Features), c)
	}
	return nil
}

// Fit learns imputation, scaling and vocabulary from training rows only.
// NaN cells are missing.
func (p *Preprocessor) Fit(X mat.Matrix) error {
	if r, _ := X.Dims(); r == 0 {
		return ErrNoRows
	}
	if err := p.checkWidth(X); err != nil {
		return err
	}

	p.Medians = make([]float64, len(p.NumericIdx))
	p.Means = make([]float64, len(p.NumericIdx))
	p.Scales = make([]float64, len(p.NumericIdx))
	for k, j := range p.NumericIdx {
		col := column(X, j)
		median, ok := stats.Median(col)
		if !ok {
			// all missing: impute 0, identity scale
			p.Medians[k], p.Means[k], p.Scales[k] = 0, 0, 1
			continue
		}
		for i := range col {
			if math.IsNaN(col[i]) {
				col[i] = median
			}
		}
		mean, std, _ := stats.MeanStd(col)
		if std == 0 {
			std = 1
		}
		p.Medians[k], p.Means[k], p.Scales[k] = median, mean, std
	}

	p.Modes = make([]float64, len(p.CategoricalIdx))
	p.Vocab = make([][]float64, len(p.CategoricalIdx))
	for k, j := range p.CategoricalIdx {
		col := column(X, j)
		mode, ok := stats.Mode(col)
		if !ok {
			p.Modes[k] = math.NaN()
			p.Vocab[k] = nil
			continue
		}
		for i := range col {
			if math.IsNaN(col[i]) {
				col[i] = mode
			}
		}
		p.Modes[k] = mode
		p.Vocab[k] = stats.Unique(col)
	}

	p.Fitted = true
	return nil
}

// Width is the number of encoded output columns
func (p *Preprocessor) Width() int {
	w := len(p.NumericIdx)
	for _, v := range p.Vocab {
		w += len(v)
	}
	return w
}

// Transform applies the fitted statistics unchanged.
// Unseen categories encode as all zeros.
func (p *Preprocessor) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !p.Fitted {
		return nil, ErrNotFitted
	}
	rows, _ := X.Dims()
	width := p.Width()
	if rows == 0 || width == 0 {
		return &mat.Dense{}, nil
	}
	if err := p.checkWidth(X); err != nil {
		return nil, err
	}
	out := mat.NewDense(rows, width, nil)

	for i := 0; i < rows; i++ {
		for k, j := range p.NumericIdx {
			v := X.At(i, j)
			if math.IsNaN(v) {
				v = p.Medians[k]
			}
			out.Set(i, k, (v-p.Means[k])/p.Scales[k])
		}

		offset := len(p.NumericIdx)
		for k, j := range p.CategoricalIdx {
			v := X.At(i, j)
			if math.IsNaN(v) {
				v = p.Modes[k]
			}
			for m, cat := range p.Vocab[k] {
				if v == cat {
					out.Set(i, offset+m, 1)
				}
			}
			offset += len(p.Vocab[k])
		}
	}
	return out, nil
}

// FitTransform fits on X and transforms it
func (p *Preprocessor) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// OutputNames lists the encoded column names, numeric block first
func (p *Preprocessor) OutputNames() []string {
	names := make([]string, 0, p.Width())
	for _, j := range p.NumericIdx {
		names = append(names, p.Features[j])
	}
	for k, j := range p.CategoricalIdx {
		for _, cat := range p.Vocab[k] {
			names = append(names, p.Features[j]+"_"+strconv.FormatFloat(cat, 'f', -1, 64))
		}
	}
	return names
}
