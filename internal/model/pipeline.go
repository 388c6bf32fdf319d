package model

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/creditpd/internal/contracts"
	"github.com/wonny/creditpd/internal/preprocess"
)

func init() {
	gob.Register(&LogisticRegression{})
	gob.Register(&RandomForest{})
	gob.Register(&Booster{})
}

// Pipeline is the preprocessor and a classifier fitted as one unit.
// Fit learns the preprocessing statistics from the training rows only.
type Pipeline struct {
	Family   Family
	Params   Params
	Features []string
	Pre      *preprocess.Preprocessor
	Clf      Classifier
}

// NewPipeline builds an unfitted pipeline over the model input columns
func NewPipeline(family Family, params Params, seed int64) (*Pipeline, error) {
	clf, err := New(family, params, seed)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = Params{}
	}
	features := contracts.Names(contracts.ModelInputColumns())
	return &Pipeline{
		Family:   family,
		Params:   params,
		Features: features,
		Pre:      preprocess.New(features),
		Clf:      clf,
	}, nil
}

// Fit fits the preprocessor then the classifier. NaN cells of X are missing.
func (p *Pipeline) Fit(X mat.Matrix, y []float64) error {
	Xt, err := p.Pre.FitTransform(X)
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	if err := p.Clf.Fit(Xt, y); err != nil {
		return fmt.Errorf("fit %s: %w", p.Family, err)
	}
	return nil
}

// Predict returns hard 0/1 labels
func (p *Pipeline) Predict(X mat.Matrix) ([]int, error) {
	Xt, err := p.Pre.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	return p.Clf.Predict(Xt)
}

// PredictProba returns P(default) per row, or ErrNoProba
func (p *Pipeline) PredictProba(X mat.Matrix) ([]float64, error) {
	pc, ok := p.Clf.(ProbClassifier)
	if !ok {
		return nil, ErrNoProba
	}
	Xt, err := p.Pre.Transform(X)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	return pc.PredictProba(Xt)
}

// Evaluate scores the pipeline on a hold-out set
func (p *Pipeline) Evaluate(X mat.Matrix, y []float64) (Metrics, error) {
	var m Metrics
	pred, err := p.Predict(X)
	if err != nil {
		return m, err
	}
	m.Precision, m.Recall, m.F1 = PrecisionRecallF1(y, pred)

	proba, err := p.PredictProba(X)
	if err != nil {
		return m, err
	}
	if m.ROCAUC, err = ROCAUC(y, proba); err != nil {
		return m, err
	}
	return m, nil
}

// Matrix builds the model input matrix and label vector of records
func Matrix(records []contracts.FeatureRecord) (*mat.Dense, []float64) {
	cols := contracts.ModelInputColumns()
	if len(records) == 0 {
		return &mat.Dense{}, nil
	}
	X := mat.NewDense(len(records), len(cols), nil)
	y := make([]float64, len(records))
	for i := range records {
		X.SetRow(i, records[i].InputVector())
		y[i] = float64(records[i].Default)
	}
	return X, y
}

// Bundle is the persisted artifact served by the prediction endpoint
type Bundle struct {
	Pipeline  *Pipeline
	Metrics   Metrics
	TrainedAt time.Time
	RunID     string
}

// Save writes the bundle to path with gob, creating parent directories
func (b *Bundle) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bundle file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(b); err != nil {
		f.Close()
		return fmt.Errorf("encode bundle: %w", err)
	}
	return f.Close()
}

// LoadBundle reads a bundle written by Save
func LoadBundle(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()
	return DecodeBundle(f)
}

// DecodeBundle reads a gob-encoded bundle
func DecodeBundle(r io.Reader) (*Bundle, error) {
	var b Bundle
	if err := gob.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode bundle: %w", err)
	}
	if b.Pipeline == nil || b.Pipeline.Pre == nil || b.Pipeline.Clf == nil {
		return nil, fmt.Errorf("decode bundle: incomplete pipeline")
	}
	return &b, nil
}
