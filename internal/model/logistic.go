package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// LogisticRegression is L2-regularized logistic regression with balanced
// class weights: minimizes Σ wᵢ·logloss(i) + ‖β‖²/(2C). The intercept is
// not penalized.
type LogisticRegression struct {
	C       float64
	Solver  string // lbfgs | cg
	MaxIter int

	Coef      []float64
	Intercept float64
}

// NewLogisticRegression returns a model with C=1, lbfgs, 1000 iterations
func NewLogisticRegression() *LogisticRegression {
	return &LogisticRegression{C: 1, Solver: "lbfgs", MaxIter: 1000}
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

// logLoss1p is log(1+exp(z)) without overflow
func logLoss1p(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}

// balancedWeights gives each class total weight n/2
func balancedWeights(y []float64) []float64 {
	var pos float64
	for _, v := range y {
		pos += v
	}
	n := float64(len(y))
	neg := n - pos
	w := make([]float64, len(y))
	for i, v := range y {
		if v == 1 {
			w[i] = n / (2 * pos)
		} else {
			w[i] = n / (2 * neg)
		}
	}
	return w
}

func (m *LogisticRegression) method() (optimize.Method, error) {
	switch m.Solver {
	case "", "lbfgs":
		return &optimize.LBFGS{}, nil
	case "cg":
		return &optimize.CG{}, nil
	default:
		return nil, fmt.Errorf("%w: solver %q", ErrInvalidParam, m.Solver)
	}
}

// Fit minimizes the weighted penalized log-loss
func (m *LogisticRegression) Fit(X mat.Matrix, y []float64) error {
	if err := checkXY(X, y); err != nil {
		return err
	}
	if m.C <= 0 {
		return fmt.Errorf("%w: C must be > 0", ErrInvalidParam)
	}
	method, err := m.method()
	if err != nil {
		return err
	}

	rows := denseRows(X)
	_, p := X.Dims()
	w := balancedWeights(y)
	penalty := 1 / (2 * m.C)

	// x = [β₀, β₁..βₚ]
	linear := func(x []float64, row []float64) float64 {
		return x[0] + floats.Dot(x[1:], row)
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			var loss float64
			for i, row := range rows {
				z := linear(x, row)
				if y[i] == 1 {
					loss += w[i] * logLoss1p(-z)
				} else {
					loss += w[i] * logLoss1p(z)
				}
			}
			return loss + penalty*floats.Dot(x[1:], x[1:])
		},
		Grad: func(grad, x []float64) {
			for j := range grad {
				grad[j] = 0
			}
			for i, row := range rows {
				r := w[i] * (sigmoid(linear(x, row)) - y[i])
				grad[0] += r
				floats.AddScaled(grad[1:], r, row)
			}
			floats.AddScaled(grad[1:], 2*penalty, x[1:])
		},
	}

	maxIter := m.MaxIter
	if maxIter <= 0 {
		maxIter = 1000
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: 1e-6,
	}

	x0 := make([]float64, p+1)
	result, err := optimize.Minimize(problem, x0, settings, method)
	if result == nil {
		return fmt.Errorf("logistic regression: %w", err)
	}
	// iteration limits still leave a usable optimum
	m.Intercept = result.X[0]
	m.Coef = append([]float64(nil), result.X[1:]...)
	return nil
}

// PredictProba returns P(y=1) per row
func (m *LogisticRegression) PredictProba(X mat.Matrix) ([]float64, error) {
	if m.Coef == nil {
		return nil, ErrNotFitted
	}
	r, c := X.Dims()
	if c != len(m.Coef) {
		return nil, fmt.Errorf("expected %d columns, got %d", len(m.Coef), c)
	}
	out := make([]float64, r)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out[i] = sigmoid(m.Intercept + floats.Dot(m.Coef, row))
	}
	return out, nil
}

// Predict thresholds PredictProba at 0.5
func (m *LogisticRegression) Predict(X mat.Matrix) ([]int, error) {
	return predictFromProba(m, X)
}
