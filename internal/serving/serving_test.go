package serving

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/creditpd/internal/features"
	"github.com/wonny/creditpd/internal/model"
	"github.com/wonny/creditpd/internal/testutil"
	"github.com/wonny/creditpd/pkg/logger"
)

// saveBundle fits a small logistic pipeline and writes it to dir/best.gob
func saveBundle(t *testing.T, dir string, c float64) string {
	t.Helper()
	X, y := model.Matrix(features.Engineer(testutil.SyntheticRecords(120, 9)))
	p, err := model.NewPipeline(model.FamilyLogisticRegression, model.Params{"C": c}, 42)
	require.NoError(t, err)
	require.NoError(t, p.Fit(X, y))

	path := filepath.Join(dir, "best.gob")
	b := &model.Bundle{Pipeline: p, TrainedAt: time.Now()}
	require.NoError(t, b.Save(path))
	return path
}

func loadedService(t *testing.T) *Service {
	t.Helper()
	path := saveBundle(t, t.TempDir(), 1)
	reg := NewRegistry(path, logger.Nop())
	_, err := reg.Reload(context.Background())
	require.NoError(t, err)
	return NewService(reg, nil, time.Minute, logger.Nop())
}

const oneRow = `{"LIMIT_BAL": 20000, "SEX": 2, "EDUCATION": 2, "MARRIAGE": 1,
	"PAY_0": 2, "PAY_2": 2, "PAY_3": -1, "PAY_4": -1, "PAY_5": -2, "PAY_6": -2,
	"BILL_AMT1": 3913, "BILL_AMT2": 3102, "BILL_AMT3": 689, "BILL_AMT4": 0, "BILL_AMT5": 0, "BILL_AMT6": 0,
	"PAY_AMT1": 0, "PAY_AMT2": 689, "PAY_AMT3": 0, "PAY_AMT4": 0, "PAY_AMT5": 0, "PAY_AMT6": 0,
	"PAY_WEIGHT": 4, "AGE_BINNED": 0, "BILL_TOTAL": 7704, "PAY_TOTAL": 689, "PAY_RATIO": 0.089}`

func TestPredictObject(t *testing.T) {
	s := loadedService(t)
	resp, err := s.Predict(context.Background(), []byte(oneRow))
	require.NoError(t, err)

	require.Len(t, resp.Predictions, 1)
	assert.Contains(t, []int{0, 1}, resp.Predictions[0])
	require.Len(t, resp.Probabilities, 1)
	assert.InDelta(t, 0.5, resp.Probabilities[0], 0.5)
	assert.Equal(t, "LogisticRegression", resp.Model)
	assert.Len(t, resp.Version, 12)
}

func TestPredictArrayWithMissingKeys(t *testing.T) {
	s := loadedService(t)
	resp, err := s.Predict(context.Background(), []byte(`[`+oneRow+`, {"LIMIT_BAL": 50000, "SEX": null}]`))
	require.NoError(t, err)
	assert.Len(t, resp.Predictions, 2)
	assert.Len(t, resp.Probabilities, 2)
}

func TestPredictClientErrors(t *testing.T) {
	s := loadedService(t)
	for name, body := range map[string]string{
		"empty":      ``,
		"scalar":     `42`,
		"malformed":  `{"LIMIT_BAL": `,
		"empty list": `[]`,
		"string":     `{"LIMIT_BAL": "a lot"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.Predict(context.Background(), []byte(body))
			se := AsError(err)
			assert.Equal(t, KindClientInput, se.Kind)
			assert.Equal(t, http.StatusBadRequest, se.Status())
		})
	}
}

func TestPredictWithoutModel(t *testing.T) {
	reg := NewRegistry(filepath.Join(t.TempDir(), "missing.gob"), logger.Nop())
	s := NewService(reg, nil, time.Minute, logger.Nop())

	_, err := s.Predict(context.Background(), []byte(oneRow))
	se := AsError(err)
	assert.Equal(t, KindModel, se.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Status())
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestReloadKeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := saveBundle(t, dir, 1)
	reg := NewRegistry(path, logger.Nop())

	var loads, failures int
	reg.OnLoad(func(ok bool) {
		loads++
		if !ok {
			failures++
		}
	})

	first, err := reg.Reload(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("not a bundle"), 0o644))
	_, err = reg.Reload(context.Background())
	require.Error(t, err)

	cur, err := reg.Current()
	require.NoError(t, err)
	assert.Same(t, first, cur)
	assert.Equal(t, 2, loads)
	assert.Equal(t, 1, failures)
}

func TestReloadSwapsVersion(t *testing.T) {
	dir := t.TempDir()
	path := saveBundle(t, dir, 1)
	reg := NewRegistry(path, logger.Nop())
	first, err := reg.Reload(context.Background())
	require.NoError(t, err)

	saveBundle(t, dir, 0.01)
	second, err := reg.Reload(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.Version, second.Version)

	// a pinned context is unaffected by the swap
	assert.Equal(t, path, first.Path)
	assert.NotNil(t, first.Bundle.Pipeline)
}

func TestAsErrorInternal(t *testing.T) {
	se := AsError(errors.New("boom"))
	assert.Equal(t, KindInternal, se.Kind)
	assert.Equal(t, http.StatusInternalServerError, se.Status())
}
