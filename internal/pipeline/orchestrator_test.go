package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/creditpd/internal/dataset"
	"github.com/wonny/creditpd/internal/model"
	"github.com/wonny/creditpd/internal/testutil"
	"github.com/wonny/creditpd/internal/tracking"
	"github.com/wonny/creditpd/internal/training"
	"github.com/wonny/creditpd/internal/tuning"
	"github.com/wonny/creditpd/internal/validation"
	"github.com/wonny/creditpd/pkg/logger"
)

func paths(dir string) RunConfig {
	return RunConfig{
		RawPath:      filepath.Join(dir, "raw.csv"),
		PreparedPath: filepath.Join(dir, "processed", "prepared.csv"),
		FeaturedPath: filepath.Join(dir, "processed", "featured.csv"),
	}
}

func TestRunWithoutTraining(t *testing.T) {
	dir := t.TempDir()
	cfg := paths(dir)
	cfg.SkipTraining = true
	require.NoError(t, os.WriteFile(cfg.RawPath, []byte(testutil.TwoRowCSV), 0o644))

	o := NewOrchestrator(dataset.New(logger.Nop()), nil, logger.Nop())
	res, err := o.Run(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{StagePrepare, StageValidate, StageFeatures}, res.CompletedStages)
	assert.Equal(t, 2, res.ValidatedRows)
	assert.Equal(t, 2, res.Features.Rows)
	assert.FileExists(t, cfg.FeaturedPath)
}

func TestRunStopsOnSchemaFailure(t *testing.T) {
	dir := t.TempDir()
	cfg := paths(dir)
	records := testutil.TwoRowRecords()
	records[0].Age = 150

	codec := dataset.New(logger.Nop())
	require.NoError(t, codec.WriteRawFile(cfg.RawPath, records))

	o := NewOrchestrator(codec, nil, logger.Nop())
	res, err := o.Run(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, validation.ErrSchema)

	var se *validation.SchemaErrors
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Columns(), "AGE")
	assert.Equal(t, []string{StagePrepare}, res.CompletedStages)
	assert.NoFileExists(t, cfg.FeaturedPath)
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := paths(dir)
	codec := dataset.New(logger.Nop())
	require.NoError(t, codec.WriteRawFile(cfg.RawPath, testutil.SyntheticRecords(150, 5)))

	store, err := tracking.NewFileStore(filepath.Join(dir, "mlruns"))
	require.NoError(t, err)
	spaces := &tuning.Config{
		Search: tuning.SearchConfig{Iterations: 2, Folds: 2, Seed: 42, Scoring: "roc_auc", TestSize: 0.2},
		Families: []tuning.FamilySpace{{
			Family: string(model.FamilyLogisticRegression),
			Params: []tuning.ParamSpec{{Name: "C", Kind: tuning.KindUniform, Low: 0.5, High: 1.5}},
		}},
	}
	trainer := training.NewTrainer(codec, store, spaces, training.Options{
		Experiment:   "pipeline",
		ModelsDir:    filepath.Join(dir, "models"),
		ArtifactsDir: filepath.Join(dir, "artifacts"),
		Families:     []model.Family{model.FamilyLogisticRegression},
	}, logger.Nop())

	res, err := NewOrchestrator(codec, trainer, logger.Nop()).Run(context.Background(), cfg)
	require.NoError(t, err)
	assert.Len(t, res.CompletedStages, 4)
	require.NotNil(t, res.Training)
	assert.Equal(t, model.FamilyLogisticRegression, res.Training.Best)
	assert.FileExists(t, filepath.Join(dir, "models", training.BestModelFile))
}

func TestValidateFileMissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("ID,AGE\n1,30\n"), 0o644))

	_, err := ValidateFile(context.Background(), dataset.New(logger.Nop()), path)
	assert.ErrorIs(t, err, dataset.ErrMissingColumn)
}
