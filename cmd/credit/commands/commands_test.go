package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/creditpd/internal/model"
	"github.com/wonny/creditpd/pkg/config"
)

func TestParseFamilies(t *testing.T) {
	fams, err := parseFamilies([]string{"logisticregression", "RandomForest"})
	require.NoError(t, err)
	assert.Equal(t, []model.Family{model.FamilyLogisticRegression, model.FamilyRandomForest}, fams)

	fams, err = parseFamilies(nil)
	require.NoError(t, err)
	assert.Empty(t, fams)

	_, err = parseFamilies([]string{"svm"})
	assert.ErrorIs(t, err, model.ErrUnknownFamily)
}

func TestSearchConfigFromEnvSettings(t *testing.T) {
	cfg := &config.Config{Training: config.TrainingConfig{
		Seed: 7, SearchIter: 4, CVFolds: 5, TestSize: 0.3,
	}}
	spaces, err := searchConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, spaces.Search.Iterations)
	assert.Equal(t, 5, spaces.Search.Folds)
	assert.Equal(t, int64(7), spaces.Search.Seed)
	assert.Equal(t, 0.3, spaces.Search.TestSize)
}

func TestRunConfigFlagsOverride(t *testing.T) {
	cfg := &config.Config{Data: config.DataConfig{
		RawPath: "raw.csv", PreparedPath: "prepared.csv", FeaturedPath: "featured.csv",
	}}
	pipelineRaw = "other.csv"
	t.Cleanup(func() { pipelineRaw = "" })

	rc := runConfig(cfg)
	assert.Equal(t, "other.csv", rc.RawPath)
	assert.Equal(t, "prepared.csv", rc.PreparedPath)
	assert.Equal(t, "featured.csv", rc.FeaturedPath)
}
