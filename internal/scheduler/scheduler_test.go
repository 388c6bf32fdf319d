package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/creditpd/pkg/logger"
)

type fakeJob struct {
	name     string
	schedule string
	failures int32 // attempts that fail before success
	calls    atomic.Int32
}

func (j *fakeJob) Name() string     { return j.name }
func (j *fakeJob) Schedule() string { return j.schedule }
func (j *fakeJob) Run(ctx context.Context) error {
	if j.calls.Add(1) <= j.failures {
		return errors.New("transient")
	}
	return nil
}

func TestAddJobRejectsDuplicatesAndBadSchedules(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&fakeJob{name: "retrain", schedule: "0 0 3 * * *"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "retrain", schedule: "0 0 3 * * *"}))
	assert.Error(t, s.AddJob(&fakeJob{name: "bad", schedule: "not a schedule"}))
	assert.Equal(t, []string{"retrain"}, s.GetAllJobs())
}

func TestRunJobRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetry(2, time.Millisecond))
	job := &fakeJob{name: "flaky", schedule: "@daily", failures: 2}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob("flaky")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int32(3), job.calls.Load())

	stats := s.GetJobStats()["flaky"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessCount)
	assert.NotNil(t, stats.LastSuccess)
}

func TestRunJobGivesUp(t *testing.T) {
	s := New(logger.Nop(), WithRetry(1, time.Millisecond))
	job := &fakeJob{name: "broken", schedule: "@daily", failures: 10}
	require.NoError(t, s.AddJob(job))

	result, err := s.RunJob("broken")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "transient", result.Error)
	assert.Equal(t, int32(2), job.calls.Load())

	history, err := s.GetJobHistory("broken")
	require.NoError(t, err)
	assert.Equal(t, 0.0, history.GetSuccessRate())
}

func TestRunJobUnknown(t *testing.T) {
	_, err := New(logger.Nop()).RunJob("nope")
	assert.Error(t, err)
}

func TestStopCancelsRetries(t *testing.T) {
	s := New(logger.Nop(), WithRetry(5, time.Hour))
	job := &fakeJob{name: "slow", schedule: "@daily", failures: 10}
	require.NoError(t, s.AddJob(job))
	s.Start()

	done := make(chan JobResult, 1)
	go func() {
		r, _ := s.RunJob("slow")
		done <- r
	}()
	require.Eventually(t, func() bool { return job.calls.Load() >= 1 }, time.Second, time.Millisecond)
	s.Stop()

	select {
	case r := <-done:
		assert.False(t, r.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop")
	}
}

func TestRemoveJob(t *testing.T) {
	s := New(logger.Nop())
	require.NoError(t, s.AddJob(&fakeJob{name: "a", schedule: "@hourly"}))
	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))
}

func TestHistoryLimit(t *testing.T) {
	var h JobHistory
	for i := 0; i < historyLimit+5; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, historyLimit)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 0.01)
}
