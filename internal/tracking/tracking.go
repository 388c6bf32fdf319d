// Package tracking records training runs: parameters, metrics and
// artifacts, grouped by experiment.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wonny/creditpd/pkg/config"
	"github.com/wonny/creditpd/pkg/database"
)

// Run statuses
const (
	StatusRunning  = "RUNNING"
	StatusFinished = "FINISHED"
	StatusFailed   = "FAILED"
)

var (
	ErrRunClosed   = errors.New("run already ended")
	ErrRunNotFound = errors.New("run not found")
)

// Tracker opens runs and reads them back
type Tracker interface {
	StartRun(ctx context.Context, experiment, name string) (Run, error)
	ListRuns(ctx context.Context, experiment string) ([]RunInfo, error)
	Close() error
}

// Run is one open tracked run. Not safe for concurrent use.
type Run interface {
	ID() string
	LogParams(ctx context.Context, params map[string]string) error
	LogMetrics(ctx context.Context, metrics map[string]float64) error
	// LogArtifact stores the file at localPath under name
	LogArtifact(ctx context.Context, localPath, name string) error
	End(ctx context.Context, status string) error
}

// RunInfo is a stored run
type RunInfo struct {
	ID         string             `yaml:"run_id" json:"run_id"`
	Experiment string             `yaml:"experiment" json:"experiment"`
	Name       string             `yaml:"name" json:"name"`
	Status     string             `yaml:"status" json:"status"`
	StartTime  time.Time          `yaml:"start_time" json:"start_time"`
	EndTime    *time.Time         `yaml:"end_time,omitempty" json:"end_time,omitempty"`
	Params     map[string]string  `yaml:"-" json:"params,omitempty"`
	Metrics    map[string]float64 `yaml:"-" json:"metrics,omitempty"`
	Artifacts  []string           `yaml:"-" json:"artifacts,omitempty"`
}

// sortRuns orders runs by start time, oldest first
func sortRuns(runs []RunInfo) {
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.Before(runs[j].StartTime)
	})
}

// Open returns the store selected by TRACKING_URI
func Open(ctx context.Context, cfg *config.Config) (Tracker, error) {
	if !cfg.UsesPostgresTracking() {
		return NewFileStore(cfg.TrackingDir())
	}
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open tracking database: %w", err)
	}
	store, err := NewPostgresStore(ctx, db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}
