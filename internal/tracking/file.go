package tracking

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// FileStore keeps runs on disk:
//
//	<root>/<experiment>/<run_id>/meta.yaml
//	                            /params/<key>
//	                            /metrics/<key>     "<unix_ms> <value>" lines
//	                            /artifacts/<name>
type FileStore struct {
	root string
	now  func() time.Time
}

// NewFileStore creates the root directory if needed
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create tracking dir: %w", err)
	}
	return &FileStore{root: root, now: time.Now}, nil
}

// Root returns the store directory
func (s *FileStore) Root() string { return s.root }

// StartRun creates the run directory and its meta.yaml
func (s *FileStore) StartRun(ctx context.Context, experiment, name string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info := RunInfo{
		ID:         uuid.NewString(),
		Experiment: experiment,
		Name:       name,
		Status:     StatusRunning,
		StartTime:  s.now().UTC(),
	}
	dir := filepath.Join(s.root, experiment, info.ID)
	for _, sub := range []string{"params", "metrics", "artifacts"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create run dir: %w", err)
		}
	}
	run := &fileRun{store: s, dir: dir, info: info}
	if err := run.writeMeta(); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns reads every run of experiment, oldest first
func (s *FileStore) ListRuns(ctx context.Context, experiment string) ([]RunInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, experiment))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var runs []RunInfo
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !e.IsDir() {
			continue
		}
		info, err := readRun(filepath.Join(s.root, experiment, e.Name()))
		if err != nil {
			return nil, err
		}
		runs = append(runs, *info)
	}
	sortRuns(runs)
	return runs, nil
}

// Close is a no-op
func (s *FileStore) Close() error { return nil }

func readRun(dir string) (*RunInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, "meta.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read run meta: %w", err)
	}
	var info RunInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode run meta %s: %w", dir, err)
	}

	info.Params = make(map[string]string)
	if err := eachFile(filepath.Join(dir, "params"), func(name string, body []byte) error {
		info.Params[name] = string(body)
		return nil
	}); err != nil {
		return nil, err
	}

	info.Metrics = make(map[string]float64)
	if err := eachFile(filepath.Join(dir, "metrics"), func(name string, body []byte) error {
		v, err := lastMetric(body)
		if err != nil {
			return fmt.Errorf("metric %s: %w", name, err)
		}
		info.Metrics[name] = v
		return nil
	}); err != nil {
		return nil, err
	}

	if err := eachFile(filepath.Join(dir, "artifacts"), func(name string, _ []byte) error {
		info.Artifacts = append(info.Artifacts, name)
		return nil
	}); err != nil {
		return nil, err
	}
	return &info, nil
}

func eachFile(dir string, fn func(name string, body []byte) error) error {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		body, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if err := fn(e.Name(), body); err != nil {
			return err
		}
	}
	return nil
}

// lastMetric returns the value of the last "<ts> <value>" line
func lastMetric(body []byte) (float64, error) {
	var last string
	sc := bufio.NewScanner(strings.NewReader(string(body)))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			last = line
		}
	}
	fields := strings.Fields(last)
	if len(fields) != 2 {
		return 0, fmt.Errorf("malformed metric line %q", last)
	}
	return strconv.ParseFloat(fields[1], 64)
}

type fileRun struct {
	store *FileStore
	dir   string
	info  RunInfo
	ended bool
}

func (r *fileRun) ID() string { return r.info.ID }

func (r *fileRun) writeMeta() error {
	data, err := yaml.Marshal(&r.info)
	if err != nil {
		return fmt.Errorf("encode run meta: %w", err)
	}
	return os.WriteFile(filepath.Join(r.dir, "meta.yaml"), data, 0o644)
}

func checkKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid key %q", key)
	}
	return nil
}

func (r *fileRun) LogParams(ctx context.Context, params map[string]string) error {
	if r.ended {
		return ErrRunClosed
	}
	for k, v := range params {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := checkKey(k); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(r.dir, "params", k), []byte(v), 0o644); err != nil {
			return fmt.Errorf("log param %s: %w", k, err)
		}
	}
	return nil
}

func (r *fileRun) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	if r.ended {
		return ErrRunClosed
	}
	ts := r.store.now().UnixMilli()
	for k, v := range metrics {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := checkKey(k); err != nil {
			return err
		}
		f, err := os.OpenFile(filepath.Join(r.dir, "metrics", k), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("log metric %s: %w", k, err)
		}
		_, werr := fmt.Fprintf(f, "%d %s\n", ts, strconv.FormatFloat(v, 'g', -1, 64))
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("log metric %s: %w", k, werr)
		}
	}
	return nil
}

func (r *fileRun) LogArtifact(ctx context.Context, localPath, name string) error {
	if r.ended {
		return ErrRunClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkKey(name); err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(r.dir, "artifacts", name))
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	return dst.Close()
}

func (r *fileRun) End(_ context.Context, status string) error {
	if r.ended {
		return ErrRunClosed
	}
	r.ended = true
	end := r.store.now().UTC()
	r.info.Status = status
	r.info.EndTime = &end
	return r.writeMeta()
}
