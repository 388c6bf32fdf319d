// Package serving owns the loaded model and answers prediction requests.
package serving

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/creditpd/internal/model"
	"github.com/wonny/creditpd/pkg/logger"
)

// ErrNoModel is returned while no model has been loaded
var ErrNoModel = errors.New("no model loaded")

// ModelContext is one loaded model. It is never mutated after load, so a
// request that pinned it keeps a consistent model across a reload.
type ModelContext struct {
	Bundle   *model.Bundle
	Path     string
	Version  string // first 12 hex chars of the file's SHA-256
	LoadedAt time.Time
}

// LoadModelContext reads and decodes the bundle at path
func LoadModelContext(path string) (*ModelContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	bundle, err := model.DecodeBundle(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return &ModelContext{
		Bundle:   bundle,
		Path:     path,
		Version:  hex.EncodeToString(sum[:])[:12],
		LoadedAt: time.Now().UTC(),
	}, nil
}

// Family is the classifier family of the model
func (mc *ModelContext) Family() model.Family {
	return mc.Bundle.Pipeline.Family
}

// Registry holds the current model context
// ⭐ SSOT: 서빙 모델 교체는 Registry.Reload 에서만
type Registry struct {
	path    string
	current atomic.Pointer[ModelContext]
	mu      sync.Mutex // serializes reloads
	log     *logger.Logger
	onLoad  func(ok bool)
}

// NewRegistry creates an empty registry for the bundle at path
func NewRegistry(path string, log *logger.Logger) *Registry {
	return &Registry{path: path, log: log.Component("serving")}
}

// OnLoad registers a callback observing each load attempt
func (r *Registry) OnLoad(fn func(ok bool)) {
	r.onLoad = fn
}

// Current returns the loaded context, or a model-kind error
func (r *Registry) Current() (*ModelContext, error) {
	mc := r.current.Load()
	if mc == nil {
		return nil, modelError(ErrNoModel, "model not available")
	}
	return mc, nil
}

// Reload loads the bundle and swaps it in. On failure the previous
// context stays active.
func (r *Registry) Reload(ctx context.Context) (*ModelContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	mc, err := LoadModelContext(r.path)
	if r.onLoad != nil {
		r.onLoad(err == nil)
	}
	if err != nil {
		r.log.WithError(err).WithField("path", r.path).Error("Model load failed, keeping previous model")
		return nil, err
	}

	prev := r.current.Swap(mc)
	fields := map[string]interface{}{
		"path":    mc.Path,
		"family":  mc.Family(),
		"version": mc.Version,
		"roc_auc": mc.Bundle.Metrics.ROCAUC,
	}
	if prev != nil {
		fields["previous"] = prev.Version
	}
	r.log.WithFields(fields).Info("Model loaded")
	return mc, nil
}
