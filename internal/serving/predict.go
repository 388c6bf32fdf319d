package serving

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/wonny/creditpd/pkg/logger"
	"github.com/wonny/creditpd/pkg/redis"
)

// Response is the prediction of one request
type Response struct {
	Predictions   []int     `json:"predictions"`
	Probabilities []float64 `json:"probabilities,omitempty"`
	Model         string    `json:"model"`
	Version       string    `json:"version"`
}

// Service answers prediction requests against the registry's current model
type Service struct {
	registry *Registry
	cache    *redis.Cache // nil → no caching
	ttl      time.Duration
	log      *logger.Logger
}

// NewService creates a Service. cache may be nil.
func NewService(registry *Registry, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Service {
	return &Service{
		registry: registry,
		cache:    cache,
		ttl:      ttl,
		log:      log.Component("serving"),
	}
}

// Registry returns the model registry
func (s *Service) Registry() *Registry { return s.registry }

// ParseRows decodes a body holding one feature object or an array of them
func ParseRows(body []byte) ([]map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, clientError(nil, "empty request body")
	}

	var rows []map[string]json.RawMessage
	switch trimmed[0] {
	case '{':
		var row map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return nil, clientError(err, "malformed JSON object")
		}
		rows = append(rows, row)
	case '[':
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, clientError(err, "malformed JSON array of objects")
		}
	default:
		return nil, clientError(nil, "body must be a JSON object or array")
	}
	if len(rows) == 0 {
		return nil, clientError(nil, "no rows to predict")
	}
	return rows, nil
}

// inputMatrix lays rows out in feature order. Absent keys and nulls are
// missing and imputed by the model; keys the model does not use are ignored.
func inputMatrix(rows []map[string]json.RawMessage, features []string) (*mat.Dense, error) {
	X := mat.NewDense(len(rows), len(features), nil)
	for i, row := range rows {
		for j, name := range features {
			raw, ok := row[name]
			if !ok || string(raw) == "null" {
				X.Set(i, j, math.NaN())
				continue
			}
			var v float64
			if err := json.Unmarshal(raw, &v); err != nil {
				return nil, clientError(err, "row %d: %s must be a number", i, name)
			}
			X.Set(i, j, v)
		}
	}
	return X, nil
}

// digest fingerprints an input matrix for caching
func digest(X *mat.Dense) string {
	h := sha256.New()
	r, c := X.Dims()
	fmt.Fprintf(h, "%dx%d", r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			fmt.Fprintf(h, ",%x", math.Float64bits(X.At(i, j)))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Predict scores body with the current model. The model context is pinned
// once, so a concurrent reload cannot mix two models in one response.
func (s *Service) Predict(ctx context.Context, body []byte) (*Response, error) {
	mc, err := s.registry.Current()
	if err != nil {
		return nil, err
	}
	rows, err := ParseRows(body)
	if err != nil {
		return nil, err
	}
	pipe := mc.Bundle.Pipeline
	X, err := inputMatrix(rows, pipe.Features)
	if err != nil {
		return nil, err
	}

	var key string
	if s.cache != nil {
		key = redis.PredictionKey(mc.Version, digest(X))
		var cached Response
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.log.WithError(err).Warn("Prediction cache read failed")
		}
		if found {
			return &cached, nil
		}
	}

	pred, err := pipe.Predict(X)
	if err != nil {
		return nil, modelError(err, "prediction failed")
	}
	resp := &Response{
		Predictions: pred,
		Model:       string(mc.Family()),
		Version:     mc.Version,
	}
	if proba, err := pipe.PredictProba(X); err == nil {
		resp.Probabilities = proba
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp, s.ttl); err != nil {
			s.log.WithError(err).Warn("Prediction cache write failed")
		}
	}
	return resp, nil
}
