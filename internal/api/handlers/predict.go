package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/wonny/creditpd/internal/serving"
	"github.com/wonny/creditpd/pkg/logger"
)

// maxBodyBytes bounds a prediction request body
const maxBodyBytes = 8 << 20

// PredictHandler handles the prediction endpoints
// ⭐ SSOT: 예측 API 핸들러는 이 구조체에서만
type PredictHandler struct {
	svc    *serving.Service
	logger *logger.Logger
}

// NewPredictHandler creates a new predict handler
func NewPredictHandler(svc *serving.Service, log *logger.Logger) *PredictHandler {
	return &PredictHandler{
		svc:    svc,
		logger: log.Component("api"),
	}
}

// Predict scores one feature object or an array of them
// POST /predict
func (h *PredictHandler) Predict(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, &serving.Error{Kind: serving.KindClientInput, Message: "request body too large", Err: err})
			return
		}
		RespondError(w, &serving.Error{Kind: serving.KindClientInput, Message: "failed to read request body", Err: err})
		return
	}

	resp, err := h.svc.Predict(r.Context(), body)
	if err != nil {
		se := serving.AsError(err)
		entry := h.logger.WithError(err).WithField("kind", se.Kind)
		if se.Kind == serving.KindInternal {
			entry.Error("Prediction failed")
		} else {
			entry.Warn("Prediction rejected")
		}
		RespondError(w, se)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Test is the liveness probe kept for existing clients
// GET /test
func (h *PredictHandler) Test(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "123")
}

// Health reports the loaded model
// GET /health
func (h *PredictHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":  "ok",
		"service": "creditpd",
	}
	mc, err := h.svc.Registry().Current()
	if err != nil {
		status["model_loaded"] = false
	} else {
		status["model_loaded"] = true
		status["model"] = mc.Family()
		status["version"] = mc.Version
		status["loaded_at"] = mc.LoadedAt.Format(time.RFC3339)
	}
	respondJSON(w, http.StatusOK, status)
}

// Reload swaps in the bundle currently on disk
// POST /admin/reload
func (h *PredictHandler) Reload(w http.ResponseWriter, r *http.Request) {
	mc, err := h.svc.Registry().Reload(r.Context())
	if err != nil {
		RespondError(w, &serving.Error{Kind: serving.KindModel, Message: "reload failed, previous model kept", Err: err})
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"model":   mc.Family(),
		"version": mc.Version,
	})
}
