package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/wonny/creditpd/internal/api/handlers"
	"github.com/wonny/creditpd/pkg/logger"
)

// RouterOptions configures NewRouter
type RouterOptions struct {
	RateLimitRPS   float64
	RateLimitBurst int
	Metrics        *Metrics // nil → no /metrics
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(predictHandler *handlers.PredictHandler, opts RouterOptions, log *logger.Logger) http.Handler {
	r := mux.NewRouter()
	log = log.Component("http")

	// Probes
	r.HandleFunc("/health", predictHandler.Health).Methods("GET")
	r.HandleFunc("/test", predictHandler.Test).Methods("GET")
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods("GET")
	}

	// Prediction, rate limited
	limited := r.NewRoute().Subrouter()
	limited.HandleFunc("/predict", predictHandler.Predict).Methods("POST")
	limited.HandleFunc("/admin/reload", predictHandler.Reload).Methods("POST")
	limited.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(opts.RateLimitRPS), opts.RateLimitBurst)))

	// Apply middleware
	if opts.Metrics != nil {
		r.Use(opts.Metrics.middleware)
	}
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// rateLimitMiddleware rejects requests beyond the limiter's budget with 429
func rateLimitMiddleware(limiter *rate.Limiter) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
					"kind":  "client_input",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
			}).Info("HTTP request")
		})
	}
}

// recoveryMiddleware turns a handler panic into an internal-kind 500
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "internal server error",
						"kind":  "internal",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
