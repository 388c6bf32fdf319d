package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/creditpd/internal/api"
	"github.com/wonny/creditpd/internal/api/handlers"
	"github.com/wonny/creditpd/internal/serving"
	"github.com/wonny/creditpd/pkg/config"
	"github.com/wonny/creditpd/pkg/logger"
	"github.com/wonny/creditpd/pkg/redis"
)

var servePort string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction server",
	Long: `Load the best model and serve predictions over HTTP.

Endpoints:
  GET  /health         - model status
  GET  /test           - liveness ("123")
  GET  /metrics        - Prometheus metrics (METRICS_ENABLED)
  POST /predict        - predict one object or an array of objects
  POST /admin/reload   - reload MODEL_PATH

SIGHUP reloads the model as well.

Example:
  go run ./cmd/credit serve
  go run ./cmd/credit serve --port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&servePort, "port", "", "server port (default PORT)")
}

// predictionCache connects Redis when enabled. A failed connection
// disables caching rather than the server.
func predictionCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, func()) {
	if !cfg.Redis.Enabled {
		return nil, func() {}
	}
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, prediction cache disabled")
		return nil, func() {}
	}
	log.Info("Connected to Redis")
	return redis.NewCache(client, "creditpd"), func() { client.Close() }
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	ctx := cmd.Context()

	// 1. Model registry
	registry := serving.NewRegistry(cfg.Serving.ModelPath, log)
	var metrics *api.Metrics
	if cfg.MetricsEnabled {
		metrics = api.NewMetrics()
		registry.OnLoad(metrics.ModelLoaded)
	}
	if _, err := registry.Reload(ctx); err != nil {
		// serve anyway; /predict answers 422 until a reload succeeds
		log.WithError(err).Warn("Starting without a model")
	}

	// 2. Cache
	cache, closeCache := predictionCache(ctx, cfg, log)
	defer closeCache()

	// 3. Router and server
	svc := serving.NewService(registry, cache, cfg.Serving.CacheTTL, log)
	router := api.NewRouter(handlers.NewPredictHandler(svc, log), api.RouterOptions{
		RateLimitRPS:   cfg.Serving.RateLimitRPS,
		RateLimitBurst: cfg.Serving.RateLimitBurst,
		Metrics:        metrics,
	}, log)
	server := api.New(cfg, log, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// 4. Wait for signals
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sig)

	for {
		select {
		case err := <-errCh:
			return err
		case s := <-sig:
			if s == syscall.SIGHUP {
				log.Info("SIGHUP received, reloading model")
				registry.Reload(ctx)
				continue
			}

			log.Info("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			log.Info("Server stopped")
			return <-errCh
		}
	}
}
