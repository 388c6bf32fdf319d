package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Pipeline
	Data     DataConfig
	Training TrainingConfig
	Tracking TrackingConfig

	// Serving
	Serving ServingConfig

	// Database (optional, tracking store)
	Database DatabaseConfig

	// Redis (optional, prediction cache)
	Redis RedisConfig

	// Scheduler
	RetrainSchedule string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DataConfig holds the default locations of the pipeline CSV files
type DataConfig struct {
	RawPath      string
	PreparedPath string
	FeaturedPath string
}

// TrainingConfig holds training and search settings
type TrainingConfig struct {
	ModelsDir       string
	ArtifactsDir    string
	ParamSpacesPath string // empty → built-in spaces
	Seed            int64
	SearchIter      int
	CVFolds         int
	TestSize        float64
	Workers         int // 0 → GOMAXPROCS
}

// TrackingConfig selects the experiment tracking backend
type TrackingConfig struct {
	URI        string // file:./mlruns | postgres
	Experiment string
}

// ServingConfig holds prediction endpoint settings
type ServingConfig struct {
	ModelPath      string
	RateLimitRPS   float64
	RateLimitBurst int
	CacheTTL       time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "5000"),
		Env:  getEnv("ENV", "development"),

		Data: DataConfig{
			RawPath:      getEnv("RAW_DATA_PATH", "data/raw/UCI_Credit_Card.csv"),
			PreparedPath: getEnv("PREPARED_DATA_PATH", "data/processed/prepared.csv"),
			FeaturedPath: getEnv("FEATURED_DATA_PATH", "data/processed/featured.csv"),
		},

		Training: TrainingConfig{
			ModelsDir:       getEnv("MODELS_DIR", "models"),
			ArtifactsDir:    getEnv("ARTIFACTS_DIR", "artifacts"),
			ParamSpacesPath: getEnv("PARAM_SPACES_PATH", ""),
			Seed:            int64(getEnvAsInt("RANDOM_SEED", 42)),
			SearchIter:      getEnvAsInt("SEARCH_ITER", 10),
			CVFolds:         getEnvAsInt("CV_FOLDS", 3),
			TestSize:        getEnvAsFloat("TEST_SIZE", 0.2),
			Workers:         getEnvAsInt("TRAIN_WORKERS", 0),
		},

		Tracking: TrackingConfig{
			URI:        getEnv("TRACKING_URI", "file:./mlruns"),
			Experiment: getEnv("EXPERIMENT_NAME", "pd_model_experiments"),
		},

		Serving: ServingConfig{
			ModelPath:      getEnv("MODEL_PATH", "models/best.gob"),
			RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 50),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 100),
			CacheTTL:       getEnvAsDuration("PREDICTION_CACHE_TTL", "10m"),
		},

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 1),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		RetrainSchedule: getEnv("RETRAIN_SCHEDULE", "0 0 3 * * *"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// UsesPostgresTracking reports whether runs are recorded in Postgres
func (c *Config) UsesPostgresTracking() bool {
	return c.Tracking.URI == "postgres"
}

// TrackingDir returns the directory of the file tracking store
func (c *Config) TrackingDir() string {
	return strings.TrimPrefix(c.Tracking.URI, "file:")
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.UsesPostgresTracking() {
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when TRACKING_URI=postgres")
		}
	} else if !strings.HasPrefix(c.Tracking.URI, "file:") {
		return fmt.Errorf("TRACKING_URI must be 'postgres' or start with 'file:', got %q", c.Tracking.URI)
	}

	if c.Training.TestSize <= 0 || c.Training.TestSize >= 1 {
		return fmt.Errorf("TEST_SIZE must be in (0, 1), got %v", c.Training.TestSize)
	}
	if c.Training.CVFolds < 2 {
		return fmt.Errorf("CV_FOLDS must be >= 2, got %d", c.Training.CVFolds)
	}
	if c.Training.SearchIter < 1 {
		return fmt.Errorf("SEARCH_ITER must be >= 1, got %d", c.Training.SearchIter)
	}
	if c.Serving.RateLimitRPS <= 0 || c.Serving.RateLimitBurst < 1 {
		return fmt.Errorf("RATE_LIMIT_RPS must be > 0 and RATE_LIMIT_BURST >= 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{".env"}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
