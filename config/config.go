package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Upstream exchange
	ExchangeBaseURL string
	Symbols         []string

	// Storage
	MongoURI string
	MongoDB  string

	// Event bus
	RedisAddr     string
	RedisPassword string
	LocalBus      bool // use an in-process bus instead of Redis (single-host deployments)

	// Ingestor
	IngestTickInterval time.Duration
	IngestWorkers      int
	BootstrapSince     time.Duration

	// Predictor
	PredictTickInterval time.Duration
	ModelArtifactDir    string

	// Retry/backoff
	RetryAttempts        int
	RetryFirstSleep      time.Duration
	RetrySleepMultiplier float64

	// API service
	HTTPAddr    string
	MetricsAddr string
}

// Load reads configuration from environment variables with sensible
// defaults, loading a local .env file first if present (non-fatal if
// absent — a convenience for local development, never required in
// production).
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ExchangeBaseURL: getEnv("EXCHANGE_BASE_URL", "https://api.binance.com"),
		Symbols:         parseSymbols(getEnv("SYMBOLS", "BTCUSDT,ETHUSDT")),

		MongoURI: mustEnv("MONGO_URI"),
		MongoDB:  getEnv("MONGO_DB", "candlesystem"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LocalBus:      getEnvBool("LOCAL_BUS", false),

		IngestTickInterval: getEnvDuration("INGEST_TICK_INTERVAL", 60*time.Second),
		IngestWorkers:      getEnvInt("INGEST_WORKERS", 4),
		BootstrapSince:     getEnvDuration("INGEST_BOOTSTRAP_SINCE", 30*24*time.Hour),

		PredictTickInterval: getEnvDuration("PREDICT_TICK_INTERVAL", 5*time.Second),
		ModelArtifactDir:    getEnv("MODEL_ARTIFACT_DIR", "data/models"),

		RetryAttempts:        getEnvInt("RETRY_ATTEMPTS", 3),
		RetryFirstSleep:      getEnvDuration("RETRY_FIRST_SLEEP", 1*time.Second),
		RetrySleepMultiplier: getEnvFloat("RETRY_SLEEP_MULTIPLIER", 2.0),

		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
	}
}

func parseSymbols(raw string) []string {
	parts := strings.Split(raw, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid bool for %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] invalid duration for %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return d
}
