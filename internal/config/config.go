package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	RedisURL string

	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	PostgresDSN string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Feed adapter.
	RSSFeedURLs []string

	// Events-export adapter.
	EventsBaseURL        string
	EventsFocusCountries []string

	// Business-registry adapter.
	BizRegAPIURL string
	BizRegAPIKey string
	BizRegTerms  []string

	// Tagger.
	TaggerModel string

	// Geocoder.
	GeocoderUserAgent string
	GeocoderRateLimit time.Duration
	GeocoderCacheSize int

	// Normaliser/resolver.
	ResolveSimilarityThreshold float64

	// Scheduler cadence.
	FetchInterval time.Duration
	SweepInterval time.Duration

	// Retry/backoff.
	FetchMaxRetries int
	FetchRetryDelay time.Duration
	SweepMaxRetries int
	SweepRetryDelay time.Duration
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is loaded first if present;
// it never overrides variables already set in the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDurationEnv("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	geocoderRateLimit, err := parseDurationEnv("GEOCODER_RATE_LIMIT", "1s")
	if err != nil {
		return nil, err
	}
	fetchInterval, err := parseDurationEnv("FETCH_INTERVAL", "15m")
	if err != nil {
		return nil, err
	}
	sweepInterval, err := parseDurationEnv("SWEEP_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	fetchRetryDelay, err := parseDurationEnv("FETCH_RETRY_DELAY", "120s")
	if err != nil {
		return nil, err
	}
	sweepRetryDelay, err := parseDurationEnv("SWEEP_RETRY_DELAY", "30s")
	if err != nil {
		return nil, err
	}

	geocoderCacheSize := 1000
	if s := os.Getenv("GEOCODER_CACHE_SIZE"); s != "" {
		if n, convErr := strconv.Atoi(s); convErr == nil && n > 0 {
			geocoderCacheSize = n
		}
	}

	resolveThreshold := 0.85
	if s := os.Getenv("RESOLVE_SIMILARITY_THRESHOLD"); s != "" {
		if f, convErr := strconv.ParseFloat(s, 64); convErr == nil && f > 0 && f <= 1 {
			resolveThreshold = f
		}
	}

	fetchMaxRetries := 3
	if s := os.Getenv("FETCH_MAX_RETRIES"); s != "" {
		if n, convErr := strconv.Atoi(s); convErr == nil && n >= 0 {
			fetchMaxRetries = n
		}
	}
	sweepMaxRetries := 2
	if s := os.Getenv("SWEEP_MAX_RETRIES"); s != "" {
		if n, convErr := strconv.Atoi(s); convErr == nil && n >= 0 {
			sweepMaxRetries = n
		}
	}

	cfg := &Config{
		RedisURL: envOrDefault("REDIS_URL", "redis://localhost:6379/0"),

		Neo4jURI:      envOrDefault("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:     envOrDefault("NEO4J_USER", "neo4j"),
		Neo4jPassword: os.Getenv("NEO4J_PASSWORD"),

		PostgresDSN: envOrDefault("POSTGRES_DSN", "postgres://localhost:5432/osint?sslmode=disable"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RSSFeedURLs: parseCSV(os.Getenv("RSS_FEED_URLS")),

		EventsBaseURL:        envOrDefault("GDELT_BASE_URL", "http://data.gdeltproject.org/gdeltv2"),
		EventsFocusCountries: parseCSVOrDefault(os.Getenv("GDELT_FOCUS_COUNTRIES"), []string{"DA", "US", "GB", "DE", "FR"}),

		BizRegAPIURL: envOrDefault("CVR_API_URL", "https://cvrapi.dk/api"),
		BizRegAPIKey: os.Getenv("CVR_API_KEY"),
		BizRegTerms:  parseCSV(os.Getenv("CVR_SEARCH_TERMS")),

		TaggerModel: envOrDefault("SPACY_MODEL", "en_core_web_sm"),

		GeocoderUserAgent: envOrDefault("GEOCODER_USER_AGENT", "osint-ingest/0.1 (ops@example.invalid)"),
		GeocoderRateLimit: geocoderRateLimit,
		GeocoderCacheSize: geocoderCacheSize,

		ResolveSimilarityThreshold: resolveThreshold,

		FetchInterval: fetchInterval,
		SweepInterval: sweepInterval,

		FetchMaxRetries: fetchMaxRetries,
		FetchRetryDelay: fetchRetryDelay,
		SweepMaxRetries: sweepMaxRetries,
		SweepRetryDelay: sweepRetryDelay,
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.Neo4jURI == "" {
		return nil, errors.New("NEO4J_URI is required")
	}
	if cfg.PostgresDSN == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}
	if cfg.GeocoderRateLimit <= 0 {
		return nil, errors.New("GEOCODER_RATE_LIMIT must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDurationEnv(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseCSVOrDefault(value string, fallback []string) []string {
	parsed := parseCSV(value)
	if len(parsed) == 0 {
		return fallback
	}
	return parsed
}
