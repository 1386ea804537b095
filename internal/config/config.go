package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds all settings, populated from environment variables.
type Config struct {
	LogLevel  string
	LogFormat string

	// NDBC archive access.
	NDBCEndpoint     string
	NDBCArchiveDir   string
	FetchTimeout     time.Duration
	FetchRetries     int
	FetchRate        float64
	FetchConcurrency int
	FetchCacheSize   int

	// Serve mode.
	HTTPAddr        string
	ShutdownTimeout time.Duration
	JobsFile        string
	Schedule        string

	// Report sink. An empty topic disables publishing.
	KafkaBrokers     []string
	KafkaReportTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("FETCH_TIMEOUT", "30s"))
	if err != nil || fetchTimeout <= 0 {
		return nil, errors.New("invalid FETCH_TIMEOUT: must be a positive duration")
	}

	retries, err := parseInt("FETCH_RETRIES", 2, 0, 10)
	if err != nil {
		return nil, err
	}
	concurrency, err := parseInt("FETCH_CONCURRENCY", 1, 1, 32)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("FETCH_CACHE_SIZE", 64, 1, 4096)
	if err != nil {
		return nil, err
	}

	fetchRate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("FETCH_RATE", "2"), 64)
	if err != nil || fetchRate < 0 {
		return nil, errors.New("invalid FETCH_RATE: must be a non-negative number of requests per second")
	}

	cfg := &Config{
		LogLevel:         sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:        sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		NDBCEndpoint:     sharedcfg.EnvOrDefault("NDBC_ENDPOINT", "https://www.ndbc.noaa.gov/view_text_file.php"),
		NDBCArchiveDir:   sharedcfg.EnvOrDefault("NDBC_ARCHIVE_DIR", "data/historical/stdmet/"),
		FetchTimeout:     fetchTimeout,
		FetchRetries:     retries,
		FetchRate:        fetchRate,
		FetchConcurrency: concurrency,
		FetchCacheSize:   cacheSize,
		HTTPAddr:         sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout:  shutdownTimeout,
		JobsFile:         sharedcfg.EnvOrDefault("JOBS_FILE", "jobs.yaml"),
		Schedule:         sharedcfg.EnvOrDefault("SCHEDULE", "0 6 * * *"),
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaReportTopic: os.Getenv("KAFKA_REPORT_TOPIC"),
	}

	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("invalid SCHEDULE: %w", err)
	}
	if cfg.KafkaReportTopic != "" && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_REPORT_TOPIC is set")
	}

	return cfg, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be %d-%d", key, lo, hi)
	}
	return n, nil
}
