package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// maxSignedURLTTL matches the bucket lifecycle: objects are deleted after 24 hours.
const maxSignedURLTTL = 24 * time.Hour

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Google Cloud and Earth Engine.
	GEEProjectID    string
	GCPProjectID    string
	GCPBucketName   string
	CredentialsFile string

	EEBaseURL           string
	EETimeout           time.Duration
	EERequestsPerSecond float64
	EEMaxRetries        int

	// Product storage.
	StoreURL     string
	SignedURLTTL time.Duration

	// Assessment behavior.
	WindowDays          int
	DownloadConcurrency int
	ResultCacheSize     int
	ResultCacheTTL      time.Duration

	// BucketAuditSchedule is a cron spec; empty disables the audit.
	BucketAuditSchedule string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	eeTimeout, err := parsePositiveDuration("EE_TIMEOUT", "5m")
	if err != nil {
		return nil, err
	}
	signedURLTTL, err := parsePositiveDuration("SIGNED_URL_TTL", "24h")
	if err != nil {
		return nil, err
	}
	if signedURLTTL > maxSignedURLTTL {
		return nil, errors.New("SIGNED_URL_TTL must not exceed 24h")
	}
	cacheTTL, err := parsePositiveDuration("RESULT_CACHE_TTL", "12h")
	if err != nil {
		return nil, err
	}
	if cacheTTL >= maxSignedURLTTL {
		return nil, errors.New("RESULT_CACHE_TTL must be shorter than 24h")
	}

	rps, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("EE_REQUESTS_PER_SECOND", "5"), 64)
	if err != nil || rps <= 0 {
		return nil, errors.New("invalid EE_REQUESTS_PER_SECOND")
	}
	maxRetries, err := parseInt("EE_MAX_RETRIES", 3, 0)
	if err != nil {
		return nil, err
	}
	windowDays, err := parseInt("ASSESSMENT_WINDOW_DAYS", 30, 1)
	if err != nil {
		return nil, err
	}
	concurrency, err := parseInt("DOWNLOAD_CONCURRENCY", 3, 1)
	if err != nil {
		return nil, err
	}
	cacheSize, err := parseInt("RESULT_CACHE_SIZE", 100, 1)
	if err != nil {
		return nil, err
	}

	bucket := os.Getenv("GCP_BUCKET_NAME")
	storeURL := os.Getenv("STORE_URL")
	if storeURL == "" && bucket != "" {
		storeURL = "gs://" + bucket
	}

	auditSchedule := "@hourly"
	if v, ok := os.LookupEnv("BUCKET_AUDIT_SCHEDULE"); ok {
		auditSchedule = v
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "assessment-requests"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "assessment-reports"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "wildfire-analyser"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		GEEProjectID:    os.Getenv("GEE_PROJECT_ID"),
		GCPProjectID:    os.Getenv("GCP_PROJECT_ID"),
		GCPBucketName:   bucket,
		CredentialsFile: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),

		EEBaseURL:           sharedcfg.EnvOrDefault("EE_BASE_URL", "https://earthengine.googleapis.com/v1"),
		EETimeout:           eeTimeout,
		EERequestsPerSecond: rps,
		EEMaxRetries:        maxRetries,

		StoreURL:     storeURL,
		SignedURLTTL: signedURLTTL,

		WindowDays:          windowDays,
		DownloadConcurrency: concurrency,
		ResultCacheSize:     cacheSize,
		ResultCacheTTL:      cacheTTL,

		BucketAuditSchedule: auditSchedule,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.GEEProjectID == "" {
		return nil, errors.New("GEE_PROJECT_ID is required")
	}
	if cfg.GCPProjectID == "" {
		return nil, errors.New("GCP_PROJECT_ID is required")
	}
	if cfg.GCPBucketName == "" {
		return nil, errors.New("GCP_BUCKET_NAME is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
