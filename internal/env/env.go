package env

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

const (
	QueueOrderingFIFO     = "fifo"
	QueueOrderingPriority = "priority"
)

type EnvironmentVariables struct {
	InstanceName string
	Environment  string
	LogLevel     string

	RedisAddr     string
	RedisPoolSize int
	BackendPort   string
	GrpcAddr      string
	DatabaseURL   string

	PaymentDefaultEndpoint   string
	PaymentFallbackEndpoint  string
	ProcessorDefaultTimeout  time.Duration
	ProcessorFallbackTimeout time.Duration
	MaxAttempts              int
	RetryBackoff             time.Duration

	WorkerConcurrency int
	QueueOrdering     string
	DequeueIdleSleep  time.Duration

	HealthCheckInterval time.Duration
	HealthCheckStagger  time.Duration
	HealthProbeTimeout  time.Duration
	HealthCacheTTL      time.Duration

	DedupTTL          time.Duration
	DeadLetterEnabled bool
	RequeueInterval   time.Duration
	ShutdownGrace     time.Duration
}

var defaults = map[string]any{
	"ENVIRONMENT":                "development",
	"LOG_LEVEL":                  "info",
	"REDIS_POOL_SIZE":            100,
	"BACKEND_PORT":               "9999",
	"PAYMENT_DEFAULT_ENDPOINT":   "http://payment-processor-default:8080",
	"PAYMENT_FALLBACK_ENDPOINT":  "http://payment-processor-fallback:8080",
	"PROCESSOR_DEFAULT_TIMEOUT":  "1500ms",
	"PROCESSOR_FALLBACK_TIMEOUT": "800ms",
	"MAX_ATTEMPTS":               3,
	"RETRY_BACKOFF":              "100ms",
	"WORKER_CONCURRENCY":         20,
	"QUEUE_ORDERING":             QueueOrderingFIFO,
	"DEQUEUE_IDLE_SLEEP":         "50ms",
	"HEALTH_CHECK_INTERVAL":      "5s",
	"HEALTH_CHECK_STAGGER":       "200ms",
	"HEALTH_PROBE_TIMEOUT":       "2s",
	"HEALTH_CACHE_TTL":           "30s",
	"DEDUP_TTL":                  "1h",
	"DEAD_LETTER_ENABLED":        false,
	"REQUEUE_INTERVAL":           "5s",
	"SHUTDOWN_GRACE":             "10s",
}

// Load reads the process environment. REDIS_ADDR is the only required key.
func Load() (*EnvironmentVariables, error) {
	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	redisAddr, err := getRequiredEnv(v, "REDIS_ADDR")
	if err != nil {
		return nil, err
	}

	e := &EnvironmentVariables{
		InstanceName: getOptionalEnv(v, "INSTANCE_NAME", defaultInstanceName()),
		Environment:  v.GetString("ENVIRONMENT"),
		LogLevel:     strings.ToLower(v.GetString("LOG_LEVEL")),

		RedisAddr:     redisAddr,
		RedisPoolSize: v.GetInt("REDIS_POOL_SIZE"),
		BackendPort:   v.GetString("BACKEND_PORT"),
		GrpcAddr:      v.GetString("GRPC_ADDR"),
		DatabaseURL:   v.GetString("DATABASE_URL"),

		PaymentDefaultEndpoint:   strings.TrimRight(v.GetString("PAYMENT_DEFAULT_ENDPOINT"), "/"),
		PaymentFallbackEndpoint:  strings.TrimRight(v.GetString("PAYMENT_FALLBACK_ENDPOINT"), "/"),
		ProcessorDefaultTimeout:  v.GetDuration("PROCESSOR_DEFAULT_TIMEOUT"),
		ProcessorFallbackTimeout: v.GetDuration("PROCESSOR_FALLBACK_TIMEOUT"),
		MaxAttempts:              v.GetInt("MAX_ATTEMPTS"),
		RetryBackoff:             v.GetDuration("RETRY_BACKOFF"),

		WorkerConcurrency: v.GetInt("WORKER_CONCURRENCY"),
		QueueOrdering:     strings.ToLower(v.GetString("QUEUE_ORDERING")),
		DequeueIdleSleep:  v.GetDuration("DEQUEUE_IDLE_SLEEP"),

		HealthCheckInterval: v.GetDuration("HEALTH_CHECK_INTERVAL"),
		HealthCheckStagger:  v.GetDuration("HEALTH_CHECK_STAGGER"),
		HealthProbeTimeout:  v.GetDuration("HEALTH_PROBE_TIMEOUT"),
		HealthCacheTTL:      v.GetDuration("HEALTH_CACHE_TTL"),

		DedupTTL:          v.GetDuration("DEDUP_TTL"),
		DeadLetterEnabled: v.GetBool("DEAD_LETTER_ENABLED"),
		RequeueInterval:   v.GetDuration("REQUEUE_INTERVAL"),
		ShutdownGrace:     v.GetDuration("SHUTDOWN_GRACE"),
	}
	if err := e.validate(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *EnvironmentVariables) validate() error {
	if e.QueueOrdering != QueueOrderingFIFO && e.QueueOrdering != QueueOrderingPriority {
		return fmt.Errorf("[env] QUEUE_ORDERING must be %q or %q, got %q", QueueOrderingFIFO, QueueOrderingPriority, e.QueueOrdering)
	}
	if e.WorkerConcurrency <= 0 {
		return fmt.Errorf("[env] WORKER_CONCURRENCY must be positive, got %d", e.WorkerConcurrency)
	}
	if e.MaxAttempts <= 0 {
		return fmt.Errorf("[env] MAX_ATTEMPTS must be positive, got %d", e.MaxAttempts)
	}
	if e.ProcessorDefaultTimeout <= 0 || e.ProcessorFallbackTimeout <= 0 || e.HealthProbeTimeout <= 0 {
		return fmt.Errorf("[env] processor and probe timeouts must be positive")
	}
	if e.HealthCheckInterval <= 0 {
		return fmt.Errorf("[env] HEALTH_CHECK_INTERVAL must be positive")
	}
	return nil
}

func (e *EnvironmentVariables) IsProduction() bool {
	return e.Environment == "production"
}

func (e *EnvironmentVariables) IsDevelopment() bool {
	return !e.IsProduction()
}

func getRequiredEnv(v *viper.Viper, key string) (string, error) {
	value := v.GetString(key)
	if value == "" {
		return "", fmt.Errorf("[env] required environment variable %s is not set", key)
	}
	return value, nil
}

func getOptionalEnv(v *viper.Viper, key, defaultValue string) string {
	value := v.GetString(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func defaultInstanceName() string {
	if hostname, err := os.Hostname(); err == nil && hostname != "" {
		return hostname
	}
	return "rinha-" + uuid.NewString()[:8]
}
