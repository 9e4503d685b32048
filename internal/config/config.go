package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPPort        = "8080"
	defaultLogLevel        = "info"
	defaultTemporalAddress = "localhost:7233"
	defaultTemporalNS      = "default"
	defaultTaskQueue       = "approval-escalation-task-queue"
	defaultWorkflowPrefix  = "approval-escalation"
	defaultMinioEndpoint   = "localhost:9000"
	defaultMinioBucket     = "documents"
	defaultManifestSuffix  = ".sections.json"
	defaultLockTTL         = 30 * time.Second
	defaultEventBus        = "gochannel"
	defaultSweepCron       = "*/5 * * * *"
	defaultServiceName     = "doc-approval-engine"
	defaultRequestBytes    = 1 << 20
)

type Config struct {
	HTTPPort                 string
	LogLevel                 string
	PostgresDSN              string
	RunMigrations            bool
	TemporalAddress          string
	TemporalNamespace        string
	TemporalTaskQueue        string
	EscalationWorkflowPrefix string
	MinioEndpoint            string
	MinioAccessKey           string
	MinioSecretKey           string
	MinioBucket              string
	MinioUseSSL              bool
	ManifestSuffix           string
	RedisAddr                string
	LockTTL                  time.Duration
	EventBus                 string
	KafkaBrokers             []string
	EscalationSweepCron      string
	TemplatesDir             string
	OTelEnabled              bool
	ServiceName              string
	MaxRequestBytes          int64
}

func Load() (Config, error) {
	cfg := Config{
		HTTPPort:                 getenv("HTTP_PORT", defaultHTTPPort),
		LogLevel:                 getenv("LOG_LEVEL", defaultLogLevel),
		PostgresDSN:              os.Getenv("POSTGRES_DSN"),
		RunMigrations:            getenvBool("RUN_MIGRATIONS", true),
		TemporalAddress:          getenv("TEMPORAL_ADDRESS", defaultTemporalAddress),
		TemporalNamespace:        getenv("TEMPORAL_NAMESPACE", defaultTemporalNS),
		TemporalTaskQueue:        getenv("TEMPORAL_TASK_QUEUE", defaultTaskQueue),
		EscalationWorkflowPrefix: getenv("ESCALATION_WORKFLOW_PREFIX", defaultWorkflowPrefix),
		MinioEndpoint:            getenv("MINIO_ENDPOINT", defaultMinioEndpoint),
		MinioAccessKey:           os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey:           os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:              getenv("MINIO_BUCKET", defaultMinioBucket),
		MinioUseSSL:              getenvBool("MINIO_USE_SSL", false),
		ManifestSuffix:           getenv("MANIFEST_SUFFIX", defaultManifestSuffix),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		LockTTL:                  getenvDuration("LOCK_TTL", defaultLockTTL),
		EventBus:                 strings.ToLower(getenv("EVENT_BUS", defaultEventBus)),
		KafkaBrokers:             getenvList("KAFKA_BROKERS"),
		EscalationSweepCron:      getenv("ESCALATION_SWEEP_CRON", defaultSweepCron),
		TemplatesDir:             os.Getenv("TEMPLATES_DIR"),
		OTelEnabled:              getenvBool("OTEL_ENABLED", false),
		ServiceName:              getenv("SERVICE_NAME", defaultServiceName),
		MaxRequestBytes:          int64(getenvInt("MAX_REQUEST_BYTES", defaultRequestBytes)),
	}

	if cfg.PostgresDSN == "" {
		return Config{}, fmt.Errorf("POSTGRES_DSN is required")
	}
	switch cfg.EventBus {
	case "gochannel":
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return Config{}, fmt.Errorf("KAFKA_BROKERS is required when EVENT_BUS=kafka")
		}
	default:
		return Config{}, fmt.Errorf("EVENT_BUS must be gochannel or kafka, got %q", cfg.EventBus)
	}

	return cfg, nil
}

func getenv(key string, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getenvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
