package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadRequiresPostgresDSN(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	_, err := Load()
	require.ErrorContains(t, err, "POSTGRES_DSN")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://approval@localhost/approval?sslmode=disable")
	t.Setenv("EVENT_BUS", "")
	t.Setenv("LOCK_TTL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.HTTPPort)
	require.Equal(t, "gochannel", cfg.EventBus)
	require.Equal(t, 30*time.Second, cfg.LockTTL)
	require.Equal(t, ".sections.json", cfg.ManifestSuffix)
	require.True(t, cfg.RunMigrations)
	require.Equal(t, int64(1<<20), cfg.MaxRequestBytes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://approval@localhost/approval")
	t.Setenv("EVENT_BUS", "Kafka")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LOCK_TTL", "45s")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("MAX_REQUEST_BYTES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "kafka", cfg.EventBus)
	require.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 45*time.Second, cfg.LockTTL)
	require.False(t, cfg.RunMigrations)
	require.Equal(t, int64(1<<20), cfg.MaxRequestBytes)
}

func TestLoadRejectsUnknownBus(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://approval@localhost/approval")
	t.Setenv("EVENT_BUS", "nats")
	_, err := Load()
	require.ErrorContains(t, err, "EVENT_BUS")

	t.Setenv("EVENT_BUS", "kafka")
	t.Setenv("KAFKA_BROKERS", "")
	_, err = Load()
	require.ErrorContains(t, err, "KAFKA_BROKERS")
}
