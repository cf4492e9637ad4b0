package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Database.MaxRetries)
	assert.Equal(t, float32(80), cfg.FaceSearch.Threshold)
	assert.Equal(t, int64(5*1024*1024), cfg.FaceSearch.MaxImageSize)
	assert.Equal(t, 24*time.Hour, cfg.Auth.ValetTokenTTL)
	assert.Equal(t, 5, cfg.Valet.DefaultRetrievalNotice)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Len(t, cfg.Kafka.Topics.All(), 4)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://u:p@localhost/eventpilot?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("VALET_JWT_TTL", "2h")
	t.Setenv("FACE_SEARCH_THRESHOLD", "90")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 2*time.Hour, cfg.Auth.ValetTokenTTL)
	assert.Equal(t, float32(90), cfg.FaceSearch.Threshold)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_DSN")
	assert.Contains(t, err.Error(), "VALET_JWT_SECRET")

	cfg.Database.DSN = "postgres://localhost/eventpilot"
	cfg.Auth.ValetTokenSecret = "secret"
	assert.NoError(t, cfg.Validate())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("VALET_JWT_TTL", "forever")

	_, err := Load()
	assert.Error(t, err)
}
