package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("AUTHORIZE_TIMEOUT", "")
	t.Setenv("GATEWAY_MODE", "")

	cfg := Load()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 30*time.Second, cfg.AuthorizeTimeout)
	assert.Equal(t, "sandbox", cfg.Gateway.Mode)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_ADDR", "k1:9092, k2:9092,,")
	t.Setenv("AUTHORIZE_TIMEOUT", "1500ms")
	t.Setenv("IDEMPOTENCY_TTL", "90")
	t.Setenv("STATUS_CACHE_TTL", "not-a-duration")
	t.Setenv("GATEWAY_MODE", "WOMPI")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 1500*time.Millisecond, cfg.AuthorizeTimeout)
	assert.Equal(t, 90*time.Second, cfg.IdempotencyTTL)
	assert.Equal(t, 5*time.Minute, cfg.StatusCacheTTL)
	assert.Equal(t, "wompi", cfg.Gateway.Mode)
}
