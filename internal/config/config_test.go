package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, 30*time.Second, cfg.SweepInterval)
	assert.Equal(t, 200, cfg.SweepLimit)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RESERVATION_TTL", "5m")
	t.Setenv("SWEEP_LIMIT", "50")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Minute, cfg.ReservationTTL)
	assert.Equal(t, 50, cfg.SweepLimit)
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	t.Setenv("SWEEP_LIMIT", "-3")
	t.Setenv("RESERVATION_TTL", "soon")

	cfg := Load()
	assert.Equal(t, 200, cfg.SweepLimit)
	assert.Equal(t, 15*time.Minute, cfg.ReservationTTL)
}
