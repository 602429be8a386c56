package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCSV(t *testing.T) {
	assert.Nil(t, CSV(""))
	assert.Equal(t, []string{"a:9092", "b:9092"}, CSV(" a:9092, ,b:9092 "))
}

func TestEnvDurationDefault(t *testing.T) {
	t.Setenv("X_TIMEOUT", "750ms")
	assert.Equal(t, 750*time.Millisecond, EnvDurationDefault("X_TIMEOUT", time.Second))

	t.Setenv("X_TIMEOUT", "2500")
	assert.Equal(t, 2500*time.Millisecond, EnvDurationDefault("X_TIMEOUT", time.Second))

	t.Setenv("X_TIMEOUT", "soon")
	assert.Equal(t, time.Second, EnvDurationDefault("X_TIMEOUT", time.Second))
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("ORDERS_PAGE_LIMIT", "")
	t.Setenv("OWNER_TEXT_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 50, cfg.OrdersPageLimit)
	assert.Equal(t, 10*time.Second, cfg.AdminQueryTimeout)
	assert.True(t, cfg.OwnerTextOn)
}
