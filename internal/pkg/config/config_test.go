package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/pinmap/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("pinmap-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "pinmap-test", cfg.Telemetry.ServiceName)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	assert.Equal(t, 500, cfg.Reconcile.BatchSize)
	assert.Equal(t, "pinmap-reconcile", cfg.Temporal.TaskQueue)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PINMAP_SERVER_PORT", "9090")
	t.Setenv("PINMAP_DATABASE_HOST", "db.internal")
	t.Setenv("PINMAP_AUTH_ACCESS_TTL", "5m")

	cfg, err := config.Load("pinmap-test")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := config.Config{}
	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.port", "database.host", "nats.url", "reconcile.batch_size"} {
		assert.True(t, strings.Contains(err.Error(), want), "missing %q in %v", want, err)
	}
}

func TestAuthConfig_Validate(t *testing.T) {
	auth := config.AuthConfig{JWTSecret: "short", AccessTTL: time.Minute, RefreshTTL: time.Hour}
	assert.Error(t, auth.Validate())

	auth.JWTSecret = strings.Repeat("k", 32)
	assert.NoError(t, auth.Validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := config.DatabaseConfig{User: "pin", Password: "p@ss/word", Host: "db", Port: 5432, DBName: "pinmap", SSLMode: "disable"}
	assert.Equal(t, "postgres://pin:p%40ss%2Fword@db:5432/pinmap?sslmode=disable", d.DSN())
}
