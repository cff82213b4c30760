package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable LoadConfig reads so the host environment
// cannot leak into a test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"STORE_DRIVER", "MONGO_URI", "MONGO_DB",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_POOL_SIZE",
		"JWT_SECRET", "JWT_TOKEN_DURATION", "COOKIE_SECURE",
		"PORT", "CORS_ALLOWED_ORIGINS", "UPLOAD_DIR", "UPLOAD_MAX_BYTES", "RECONCILE_INTERVAL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, "mongodb://127.0.0.1:27017", cfg.Store.Mongo.URI)
	assert.Equal(t, "socialapp", cfg.Store.Mongo.Database)
	assert.Nil(t, cfg.Store.Postgres)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenDuration)
	assert.False(t, cfg.Auth.CookieSecure)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Empty(t, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, int64(5<<20), cfg.Upload.MaxBytes)
	assert.Equal(t, 10*time.Minute, cfg.ReconcileInterval)
}

func TestLoadConfigRequiresSecret(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadConfigPostgres(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DB_USER", "social")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "socialapp")
	t.Setenv("DB_POOL_SIZE", "500")

	_, err := LoadConfig()
	require.Error(t, err, "oversized pool must be reported")
	assert.Contains(t, err.Error(), "DB_POOL_SIZE")

	t.Setenv("DB_POOL_SIZE", "20")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg.Store.Postgres)
	assert.Equal(t, 20, cfg.Store.Postgres.MaxSize)
	assert.Equal(t, "postgres://social:pw@localhost:5432/socialapp?sslmode=disable", cfg.Store.Postgres.DSN())
}

func TestLoadConfigCollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("JWT_TOKEN_DURATION", "forever")
	t.Setenv("UPLOAD_MAX_BYTES", "lots")

	_, err := LoadConfig()
	require.Error(t, err)
	for _, want := range []string{"JWT_SECRET", "DB_USER", "DB_PASSWORD", "DB_NAME", "JWT_TOKEN_DURATION", "UPLOAD_MAX_BYTES"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", "couchdb")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}

func TestLoadConfigParsesLists(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example, ,https://b.example ")
	t.Setenv("RECONCILE_INTERVAL", "0")
	t.Setenv("COOKIE_SECURE", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSAllowedOrigins)
	assert.Zero(t, cfg.ReconcileInterval)
	assert.True(t, cfg.Auth.CookieSecure)
}
