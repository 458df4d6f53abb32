package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("PairingCodeTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{PairingCodeTTLSeconds: 300}
		assert.Equal(t, 300*time.Second, cfg.PairingCodeTTL())
	})

	t.Run("EphemeralTokenTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{EphemeralTokenTTLSeconds: 3600}
		assert.Equal(t, time.Hour, cfg.EphemeralTokenTTL())
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects unknown cache backend", func(t *testing.T) {
		cfg := &Config{CacheBackend: "etcd"}
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("redis backend requires redis url", func(t *testing.T) {
		cfg := &Config{CacheBackend: CacheBackendRedis}
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("memory backend needs no redis url", func(t *testing.T) {
		cfg := &Config{CacheBackend: CacheBackendMemory}
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("production rejects short owner session secret", func(t *testing.T) {
		cfg := &Config{
			CacheBackend:       CacheBackendRedis,
			RedisURL:           "rediss://example",
			OwnerSessionSecret: "short",
		}
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("production rejects known weak secret", func(t *testing.T) {
		cfg := &Config{
			CacheBackend:       CacheBackendMemory,
			OwnerSessionSecret: "change-me",
		}
		assert.Error(t, cfg.Validate(true))
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                        os.Getenv("PORT"),
		"DATABASE_URL":                os.Getenv("DATABASE_URL"),
		"REDIS_URL":                   os.Getenv("REDIS_URL"),
		"CACHE_BACKEND":               os.Getenv("CACHE_BACKEND"),
		"PAIRING_CODE_TTL_SECONDS":    os.Getenv("PAIRING_CODE_TTL_SECONDS"),
		"EPHEMERAL_TOKEN_TTL_SECONDS": os.Getenv("EPHEMERAL_TOKEN_TTL_SECONDS"),
		"PAIRING_BASE_URL":            os.Getenv("PAIRING_BASE_URL"),
		"LOG_LEVEL":                   os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Unsetenv("PORT")
		os.Unsetenv("REDIS_URL")
		os.Unsetenv("CACHE_BACKEND")
		os.Unsetenv("PAIRING_CODE_TTL_SECONDS")
		os.Unsetenv("EPHEMERAL_TOKEN_TTL_SECONDS")
		os.Unsetenv("PAIRING_BASE_URL")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, CacheBackendRedis, cfg.CacheBackend)
		assert.Equal(t, 300, cfg.PairingCodeTTLSeconds)
		assert.Equal(t, 3600, cfg.EphemeralTokenTTLSeconds)
		assert.Equal(t, "http://localhost:8080", cfg.PairingBaseURL)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("PORT", "3000")
		os.Setenv("CACHE_BACKEND", "memory")
		os.Setenv("PAIRING_CODE_TTL_SECONDS", "120")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, CacheBackendMemory, cfg.CacheBackend)
		assert.Equal(t, 120, cfg.PairingCodeTTLSeconds)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails when database url missing", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")

		_, err := Load()
		assert.Error(t, err)
	})
}
