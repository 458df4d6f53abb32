package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`

	// CacheBackend selects where pairing codes and ephemeral tokens live.
	// "memory" is a single-instance convenience; any multi-instance
	// deployment must use "redis".
	CacheBackend string `env:"CACHE_BACKEND" envDefault:"redis"`

	OwnerSessionSecret string `env:"OWNER_SESSION_SECRET"`
	PairingBaseURL     string `env:"PAIRING_BASE_URL" envDefault:"http://localhost:8080"`

	PairingCodeTTLSeconds    int `env:"PAIRING_CODE_TTL_SECONDS" envDefault:"300"`
	EphemeralTokenTTLSeconds int `env:"EPHEMERAL_TOKEN_TTL_SECONDS" envDefault:"3600"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PairingCodeTTL() time.Duration {
	return time.Duration(c.PairingCodeTTLSeconds) * time.Second
}

func (c *Config) EphemeralTokenTTL() time.Duration {
	return time.Duration(c.EphemeralTokenTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q or %q", CacheBackendMemory, CacheBackendRedis)
	}

	if c.CacheBackend == CacheBackendRedis && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when CACHE_BACKEND=redis")
	}

	if isProduction {
		if err := validateSecret("OWNER_SESSION_SECRET", c.OwnerSessionSecret); err != nil {
			return err
		}
		if c.CacheBackend == CacheBackendMemory {
			log.Warn().Msg("CACHE_BACKEND=memory in production: pairing codes are lost on restart and not shared across instances")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
