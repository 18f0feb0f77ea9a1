// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable name
const EnvPrefix = "RAFFLEGRID_"

// Storage backends
const (
	StorageMemory = "memory"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

// Config holds server settings
type Config struct {
	Host string `env:"HOST" envDefault:"0.0.0.0"`
	Port int    `env:"PORT" envDefault:"8080"`

	StorageType    string `env:"STORAGE_TYPE" envDefault:"memory"`
	RedisURL       string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"rafflegrid"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"data/rafflegrid.db"`

	SlotCount    int           `env:"SLOT_COUNT" envDefault:"100"`
	HoldDuration time.Duration `env:"HOLD_DURATION" envDefault:"5m"`

	AdminPasswordHash string `env:"ADMIN_PASSWORD_HASH"`

	AddressLookupURL     string        `env:"ADDRESS_LOOKUP_URL" envDefault:"https://api.ipify.org?format=json"`
	AddressLookupTimeout time.Duration `env:"ADDRESS_LOOKUP_TIMEOUT" envDefault:"3s"`

	CoordinatorIdleTTL time.Duration `env:"COORDINATOR_IDLE_TTL" envDefault:"30m"`
	ResubscribeDelay   time.Duration `env:"RESUBSCRIBE_DELAY" envDefault:"1s"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment
func Load() (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix})
}

// LoadFrom parses an explicit environment, for tests
func LoadFrom(environment map[string]string) (Config, error) {
	return parse(env.Options{Prefix: EnvPrefix, Environment: environment})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the tags cannot
func (c Config) Validate() error {
	switch c.StorageType {
	case StorageMemory, StorageRedis, StorageSQLite:
	default:
		return fmt.Errorf("unknown storage type %q", c.StorageType)
	}
	if c.SlotCount <= 0 {
		return fmt.Errorf("slot count must be positive, got %d", c.SlotCount)
	}
	if c.HoldDuration <= 0 {
		return fmt.Errorf("hold duration must be positive, got %s", c.HoldDuration)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Addr returns the listen address
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
