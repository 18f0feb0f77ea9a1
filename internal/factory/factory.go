package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mcoot/rafflegrid/internal/config"
	"github.com/mcoot/rafflegrid/internal/dependencies/clock"
	"github.com/mcoot/rafflegrid/internal/dependencies/idgen"
	"github.com/mcoot/rafflegrid/internal/services/admin"
	"github.com/mcoot/rafflegrid/internal/services/audit"
	"github.com/mcoot/rafflegrid/internal/services/identity"
	"github.com/mcoot/rafflegrid/internal/services/reservation"
	"github.com/mcoot/rafflegrid/internal/services/seed"
	"github.com/mcoot/rafflegrid/internal/sse"
	"github.com/mcoot/rafflegrid/internal/storage"
	"github.com/mcoot/rafflegrid/internal/storage/memory"
	redisstorage "github.com/mcoot/rafflegrid/internal/storage/redis"
	"github.com/mcoot/rafflegrid/internal/storage/sqlite"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
	StorageTypeSQLite = config.StorageSQLite
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock
	IDGen idgen.Generator

	// Services
	IdentityService *identity.Service
	AdminService    *admin.Service
	Resolver        *audit.Resolver
	Registry        *reservation.Registry
	Hub             *sse.Hub
	Broadcaster     *sse.Broadcaster

	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sqlite")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// SQLitePath is the database file (required if StorageType is "sqlite")
	SQLitePath string

	HoldDuration       time.Duration
	CoordinatorIdleTTL time.Duration
	ResubscribeDelay   time.Duration

	// AdminPasswordHash is a bcrypt hash. Empty disables admin operations.
	AdminPasswordHash string

	AddressLookupURL     string
	AddressLookupTimeout time.Duration
}

// ConfigFrom builds a factory config from the environment config
func ConfigFrom(cfg config.Config, logger *slog.Logger) Config {
	factoryCfg := Config{
		Logger:               logger,
		StorageType:          cfg.StorageType,
		SQLitePath:           cfg.SQLitePath,
		HoldDuration:         cfg.HoldDuration,
		CoordinatorIdleTTL:   cfg.CoordinatorIdleTTL,
		ResubscribeDelay:     cfg.ResubscribeDelay,
		AdminPasswordHash:    cfg.AdminPasswordHash,
		AddressLookupURL:     cfg.AddressLookupURL,
		AddressLookupTimeout: cfg.AddressLookupTimeout,
	}
	if cfg.StorageType == StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = cfg.RedisURL
		if cfg.RedisKeyPrefix != "" {
			redisCfg.KeyPrefix = cfg.RedisKeyPrefix
		}
		factoryCfg.RedisConfig = &redisCfg
	}
	return factoryCfg
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	store, err := openStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	return newWithDependencies(store, clock.New(), idgen.New(), cfg, logger), nil
}

func openStorage(cfg Config, logger *slog.Logger) (storage.Storage, error) {
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		return memory.New(logger), nil
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig, logger)
		if err != nil {
			return nil, err
		}
		return redisStore, nil
	case StorageTypeSQLite:
		if cfg.SQLitePath == "" {
			return nil, errors.New("SQLitePath required when StorageType is sqlite")
		}
		sqliteStore, err := sqlite.Open(cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return sqliteStore, nil
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be 'memory', 'redis' or 'sqlite'", storageType)
	}
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, ids idgen.Generator, cfg Config, logger *slog.Logger) *App {
	resolver := audit.NewResolver(cfg.AddressLookupURL, cfg.AddressLookupTimeout, logger)
	registry := reservation.NewRegistry(store, reservation.Options{
		Clock:            clk,
		Resolver:         resolver,
		HoldDuration:     cfg.HoldDuration,
		ResubscribeDelay: cfg.ResubscribeDelay,
		Logger:           logger,
	}, cfg.CoordinatorIdleTTL)
	hub := sse.NewHub(logger)

	return &App{
		Storage:         store,
		Clock:           clk,
		IDGen:           ids,
		IdentityService: identity.New(ids),
		AdminService:    admin.New(cfg.AdminPasswordHash),
		Resolver:        resolver,
		Registry:        registry,
		Hub:             hub,
		Broadcaster:     sse.NewBroadcaster(hub, logger),
		logger:          logger,
	}
}

// Seed makes sure the grid has count slots
func (a *App) Seed(ctx context.Context, count int) (int, error) {
	return seed.Seed(ctx, a.Storage, count, a.Clock.Now(), a.logger)
}

// Close stops every coordinator and the event hub, then closes storage
func (a *App) Close() error {
	a.Registry.Close()
	a.Hub.Close()
	return a.Storage.Close()
}
