package factory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mcoot/geoseek/internal/api"
	"github.com/mcoot/geoseek/internal/broadcast"
	"github.com/mcoot/geoseek/internal/config"
	"github.com/mcoot/geoseek/internal/dependencies/clock"
	"github.com/mcoot/geoseek/internal/services/lifecycle"
	"github.com/mcoot/geoseek/internal/services/reaper"
	"github.com/mcoot/geoseek/internal/services/registry"
	"github.com/mcoot/geoseek/internal/services/scheduler"
	"github.com/mcoot/geoseek/internal/storage"
	"github.com/mcoot/geoseek/internal/storage/memory"
	redisstorage "github.com/mcoot/geoseek/internal/storage/redis"
	"github.com/mcoot/geoseek/internal/transport/ws"
)

// Storage type constants
const (
	StorageTypeMemory = config.StorageMemory
	StorageTypeRedis  = config.StorageRedis
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock clock.Clock

	// Services
	Registry  *registry.Registry
	Broadcast *broadcast.Manager
	Lifecycle *lifecycle.Handler
	Scheduler *scheduler.Scheduler
	// Reaper is nil when reaping is disabled
	Reaper *reaper.Reaper

	// Transport
	Realtime *ws.Handler

	cfg    Config
	logger *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config

	Registry  registry.Config
	Lifecycle lifecycle.Config
	// TickInterval defaults to scheduler.DefaultInterval
	TickInterval time.Duration
	// Reaper is only constructed when Reaper.After is positive
	Reaper reaper.Config
}

// ConfigFrom translates loaded server configuration into factory configuration
func ConfigFrom(c *config.Config, logger *slog.Logger) Config {
	cfg := Config{
		Logger:      logger,
		StorageType: c.Storage.Type,
		Registry: registry.Config{
			DefaultStartPolicy: c.Session.DefaultStartPolicy,
		},
		Lifecycle: lifecycle.Config{
			LateJoinPolicy: c.Session.LateJoinPolicy,
		},
		TickInterval: c.Session.TickInterval,
		Reaper: reaper.Config{
			After:    c.Session.ReapAfter,
			Interval: c.Session.ReapInterval,
		},
	}
	if c.Storage.Type == config.StorageRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.Storage.RedisURL
		redisCfg.SummaryTTL = c.Storage.SummaryTTL
		cfg.RedisConfig = &redisCfg
	}
	return cfg
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Create storage based on type
	var store storage.Storage
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	if cfg.Registry == (registry.Config{}) {
		cfg.Registry = registry.DefaultConfig()
	}

	return newWithDependencies(store, clock.New(), cfg), nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(store storage.Storage, clk clock.Clock, cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	cfg.Logger = logger

	reg := registry.New(clk, cfg.Registry, logger)
	bc := broadcast.NewManager(logger)
	lc := lifecycle.New(reg, bc, clk, cfg.Lifecycle, logger)
	sched := scheduler.New(reg, bc, clk, cfg.TickInterval, logger)

	var rp *reaper.Reaper
	if cfg.Reaper.After > 0 {
		rp = reaper.New(reg, bc, store, clk, cfg.Reaper, logger)
	}

	return &App{
		Storage:   store,
		Clock:     clk,
		Registry:  reg,
		Broadcast: bc,
		Lifecycle: lc,
		Scheduler: sched,
		Reaper:    rp,
		Realtime:  ws.NewHandler(lc, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Router builds the HTTP handler serving the REST API and the realtime endpoint
func (a *App) Router(allowedOrigins []string) http.Handler {
	return api.NewRouter(api.RouterConfig{
		Logger:         a.logger,
		Registry:       a.Registry,
		Storage:        a.Storage,
		LateJoinPolicy: a.cfg.Lifecycle.LateJoinPolicy,
		Realtime:       a.Realtime,
		AllowedOrigins: allowedOrigins,
	})
}

// Run drives the scheduler and, when enabled, the reaper until ctx is cancelled
func (a *App) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.Scheduler.Run(ctx)
	}()
	if a.Reaper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Reaper.Run(ctx)
		}()
	}
	wg.Wait()
}

// Close releases storage resources
func (a *App) Close() error {
	if c, ok := a.Storage.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
