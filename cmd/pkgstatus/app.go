package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/daimoniac/pkgstatus/internal/backend"
	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/config"
	"github.com/daimoniac/pkgstatus/internal/monitor"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
)

// app holds the components shared by every command
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   cache.Store
	cache   *cache.Cache
	backend *backend.HTTPClient
	status  *projectstatus.Assembler
	grids   *monitor.Builder
	closers []func() error
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	logger.Debug("initializing cache store",
		"type", cfg.Cache.Type)
	store, closer, err := newStore(cfg.Cache)
	if err != nil {
		return nil, err
	}
	a.store = store
	if closer != nil {
		a.closers = append(a.closers, closer)
	}

	opts := []cache.Option{cache.WithTTLOverrides(cfg.Cache.TTLs)}
	if cfg.Cache.Coalesce {
		opts = append(opts, cache.WithCoalescing())
	}
	a.cache = cache.New(store, logger, opts...)

	backendCfg := backend.DefaultConfig()
	backendCfg.BaseURL = cfg.Backend.URL
	backendCfg.Username = cfg.Backend.Username
	backendCfg.Password = cfg.Backend.Password
	backendCfg.Timeout = cfg.Backend.Timeout
	backendCfg.RetryAttempts = cfg.Backend.RetryAttempts
	backendCfg.RetryBackoff = cfg.Backend.RetryBackoff

	a.backend, err = backend.NewHTTPClient(backendCfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize backend client: %w", err)
	}

	versions, err := projectstatus.NewVersionComparer(cfg.Status.VersionCompare)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.status = projectstatus.NewAssembler(a.backend, a.cache, logger,
		projectstatus.WithConcurrency(cfg.Status.DivergenceConcurrency),
		projectstatus.WithVersionComparer(versions))
	a.grids = monitor.NewBuilder(a.backend, a.cache, logger)

	return a, nil
}

// newStore opens the configured cache substrate. The returned closer may be nil.
func newStore(cfg config.CacheConfig) (cache.Store, func() error, error) {
	switch cfg.Type {
	case config.CacheMemory:
		return cache.NewMemoryStore(), nil, nil
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return cache.NewRedisStore(client, cfg.RedisPrefix), client.Close, nil
	case config.CacheSQLite:
		store, err := cache.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize sqlite cache: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache type: %s", cfg.Type)
	}
}

// storeCheck reports whether the cache store answers
func (a *app) storeCheck(ctx context.Context) error {
	if pinger, ok := a.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	_, err := a.store.Len(ctx)
	return err
}

// Close releases the cache store
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
