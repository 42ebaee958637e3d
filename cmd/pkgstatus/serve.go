package main

import (
	"context"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/daimoniac/pkgstatus/internal/api"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/warmer"
)

const healthCheckInterval = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the status views over HTTP and keep configured projects warm",
	Long: `Run the HTTP API, the metrics and health endpoints and the cache warmer
until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel)
	logger.Info("starting pkgstatus",
		"backend", cfg.Backend.URL,
		"cache", cfg.Cache.Type,
		"log_level", cfg.Observability.LogLevel)

	_ = observability.GetMetrics()
	logger.Debug("metrics initialized",
		"metrics_port", cfg.Observability.MetricsPort)

	healthChecker := observability.NewHealthChecker(logger)

	healthChecker.RegisterComponent("config")
	healthChecker.RegisterComponent("cache")
	healthChecker.RegisterOptionalComponent("warmer")
	if cfg.API.Enabled {
		healthChecker.RegisterComponent("api")
	}

	healthChecker.UpdateComponentHealth("config", observability.StatusHealthy, "")

	obsServer := observability.NewServer(
		cfg.Observability.MetricsPort,
		cfg.Observability.HealthCheckPort,
		logger,
		healthChecker,
	)

	go func() {
		if err := obsServer.Start(ctx); err != nil {
			logger.Error("observability server error",
				"error", err.Error())
		}
	}()

	a, err := newApp(cfg, logger)
	if err != nil {
		healthChecker.UpdateComponentHealth("cache", observability.StatusUnhealthy, err.Error())
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("error closing cache store",
				"error", err.Error())
		}
	}()

	observability.RegisterCacheCollector(a.store, cfg.Cache.Type, logger)
	go healthChecker.StartPeriodicChecks(ctx, healthCheckInterval, map[string]observability.HealthCheckFunc{
		"cache": a.storeCheck,
	})
	logger.Debug("cache initialized",
		"type", cfg.Cache.Type,
		"coalesce", cfg.Cache.Coalesce,
		"ttl_overrides", len(cfg.Cache.TTLs))

	cacheWarmer := warmer.NewWarmer(
		a.status,
		a.grids,
		a.cache,
		warmer.Config{
			Interval: cfg.Warmer.Interval,
			Projects: cfg.Warmer.Projects,
		},
		logger,
	)
	healthChecker.UpdateComponentHealth("warmer", observability.StatusHealthy, "")

	var apiServer *api.APIServer
	if cfg.API.Enabled {
		logger.Debug("initializing API server",
			"port", cfg.API.Port,
			"auth", cfg.API.APIKey != "")
		apiServer = api.NewAPIServer(
			&cfg.API,
			a.status,
			a.grids,
			a.cache,
			healthChecker,
			logger,
		)
		healthChecker.UpdateComponentHealth("api", observability.StatusHealthy, "")
	}

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Debug("starting cache warmer",
			"interval", cfg.Warmer.Interval,
			"projects", len(cfg.Warmer.Projects))
		if err := cacheWarmer.Start(ctx); err != nil && err != context.Canceled {
			healthChecker.UpdateComponentHealth("warmer", observability.StatusUnhealthy, err.Error())
			logger.Error("cache warmer error",
				"error", err.Error())
			errChan <- fmt.Errorf("cache warmer error: %w", err)
		}
		logger.Debug("cache warmer stopped")
	}()

	if apiServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Start(ctx); err != nil && err != context.Canceled {
				healthChecker.UpdateComponentHealth("api", observability.StatusUnhealthy, err.Error())
				logger.Error("API server error",
					"error", err.Error())
				errChan <- fmt.Errorf("API server error: %w", err)
			}
			logger.Debug("API server stopped")
		}()
	}

	logger.Info("all components started successfully")

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errChan:
		logger.Error("component error, initiating shutdown",
			"error", err.Error())
		cancel()
	}

	logger.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all components stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	if err := obsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down observability server",
			"error", err.Error())
	}

	logger.Info("shutdown complete")
	return nil
}
