package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/daimoniac/pkgstatus/internal/errors"
)

// Cache substrates
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheSQLite = "sqlite"
)

// Load loads configuration from environment variables and pkgstatus.yml defaults.
// A missing file is not an error; a file that does not parse is.
func Load() (*Config, error) {
	filePath := getEnv("PKGSTATUS_CONFIG", "pkgstatus.yml")

	var (
		ttls         map[string]time.Duration
		warmInterval time.Duration
		warm         []WarmProject
	)

	if _, err := os.Stat(filePath); err == nil {
		fileCfg, err := ParseFile(filePath)
		if err != nil {
			return nil, err
		}
		if ttls, err = fileCfg.TTLs(); err != nil {
			return nil, err
		}
		if warmInterval, err = fileCfg.GetWarmInterval(); err != nil {
			return nil, errors.NewPermanentf("invalid x-warm-interval: %w", err)
		}
		warm = fileCfg.Warm
	}

	if warmInterval == 0 {
		warmInterval = 5 * time.Minute
	}

	cfg := &Config{
		FilePath: filePath,
		Backend: BackendConfig{
			URL:           getEnv("BACKEND_URL", "https://api.opensuse.org"),
			Username:      getEnv("BACKEND_USER", ""),
			Password:      getEnv("BACKEND_PASSWORD", ""),
			Timeout:       getEnvDuration("BACKEND_TIMEOUT", 30*time.Second),
			RetryAttempts: getEnvInt("BACKEND_RETRY_ATTEMPTS", 3),
			RetryBackoff:  getEnvDuration("BACKEND_RETRY_BACKOFF", time.Second),
		},
		Cache: CacheConfig{
			Type:          getEnv("CACHE_TYPE", CacheMemory),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			RedisPrefix:   getEnv("REDIS_PREFIX", "pkgstatus:"),
			SQLitePath:    getEnv("SQLITE_PATH", "pkgstatus.db"),
			Coalesce:      getEnvBool("CACHE_COALESCE", true),
			TTLs:          ttls,
		},
		Status: StatusConfig{
			DivergenceConcurrency: getEnvInt("DIVERGENCE_CONCURRENCY", 4),
			VersionCompare:        getEnv("VERSION_COMPARE", "lexical"),
		},
		Warmer: WarmerConfig{
			Interval: warmInterval,
			Projects: warm,
		},
		API: APIConfig{
			Enabled: getEnvBool("API_ENABLED", true),
			Port:    getEnvInt("API_PORT", 8080),
			APIKey:  getEnv("API_KEY", ""),
		},
		Export: ExportConfig{
			Bucket:         getEnv("S3_BUCKET", ""),
			Prefix:         getEnv("S3_PREFIX", "pkgstatus"),
			Region:         getEnv("S3_REGION", "us-east-1"),
			Endpoint:       getEnv("S3_ENDPOINT", ""),
			AccessKey:      getEnv("S3_ACCESS_KEY", ""),
			SecretKey:      getEnv("S3_SECRET_KEY", ""),
			ForcePathStyle: getEnvBool("S3_FORCE_PATH_STYLE", false),
		},
		Observability: ObservabilityConfig{
			LogLevel:        getEnv("LOG_LEVEL", "info"),
			MetricsPort:     getEnvInt("METRICS_PORT", 9090),
			HealthCheckPort: getEnvInt("HEALTH_CHECK_PORT", 8081),
		},
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return errors.NewPermanentf("BACKEND_URL environment variable is required (e.g., https://api.opensuse.org)")
	}

	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.NewPermanentf("invalid backend URL: %s", c.Backend.URL)
	}

	if c.Backend.RetryAttempts < 1 {
		return errors.NewPermanentf("backend retry attempts must be at least 1, got %d", c.Backend.RetryAttempts)
	}

	switch c.Cache.Type {
	case CacheMemory:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return errors.NewPermanentf("redis address is required when using redis cache")
		}
	case CacheSQLite:
		if c.Cache.SQLitePath == "" {
			return errors.NewPermanentf("sqlite path is required when using sqlite cache")
		}
	default:
		return errors.NewPermanentf("invalid cache type: %s (must be memory, redis, or sqlite)", c.Cache.Type)
	}

	if c.Status.DivergenceConcurrency < 1 {
		return errors.NewPermanentf("divergence concurrency must be at least 1, got %d", c.Status.DivergenceConcurrency)
	}

	if c.Status.VersionCompare != "lexical" && c.Status.VersionCompare != "semver" {
		return errors.NewPermanentf("invalid version comparison: %s (must be lexical or semver)", c.Status.VersionCompare)
	}

	for i, p := range c.Warmer.Projects {
		if p.Project == "" {
			return errors.NewPermanentf("warm entry %d has no project", i)
		}
	}

	return nil
}

// ValidateExport checks the settings needed by the S3 exporter
func (c *Config) ValidateExport() error {
	if c.Export.Bucket == "" {
		return errors.NewPermanentf("S3_BUCKET environment variable is required for export")
	}
	if (c.Export.AccessKey == "") != (c.Export.SecretKey == "") {
		return errors.NewPermanentf("S3_ACCESS_KEY and S3_SECRET_KEY must be set together")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
