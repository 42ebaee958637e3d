package config

import (
	"time"
)

// Config represents the complete application configuration
type Config struct {
	FilePath      string
	Backend       BackendConfig
	Cache         CacheConfig
	Status        StatusConfig
	Warmer        WarmerConfig
	API           APIConfig
	Export        ExportConfig
	Observability ObservabilityConfig
}

// BackendConfig configures the build service connection
type BackendConfig struct {
	URL           string
	Username      string
	Password      string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
}

// CacheConfig selects the cache substrate and its TTL overrides
type CacheConfig struct {
	Type          string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	SQLitePath    string
	Coalesce      bool

	// TTLs overrides entry lifetimes by key kind (status, attributes, ...)
	TTLs map[string]time.Duration
}

// StatusConfig tunes the status assembly
type StatusConfig struct {
	DivergenceConcurrency int
	VersionCompare        string
}

// WarmerConfig configures background cache warming
type WarmerConfig struct {
	Interval time.Duration
	Projects []WarmProject
}

// WarmProject is one project kept warm
type WarmProject struct {
	Project         string `yaml:"project"`
	IncludeVersions bool   `yaml:"include-versions"`
	Monitor         bool   `yaml:"monitor"`
}

// APIConfig configures the HTTP API server
type APIConfig struct {
	Enabled bool
	Port    int
	APIKey  string
}

// ExportConfig configures the S3 snapshot exporter
type ExportConfig struct {
	Bucket         string
	Prefix         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	ForcePathStyle bool
}

// ObservabilityConfig configures logging and metrics
type ObservabilityConfig struct {
	LogLevel        string
	MetricsPort     int
	HealthCheckPort int
}
