package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daimoniac/pkgstatus/internal/errors"
)

// FileConfig is the optional pkgstatus.yml. Built-in settings are overridden
// through x- keys in the defaults section.
type FileConfig struct {
	Defaults map[string]string `yaml:"defaults"`
	Warm     []WarmProject     `yaml:"warm"`
}

// ttlKeys maps x-ttl-* suffixes to cache key kinds
var ttlKeys = map[string]string{
	"project-status": "status",
	"attributes":     "attributes",
	"requests":       "requests",
	"repositories":   "repos",
	"monitor":        "monitor",
	"package-result": "pkgresult",
	"summary":        "summary",
	"directory":      "dir",
}

// ParseFile reads and parses a configuration file
func ParseFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTransientf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewPermanentf("failed to parse config YAML: %w", err)
	}

	for i := range cfg.Warm {
		cfg.Warm[i].Project = strings.TrimSpace(cfg.Warm[i].Project)
	}
	return &cfg, nil
}

// TTLs returns the cache TTL overrides keyed by cache key kind
func (c *FileConfig) TTLs() (map[string]time.Duration, error) {
	ttls := make(map[string]time.Duration)
	for key, value := range c.Defaults {
		name, ok := strings.CutPrefix(key, "x-ttl-")
		if !ok {
			continue
		}
		kind, ok := ttlKeys[name]
		if !ok {
			return nil, errors.NewPermanentf("unknown cache TTL %q", key)
		}
		d, err := parseInterval(value)
		if err != nil {
			return nil, errors.NewPermanentf("invalid %s: %w", key, err)
		}
		ttls[kind] = d
	}
	return ttls, nil
}

// GetWarmInterval returns x-warm-interval, zero when unset
func (c *FileConfig) GetWarmInterval() (time.Duration, error) {
	value, ok := c.Defaults["x-warm-interval"]
	if !ok || value == "" {
		return 0, nil
	}
	return parseInterval(value)
}
