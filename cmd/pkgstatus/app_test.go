package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/config"
	"github.com/daimoniac/pkgstatus/internal/monitor"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Backend: config.BackendConfig{
			URL:           "https://api.example.org",
			Timeout:       time.Second,
			RetryAttempts: 1,
		},
		Cache: config.CacheConfig{
			Type:     config.CacheMemory,
			Coalesce: true,
			TTLs:     map[string]time.Duration{"summary": time.Second},
		},
		Status: config.StatusConfig{
			DivergenceConcurrency: 2,
			VersionCompare:        "semver",
		},
	}
}

func TestNewStore(t *testing.T) {
	store, closer, err := newStore(config.CacheConfig{Type: config.CacheMemory})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*cache.MemoryStore); !ok || closer != nil {
		t.Errorf("memory store = %T, closer set %v", store, closer != nil)
	}

	store, closer, err = newStore(config.CacheConfig{
		Type:       config.CacheSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "cache.db"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*cache.SQLiteStore); !ok {
		t.Errorf("sqlite store = %T", store)
	}
	if err := closer(); err != nil {
		t.Errorf("close: %v", err)
	}

	store, closer, err = newStore(config.CacheConfig{Type: config.CacheRedis, RedisAddr: "localhost:0", RedisPrefix: "t:"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*cache.RedisStore); !ok {
		t.Errorf("redis store = %T", store)
	}
	closer()

	if _, _, err := newStore(config.CacheConfig{Type: "postgres"}); err == nil {
		t.Error("expected error for unsupported cache type")
	}
}

func TestNewApp(t *testing.T) {
	a, err := newApp(testConfig(t), observability.NewLogger("error"))
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.status == nil || a.grids == nil || a.backend == nil {
		t.Fatal("app components not initialized")
	}
	if err := a.storeCheck(context.Background()); err != nil {
		t.Errorf("storeCheck() = %v", err)
	}
}

func TestNewAppRejectsUnknownComparison(t *testing.T) {
	cfg := testConfig(t)
	cfg.Status.VersionCompare = "calendar"
	if _, err := newApp(cfg, observability.NewLogger("error")); err == nil {
		t.Error("expected error for unknown version comparison")
	}
}

func TestMonitorQuery(t *testing.T) {
	saved := monitorFlags
	defer func() { monitorFlags = saved }()

	monitorFlags.name = "gcc"
	monitorFlags.lastBuild = true
	monitorFlags.noDefaults = true
	monitorFlags.statuses = []string{"failed", "unresolvable"}
	monitorFlags.hide = []string{"succeeded"}
	monitorFlags.archs = []string{"x86_64"}
	monitorFlags.repos = []string{"standard"}

	q := monitorQuery("home:foo")
	if q.Project != "home:foo" || q.NameFilter != "gcc" || !q.LastBuildOnly || q.Defaults {
		t.Errorf("unexpected query %+v", q)
	}
	if q.Statuses[types.StateFailed] != monitor.ExplicitInclude ||
		q.Statuses[types.StateUnresolvable] != monitor.ExplicitInclude ||
		q.Statuses[types.StateSucceeded] != monitor.ExplicitExclude {
		t.Errorf("statuses = %v", q.Statuses)
	}
	if q.Archs["x86_64"] != monitor.ExplicitInclude || q.Repos["standard"] != monitor.ExplicitInclude {
		t.Errorf("axes = %v %v", q.Archs, q.Repos)
	}
	if q.Archs["i586"] != monitor.UseDefault {
		t.Errorf("unnamed arch = %v, want default", q.Archs["i586"])
	}
}
