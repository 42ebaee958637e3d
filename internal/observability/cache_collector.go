package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	cacheCollectorOnce     sync.Once
	cacheCollectorInstance *CacheCollector
)

// EntryCounter is implemented by cache stores
type EntryCounter interface {
	Len(ctx context.Context) (int, error)
}

// CacheCollector reports the number of stored cache entries when /metrics is scraped
type CacheCollector struct {
	counter     EntryCounter
	backend     string
	logger      *slog.Logger
	entriesDesc *prometheus.Desc
}

// NewCacheCollector creates a collector over counter; backend labels the store type
func NewCacheCollector(counter EntryCounter, backend string, logger *slog.Logger) *CacheCollector {
	return &CacheCollector{
		counter: counter,
		backend: backend,
		logger:  logger,
		entriesDesc: prometheus.NewDesc(
			"pkgstatus_cache_entries",
			"Current number of entries held by the cache store",
			[]string{"backend"},
			nil,
		),
	}
}

// RegisterCacheCollector registers the cache collector exactly once
func RegisterCacheCollector(counter EntryCounter, backend string, logger *slog.Logger) {
	cacheCollectorOnce.Do(func() {
		cacheCollectorInstance = NewCacheCollector(counter, backend, logger)
		prometheus.MustRegister(cacheCollectorInstance)
		logger.Debug("cache metrics collector registered", "backend", backend)
	})
}

// Describe sends the metric descriptors to the provided channel
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entriesDesc
}

// Collect queries the store and sends the current entry count
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	// Do not block the /metrics endpoint on a slow store.
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	n, err := c.counter.Len(ctx)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug("cache entry count timed out", "error", err)
		} else {
			c.logger.Error("failed to collect cache entry count", "error", err)
		}
		return
	}

	ch <- prometheus.MustNewConstMetric(
		c.entriesDesc,
		prometheus.GaugeValue,
		float64(n),
		c.backend,
	)
}
