// Package requests correlates pending submit requests with the packages they target.
package requests

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/daimoniac/pkgstatus/internal/backend"
	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

// Index maps "project/package" targets to the ids of the new submit requests aimed at them.
// It is built once per status computation and read-only afterwards.
type Index struct {
	submits map[string][]int
	total   int
	skipped int
}

func targetKey(project, pkg string) string {
	return project + "/" + pkg
}

// BuildIndex indexes raw requests. Requests whose id is not an integer are
// skipped and logged; they never abort the index.
func BuildIndex(raw []types.Request, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{submits: make(map[string][]int)}

	for _, r := range raw {
		id, err := strconv.Atoi(strings.TrimSpace(r.ID))
		if err != nil {
			idx.skipped++
			observability.GetMetrics().MalformedRecords.WithLabelValues("request").Inc()
			logger.Warn("skipping request with malformed id",
				"error", errors.NewMalformed("request id "+strconv.Quote(r.ID), err).Error())
			continue
		}
		idx.total++

		if r.ActionType != types.ActionSubmit || r.TargetProject == "" {
			continue
		}
		key := targetKey(r.TargetProject, r.TargetPackage)
		idx.submits[key] = append(idx.submits[key], id)
	}
	return idx
}

// RequestsFrom returns the requests about to be merged into project/pkg
func (idx *Index) RequestsFrom(project, pkg string) []int {
	return idx.lookup(project, pkg)
}

// RequestsTo returns the requests targeting the devel package
func (idx *Index) RequestsTo(develProject, develPkg string) []int {
	return idx.lookup(develProject, develPkg)
}

// lookup returns a copy so records never share the index slices
func (idx *Index) lookup(project, pkg string) []int {
	ids := idx.submits[targetKey(project, pkg)]
	out := make([]int, len(ids))
	copy(out, ids)
	return out
}

// Len is the number of requests with a valid id
func (idx *Index) Len() int {
	return idx.total
}

// Skipped is the number of requests dropped because of a malformed id
func (idx *Index) Skipped() int {
	return idx.skipped
}

// Correlator loads the system wide request collection through the cache
type Correlator struct {
	backend backend.Client
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewCorrelator creates a correlator
func NewCorrelator(client backend.Client, c *cache.Cache, logger *slog.Logger) *Correlator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{backend: client, cache: c, logger: logger}
}

// Index fetches the new requests (shared by all projects, cached) and indexes them
func (c *Correlator) Index(ctx context.Context) (*Index, error) {
	raw, err := cache.Fetch(ctx, c.cache, cache.RequestsKey(), cache.TTLRequests, c.backend.NewRequests)
	if err != nil {
		return nil, err
	}
	return BuildIndex(raw, c.logger), nil
}
