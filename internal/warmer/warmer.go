// Package warmer keeps the views of configured projects cached by assembling
// them on a fixed interval.
package warmer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/daimoniac/pkgstatus/internal/config"
	"github.com/daimoniac/pkgstatus/internal/monitor"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
)

// Warmer periodically recomputes views so interactive requests find them cached
type Warmer interface {
	// Start begins the warming loop
	Start(ctx context.Context) error

	// Warm performs a single warming cycle
	Warm(ctx context.Context) error
}

// StatusAssembler builds project status views
type StatusAssembler interface {
	Assemble(ctx context.Context, opts projectstatus.Options) (*projectstatus.View, error)
}

// GridBuilder builds monitor grids and summaries
type GridBuilder interface {
	Build(ctx context.Context, q monitor.Query) (*monitor.Grid, error)
	Summary(ctx context.Context, project string) (*monitor.Summary, error)
}

// Purger drops expired cache entries
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// Config contains configuration for the warmer
type Config struct {
	Interval time.Duration
	Projects []config.WarmProject
}

// warmerImpl implements the Warmer interface
type warmerImpl struct {
	status   StatusAssembler
	grids    GridBuilder
	purger   Purger
	interval time.Duration
	projects []config.WarmProject
	logger   *slog.Logger
}

// NewWarmer creates a new cache warmer. purger may be nil.
func NewWarmer(
	status StatusAssembler,
	grids GridBuilder,
	purger Purger,
	config Config,
	logger *slog.Logger,
) Warmer {
	if logger == nil {
		logger = slog.Default()
	}
	return &warmerImpl{
		status:   status,
		grids:    grids,
		purger:   purger,
		interval: config.Interval,
		projects: config.Projects,
		logger:   logger,
	}
}

// Start begins the warming loop. It returns when ctx is done.
func (w *warmerImpl) Start(ctx context.Context) error {
	if len(w.projects) == 0 {
		w.logger.Info("no projects to warm, cache warmer idle")
		<-ctx.Done()
		return ctx.Err()
	}

	w.logger.Info("starting cache warmer",
		"interval", w.interval.String(),
		"projects", len(w.projects))

	// Perform initial warming
	if err := w.Warm(ctx); err != nil {
		w.logger.Error("initial warming failed",
			"error", err.Error())
	}

	// Wait for the interval after each cycle completes
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cache warmer shutting down")
			return ctx.Err()
		case <-time.After(w.interval):
			if err := w.Warm(ctx); err != nil {
				w.logger.Error("warming cycle failed",
					"error", err.Error())
			}
		}
	}
}

// Warm performs a single warming cycle. Failing projects are logged and
// skipped; the cycle reports an error only when every project failed.
func (w *warmerImpl) Warm(ctx context.Context) error {
	metrics := observability.GetMetrics()
	metrics.WarmCycles.Inc()
	start := time.Now()

	w.logger.Debug("starting warming cycle",
		"projects", len(w.projects))

	failed := 0
	for _, p := range w.projects {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := w.warmProject(ctx, p); err != nil {
			failed++
			metrics.WarmErrors.Inc()
			w.logger.Error("failed to warm project",
				"project", p.Project,
				"error", err.Error())
			continue
		}
	}

	if w.purger != nil {
		if n, err := w.purger.PurgeExpired(ctx); err != nil {
			w.logger.Warn("failed to purge expired cache entries",
				"error", err.Error())
		} else if n > 0 {
			w.logger.Debug("purged expired cache entries",
				"removed", n)
		}
	}

	w.logger.Info("warming cycle completed",
		"projects", len(w.projects),
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds())

	if failed > 0 && failed == len(w.projects) {
		return fmt.Errorf("all %d projects failed to warm", failed)
	}
	return nil
}

// warmProject assembles the views of one project through the cache
func (w *warmerImpl) warmProject(ctx context.Context, p config.WarmProject) error {
	opts := projectstatus.DefaultOptions(p.Project)
	opts.IncludeVersions = p.IncludeVersions

	view, err := w.status.Assemble(ctx, opts)
	if err != nil {
		return fmt.Errorf("status view: %w", err)
	}

	if _, err := w.grids.Summary(ctx, p.Project); err != nil {
		return fmt.Errorf("summary view: %w", err)
	}

	if p.Monitor {
		if _, err := w.grids.Build(ctx, monitor.NewQuery(p.Project)); err != nil {
			return fmt.Errorf("monitor view: %w", err)
		}
	}

	w.logger.Debug("project warmed",
		"project", p.Project,
		"packages", len(view.Packages))
	return nil
}
