// Package monitor builds the repository × architecture × package status grid
// of a project, plus the single-package and summary variants.
package monitor

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/daimoniac/pkgstatus/internal/backend"
	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/namefilter"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

// Query selects what the monitor grid shows
type Query struct {
	Project       string
	NameFilter    string
	LastBuildOnly bool

	// Defaults fills every UseDefault selection with the default policy.
	// Without it only explicitly included values are shown.
	Defaults bool
	Statuses map[types.BuildState]Selection
	Archs    map[string]Selection
	Repos    map[string]Selection
}

// NewQuery returns a query in defaults mode
func NewQuery(project string) Query {
	return Query{
		Project:  project,
		Defaults: true,
		Statuses: make(map[types.BuildState]Selection),
		Archs:    make(map[string]Selection),
		Repos:    make(map[string]Selection),
	}
}

// Grid is the monitor view, ready for tabular rendering
type Grid struct {
	Project string `json:"project"`

	// NoResults is set when the backend had no build results for the filter.
	NoResults bool `json:"no_results"`

	Statuses       []types.BuildState `json:"statuses"`
	AvailableRepos []string           `json:"available_repositories"`
	AvailableArchs []string           `json:"available_architectures"`

	Repositories  []string `json:"repositories"`
	Architectures []string `json:"architectures"`
	Packages      []string `json:"packages"`

	// RepoArchs maps repository to the architectures with surviving packages
	RepoArchs map[string][]string `json:"repo_archs"`
	// PackageStatus maps repository, architecture and package to its status
	PackageStatus map[string]map[string]map[string]types.PackageBuildStatus `json:"package_status"`
	// RepoStatus maps repository and architecture to its state label
	RepoStatus map[string]map[string]string `json:"repo_status"`
}

func newGrid(project string) *Grid {
	return &Grid{
		Project:       project,
		Repositories:  []string{},
		Architectures: []string{},
		Packages:      []string{},
		RepoArchs:     make(map[string][]string),
		PackageStatus: make(map[string]map[string]map[string]types.PackageBuildStatus),
		RepoStatus:    make(map[string]map[string]string),
	}
}

// Builder computes monitor grids. It holds no per-request state.
type Builder struct {
	backend backend.Client
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewBuilder creates a grid builder
func NewBuilder(client backend.Client, c *cache.Cache, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{backend: client, cache: c, logger: logger}
}

// Build computes the monitor grid for q
func (b *Builder) Build(ctx context.Context, q Query) (grid *Grid, err error) {
	defer observeView("monitor", time.Now(), &err)

	grid = newGrid(q.Project)
	grid.Statuses = ResolveStatuses(q.Statuses, q.Defaults)

	repos, err := b.repositories(ctx, q.Project)
	if err != nil {
		return nil, err
	}
	grid.AvailableRepos, grid.AvailableArchs = availableAxes(repos)

	archFilter := resolveAxis(grid.AvailableArchs, q.Archs, q.Defaults)
	repoFilter := resolveAxis(grid.AvailableRepos, q.Repos, q.Defaults)

	codes := make([]string, len(grid.Statuses))
	for i, s := range grid.Statuses {
		codes[i] = string(s)
	}
	key := cache.MonitorKey(q.Project, codes, archFilter, repoFilter, q.LastBuildOnly)
	results, err := cache.Fetch(ctx, b.cache, key, cache.TTLMonitor, func(ctx context.Context) ([]types.BuildResult, error) {
		return b.backend.BuildResults(ctx, q.Project, types.ResultFilter{
			View:      "status",
			Codes:     grid.Statuses,
			Archs:     archFilter,
			Repos:     repoFilter,
			LastBuild: q.LastBuildOnly,
		})
	})
	if err != nil {
		if errors.IsViewFailure(err) {
			return nil, err
		}
		b.logger.Warn("no build results for project",
			"project", q.Project,
			"error", err)
		results = nil
	}
	if len(results) == 0 {
		grid.NoResults = true
		return grid, nil
	}

	var names []string
	for _, r := range results {
		if !slices.Contains(repoFilter, r.Repository) {
			continue
		}
		if _, ok := grid.RepoArchs[r.Repository]; !ok {
			grid.RepoArchs[r.Repository] = []string{}
		}
		if !slices.Contains(archFilter, r.Architecture) {
			continue
		}
		grid.RepoArchs[r.Repository] = append(grid.RepoArchs[r.Repository], r.Architecture)

		statuses := make(map[string]types.PackageBuildStatus, len(r.Statuses))
		for _, st := range r.Statuses {
			statuses[st.Package] = st
			names = append(names, st.Package)
		}
		setNested(grid.PackageStatus, r.Repository, r.Architecture, statuses)

		if label := r.Label(); label != "" {
			setNested(grid.RepoStatus, r.Repository, r.Architecture, label)
		}
	}

	names = uniqueSorted(names)
	if q.NameFilter != "" {
		names = namefilter.Apply(names, q.NameFilter)
	}
	grid.Packages = names

	grid.prune()
	observability.GetMetrics().ViewPackages.WithLabelValues("monitor", q.Project).Set(float64(len(grid.Packages)))
	return grid, nil
}

// prune hides columns without surviving packages and repositories without columns
func (g *Grid) prune() {
	surviving := make(map[string]bool, len(g.Packages))
	for _, name := range g.Packages {
		surviving[name] = true
	}

	archSet := make(map[string]bool)
	for repo, archs := range g.RepoArchs {
		var kept []string
		for _, arch := range archs {
			statuses := g.PackageStatus[repo][arch]
			for name := range statuses {
				if !surviving[name] {
					delete(statuses, name)
				}
			}
			if len(statuses) == 0 {
				delete(g.PackageStatus[repo], arch)
				delete(g.RepoStatus[repo], arch)
				continue
			}
			kept = append(kept, arch)
			archSet[arch] = true
		}

		if len(kept) == 0 {
			delete(g.RepoArchs, repo)
			delete(g.PackageStatus, repo)
			delete(g.RepoStatus, repo)
			continue
		}
		sort.Strings(kept)
		g.RepoArchs[repo] = kept
		g.Repositories = append(g.Repositories, repo)
		if len(g.RepoStatus[repo]) == 0 {
			delete(g.RepoStatus, repo)
		}
	}
	sort.Strings(g.Repositories)

	for arch := range archSet {
		g.Architectures = append(g.Architectures, arch)
	}
	sort.Strings(g.Architectures)
}

// PackageResults is the single-package grid: the last build of pkg in every
// repository and architecture. An unknown package yields an empty grid.
func (b *Builder) PackageResults(ctx context.Context, project, pkg string) (grid *Grid, err error) {
	defer observeView("package", time.Now(), &err)

	results, err := cache.Fetch(ctx, b.cache, cache.PackageResultKey(project, pkg), cache.TTLPackageResult,
		func(ctx context.Context) ([]types.BuildResult, error) {
			return b.backend.BuildResults(ctx, project, types.ResultFilter{
				Package:   pkg,
				View:      "status",
				LastBuild: true,
			})
		})
	if err != nil {
		if errors.IsViewFailure(err) {
			return nil, err
		}
		// the backend answers 400 for some unknown packages
		b.logger.Debug("no build results for package",
			"project", project,
			"package", pkg,
			"error", err)
		results = nil
	}

	grid = newGrid(project)
	grid.NoResults = len(results) == 0
	archSet := make(map[string]bool)
	for _, r := range results {
		if _, ok := grid.RepoArchs[r.Repository]; !ok {
			grid.Repositories = append(grid.Repositories, r.Repository)
		}
		grid.RepoArchs[r.Repository] = append(grid.RepoArchs[r.Repository], r.Architecture)
		archSet[r.Architecture] = true

		statuses := make(map[string]types.PackageBuildStatus, len(r.Statuses))
		for _, st := range r.Statuses {
			statuses[st.Package] = st
		}
		setNested(grid.PackageStatus, r.Repository, r.Architecture, statuses)
		if label := r.Label(); label != "" {
			setNested(grid.RepoStatus, r.Repository, r.Architecture, label)
		}
	}
	sort.Strings(grid.Repositories)
	for arch := range archSet {
		grid.Architectures = append(grid.Architectures, arch)
	}
	sort.Strings(grid.Architectures)
	if len(results) > 0 {
		grid.Packages = []string{pkg}
	}
	return grid, nil
}

// Summary is the per repository and architecture state of a project with status counts
type Summary struct {
	Project    string                       `json:"project"`
	RepoStatus map[string]map[string]string `json:"repo_status"`
	Results    []types.BuildResult          `json:"results"`
}

// Summary returns the summary view of project. An unknown project yields an empty summary.
func (b *Builder) Summary(ctx context.Context, project string) (summary *Summary, err error) {
	defer observeView("summary", time.Now(), &err)

	results, err := cache.Fetch(ctx, b.cache, cache.SummaryKey(project), cache.TTLSummary,
		func(ctx context.Context) ([]types.BuildResult, error) {
			return b.backend.BuildResults(ctx, project, types.ResultFilter{View: "summary"})
		})
	if err != nil {
		if errors.IsViewFailure(err) {
			return nil, err
		}
		b.logger.Debug("no summary for project",
			"project", project,
			"error", err)
		results = nil
	}

	summary = &Summary{
		Project:    project,
		RepoStatus: make(map[string]map[string]string),
		Results:    results,
	}
	if summary.Results == nil {
		summary.Results = []types.BuildResult{}
	}
	for _, r := range results {
		if label := r.Label(); label != "" {
			setNested(summary.RepoStatus, r.Repository, r.Architecture, label)
		}
	}
	return summary, nil
}

// repositories returns the project's configured repositories. An absent
// project is an error; other failures leave the selector empty.
func (b *Builder) repositories(ctx context.Context, project string) ([]types.Repository, error) {
	repos, err := cache.Fetch(ctx, b.cache, cache.RepositoriesKey(project), cache.TTLRepositories,
		func(ctx context.Context) ([]types.Repository, error) {
			return b.backend.Repositories(ctx, project)
		})
	if err == nil || errors.IsViewFailure(err) || errors.IsNotFound(err) {
		return repos, err
	}
	b.logger.Warn("failed to read repository configuration",
		"project", project,
		"error", err)
	return nil, nil
}

func availableAxes(repos []types.Repository) (repoNames, archs []string) {
	for _, r := range repos {
		repoNames = append(repoNames, r.Name)
		archs = append(archs, r.Archs...)
	}
	return uniqueSorted(repoNames), uniqueSorted(archs)
}

func uniqueSorted(values []string) []string {
	out := slices.Clone(values)
	sort.Strings(out)
	out = slices.Compact(out)
	if out == nil {
		out = []string{}
	}
	return out
}

func setNested[V any](m map[string]map[string]V, outer, inner string, v V) {
	if m[outer] == nil {
		m[outer] = make(map[string]V)
	}
	m[outer][inner] = v
}

func observeView(view string, start time.Time, err *error) {
	metrics := observability.GetMetrics()
	metrics.ViewDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
	if *err != nil {
		metrics.ViewFailures.WithLabelValues(view).Inc()
	}
}
