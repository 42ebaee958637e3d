// Package projectstatus assembles the per-package status view of a project:
// current failures, comments, pending requests, upstream versions and devel
// package divergence, filtered and sorted for presentation.
package projectstatus

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daimoniac/pkgstatus/internal/backend"
	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/divergence"
	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/policy"
	"github.com/daimoniac/pkgstatus/internal/requests"
	"github.com/daimoniac/pkgstatus/internal/types"
)

// Devel project selector sentinels
const (
	AllPackages = "All Packages"
	NoProject   = "No Project"
)

const defaultConcurrency = 4

// Options selects what the status view shows
type Options struct {
	Project string

	// DevelFilter is AllPackages, NoProject or a devel project name
	DevelFilter string

	// IgnorePending drops packages with requests about to be merged
	IgnorePending bool

	// LimitToFailures drops packages without a current failure. Without it
	// packages are kept when they carry anything worth showing.
	LimitToFailures bool

	// IncludeVersions reports newer upstream versions
	IncludeVersions bool

	// Expression is an optional CEL record filter, see package policy
	Expression string
}

// DefaultOptions returns the options of an unparameterised status request
func DefaultOptions(project string) Options {
	return Options{
		Project:         project,
		DevelFilter:     AllPackages,
		LimitToFailures: true,
		IncludeVersions: true,
	}
}

// View is the assembled status view
type View struct {
	Project             string                `json:"project"`
	CurrentDevelProject string                `json:"current_devel_project"`
	Packages            []types.PackageRecord `json:"packages"`
	DevelProjects       []string              `json:"devel_projects"`
}

// Assembler builds status views. It holds no per-request state and is safe for concurrent use.
type Assembler struct {
	backend     backend.Client
	cache       *cache.Cache
	logger      *slog.Logger
	correlator  *requests.Correlator
	detector    *divergence.Detector
	versions    VersionComparer
	filters     *policy.Cache
	concurrency int
}

// Option configures an Assembler
type Option func(*Assembler)

// WithVersionComparer replaces the lexical upstream version comparison
func WithVersionComparer(v VersionComparer) Option {
	return func(a *Assembler) {
		a.versions = v
	}
}

// WithConcurrency bounds the number of divergence checks running at once
func WithConcurrency(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// NewAssembler creates an assembler reading through c
func NewAssembler(client backend.Client, c *cache.Cache, logger *slog.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assembler{
		backend:     client,
		cache:       c,
		logger:      logger,
		correlator:  requests.NewCorrelator(client, c, logger),
		detector:    divergence.NewDetector(client, c, logger),
		versions:    LexicalComparer{},
		filters:     policy.NewCache(logger),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// inputs are the independent fetches a view is assembled from
type inputs struct {
	snapshot         *types.ProjectStatus
	comments         map[string]string
	upstreamVersions map[string]string
	upstreamURLs     map[string]string
	requests         *requests.Index
}

// Assemble computes the status view. Only an unavailable backend, a timeout or
// cancellation fail the view; everything else degrades to absent values.
func (a *Assembler) Assemble(ctx context.Context, opts Options) (view *View, err error) {
	start := time.Now()
	metrics := observability.GetMetrics()
	defer func() {
		metrics.ViewDuration.WithLabelValues("status").Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ViewFailures.WithLabelValues("status").Inc()
		}
	}()

	if opts.DevelFilter == "" {
		opts.DevelFilter = AllPackages
	}

	filter, err := a.filters.Get(opts.Expression)
	if err != nil {
		return nil, err
	}

	in, err := a.fetchInputs(ctx, opts)
	if err != nil {
		return nil, err
	}

	records, pairs, develProjects := a.buildRecords(opts, in)

	if err := a.classify(ctx, records, pairs); err != nil {
		return nil, err
	}

	kept := make([]types.PackageRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		if pairs[i] != nil && pairs[i].develError != "" {
			rec.AddProblem(types.ErrorProblem(pairs[i].develError))
		}
		if !keep(rec, opts) {
			continue
		}
		if filter != nil {
			ok, err := filter.Matches(rec)
			if err != nil {
				a.logger.Warn("record filter failed, dropping record",
					"project", opts.Project,
					"package", rec.Name,
					"error", err)
				continue
			}
			if !ok {
				continue
			}
		}
		kept = append(kept, *rec)
	}

	// partial results are never served
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].Name < kept[j].Name
	})

	metrics.ViewPackages.WithLabelValues("status", opts.Project).Set(float64(len(kept)))
	return &View{
		Project:             opts.Project,
		CurrentDevelProject: opts.DevelFilter,
		Packages:            kept,
		DevelProjects:       develProjectList(develProjects),
	}, nil
}

// fetchInputs runs the independent fetches concurrently and joins them
func (a *Assembler) fetchInputs(ctx context.Context, opts Options) (*inputs, error) {
	in := &inputs{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		snapshot, err := cache.Fetch(gctx, a.cache, cache.ProjectStatusKey(opts.Project), cache.TTLProjectStatus,
			func(ctx context.Context) (*types.ProjectStatus, error) {
				return a.backend.ProjectStatus(ctx, opts.Project)
			})
		if err != nil {
			if errors.IsViewFailure(err) {
				return err
			}
			a.logger.Info("no status snapshot for project",
				"project", opts.Project,
				"error", err)
			snapshot = nil
		}
		in.snapshot = snapshot
		return nil
	})

	g.Go(func() error {
		values, err := a.attributeValues(gctx, opts.Project, types.AttrFailComment)
		in.comments = values
		return err
	})

	if opts.IncludeVersions {
		g.Go(func() error {
			values, err := a.attributeValues(gctx, opts.Project, types.AttrUpstreamVersion)
			in.upstreamVersions = values
			return err
		})
		g.Go(func() error {
			values, err := a.attributeValues(gctx, opts.Project, types.AttrUpstreamURL)
			in.upstreamURLs = values
			return err
		})
	}

	g.Go(func() error {
		idx, err := a.correlator.Index(gctx)
		if err != nil {
			if errors.IsViewFailure(err) {
				return err
			}
			a.logger.Warn("failed to load pending requests",
				"error", err)
			idx = requests.BuildIndex(nil, a.logger)
		}
		in.requests = idx
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return in, nil
}

// attributeValues fetches one attribute of all packages of project as package → value
func (a *Assembler) attributeValues(ctx context.Context, project string, attr types.AttributeRef) (map[string]string, error) {
	values, err := cache.Fetch(ctx, a.cache, cache.AttributesKey(attr.String(), project), cache.TTLAttributes,
		func(ctx context.Context) (map[string]string, error) {
			attrs, err := a.backend.Attributes(ctx, project, attr)
			if err != nil {
				return nil, err
			}
			return backend.AttributeValues(attrs), nil
		})
	if err != nil {
		if errors.IsViewFailure(err) {
			return nil, err
		}
		a.logger.Warn("failed to load attribute",
			"project", project,
			"attribute", attr.String(),
			"error", err)
		return map[string]string{}, nil
	}
	return values, nil
}

// develCheck is the divergence work attached to a record
type develCheck struct {
	pair       divergence.Pair
	develError string
	skip       bool
}

// buildRecords turns the snapshot into records that pass the devel filter.
// pairs[i] is set for records with a devel package.
func (a *Assembler) buildRecords(opts Options, in *inputs) ([]types.PackageRecord, []*develCheck, []string) {
	var (
		records       []types.PackageRecord
		pairs         []*develCheck
		develProjects []string
	)
	if in.snapshot == nil {
		return records, pairs, develProjects
	}

	for _, p := range in.snapshot.Packages {
		rec := types.PackageRecord{
			Name:         p.Name,
			Problems:     []types.ProblemKind{},
			RequestsFrom: in.requests.RequestsFrom(opts.Project, p.Name),
			RequestsTo:   []int{},
			Version:      p.Version,
			CurrentMD5:   p.SrcMD5,
		}
		if comment, ok := in.comments[p.Name]; ok {
			rec.FailedComment = comment
		}

		if failure, ok := selectFailure(p); ok {
			rec.FailedRepository = failure.Repository
			rec.FailedArchitecture = failure.Architecture
			rec.FirstFail = failure.Time
		}

		if opts.IncludeVersions {
			if upstream, ok := in.upstreamVersions[p.Name]; ok && a.versions.Newer(p.Version, upstream) {
				rec.UpstreamVersion = upstream
				rec.UpstreamURL = in.upstreamURLs[p.Name]
			}
		}

		var check *develCheck
		if p.Devel != nil {
			develProjects = append(develProjects, p.Devel.Project)
			rec.DevelProject = p.Devel.Project
			if !develSelected(opts.DevelFilter, p.Devel.Project) {
				continue
			}
			rec.DevelPackage = p.Devel.Package
			rec.RequestsTo = in.requests.RequestsTo(p.Devel.Project, p.Devel.Package)
			rec.DevelMD5 = p.Devel.SrcMD5

			check = &develCheck{
				pair: divergence.Pair{
					Project:      opts.Project,
					Package:      p.Name,
					MD5:          rec.CurrentMD5,
					DevelProject: rec.DevelProject,
					DevelPackage: rec.DevelPackage,
					DevelMD5:     rec.DevelMD5,
				},
				develError: p.Devel.Error,
				// records dropped by the toggles never need a classification
				skip: droppedRegardless(&rec, opts),
			}
		} else if opts.DevelFilter != AllPackages && opts.DevelFilter != NoProject {
			continue
		}

		records = append(records, rec)
		pairs = append(pairs, check)
	}
	return records, pairs, develProjects
}

// classify runs the divergence checks on a bounded pool and records their problems
func (a *Assembler) classify(ctx context.Context, records []types.PackageRecord, pairs []*develCheck) error {
	problems := make([]types.ProblemKind, len(records))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i, check := range pairs {
		if check == nil || check.skip || !check.pair.Diverged() {
			continue
		}
		g.Go(func() error {
			problem, ok, err := a.detector.Problem(gctx, check.pair)
			if err != nil {
				if errors.IsViewFailure(err) {
					return err
				}
				a.logger.Warn("divergence check failed",
					"package", check.pair.Package,
					"devel_project", check.pair.DevelProject,
					"error", err)
				return nil
			}
			if ok {
				problems[i] = problem
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, p := range problems {
		if p != "" {
			records[i].AddProblem(p)
		}
	}
	return nil
}

func develSelected(filter, develProject string) bool {
	if filter == AllPackages {
		return true
	}
	return filter != NoProject && filter == develProject
}

// droppedRegardless reports whether the toggles drop rec whatever its problems are
func droppedRegardless(rec *types.PackageRecord, opts Options) bool {
	if opts.IgnorePending && len(rec.RequestsFrom) > 0 {
		return true
	}
	return opts.LimitToFailures && !rec.HasFailure()
}

func keep(rec *types.PackageRecord, opts Options) bool {
	if opts.IgnorePending && len(rec.RequestsFrom) > 0 {
		return false
	}
	if opts.LimitToFailures {
		return rec.HasFailure()
	}
	return rec.Interesting()
}

// develProjectList sorts case-insensitively, drops duplicates and prepends the sentinels
func develProjectList(projects []string) []string {
	sorted := slices.Clone(projects)
	sort.Slice(sorted, func(i, j int) bool {
		li, lj := strings.ToLower(sorted[i]), strings.ToLower(sorted[j])
		if li != lj {
			return li < lj
		}
		return sorted[i] < sorted[j]
	})
	sorted = slices.Compact(sorted)
	return append([]string{AllPackages, NoProject}, sorted...)
}
