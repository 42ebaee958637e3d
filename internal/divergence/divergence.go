// Package divergence decides whether a package differs from its devel package
// and how: by changelog or by other sources only.
package divergence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/daimoniac/pkgstatus/internal/backend"
	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

const changesSuffix = ".changes"

// Classification is the outcome of a divergence check
type Classification string

const (
	None             Classification = "none"
	DifferentChanges Classification = "different_changes"
	DifferentSources Classification = "different_sources"
)

// Problem converts the classification into the problem recorded on a package; None has none.
func (c Classification) Problem() (types.ProblemKind, bool) {
	switch c {
	case DifferentChanges:
		return types.ProblemDifferentChanges, true
	case DifferentSources:
		return types.ProblemDifferentSources, true
	default:
		return "", false
	}
}

// NoUniqueChangesFileError reports a package whose changelog could not be identified
type NoUniqueChangesFileError struct {
	Project    string
	Package    string
	Candidates int
}

func (e *NoUniqueChangesFileError) Error() string {
	return fmt.Sprintf("no .changes file in %s/%s", e.Project, e.Package)
}

// ChangesResult is the resolved changelog hash of one source listing.
// Ambiguous is set when no single changes file could be picked.
type ChangesResult struct {
	MD5        string
	Ambiguous  bool
	Candidates int
}

// ResolveChangesMD5 picks the changelog of pkg from its expanded listing.
// "<pkg>.changes" wins over every other candidate; otherwise exactly one
// file ending in ".changes" must exist.
func ResolveChangesMD5(entries []types.DirEntry, pkg string) ChangesResult {
	exact := pkg + changesSuffix
	var candidates []string
	for _, e := range entries {
		if !strings.HasSuffix(e.Name, changesSuffix) {
			continue
		}
		if e.Name == exact {
			return ChangesResult{MD5: e.MD5, Candidates: 1}
		}
		candidates = append(candidates, e.MD5)
	}
	if len(candidates) == 1 {
		return ChangesResult{MD5: candidates[0], Candidates: 1}
	}
	return ChangesResult{Ambiguous: true, Candidates: len(candidates)}
}

// Pair is a package and its devel counterpart with their top-level source hashes
type Pair struct {
	Project      string
	Package      string
	MD5          string
	DevelProject string
	DevelPackage string
	DevelMD5     string
}

// Diverged reports whether both hashes are known and differ
func (p Pair) Diverged() bool {
	return p.MD5 != "" && p.DevelMD5 != "" && p.MD5 != p.DevelMD5
}

// Detector classifies divergence between packages. It is safe for concurrent use.
type Detector struct {
	backend backend.Client
	cache   *cache.Cache
	logger  *slog.Logger
}

// NewDetector creates a detector reading source listings through c
func NewDetector(client backend.Client, c *cache.Cache, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{backend: client, cache: c, logger: logger}
}

// changesMD5 resolves the changelog hash of project/pkg. An absent package
// resolves to an empty hash.
func (d *Detector) changesMD5(ctx context.Context, project, pkg string) (ChangesResult, error) {
	entries, err := cache.Fetch(ctx, d.cache, cache.DirectoryKey(project, pkg), cache.TTLDirectory,
		func(ctx context.Context) ([]types.DirEntry, error) {
			return d.backend.Directory(ctx, project, pkg)
		})
	if errors.IsNotFound(err) {
		d.logger.Debug("source listing not found",
			"project", project,
			"package", pkg)
		return ChangesResult{}, nil
	}
	if err != nil {
		return ChangesResult{}, err
	}
	return ResolveChangesMD5(entries, pkg), nil
}

// Classify compares the changelogs of two packages. It returns DifferentChanges
// when they differ and DifferentSources when they are identical; callers only
// ask once the top-level source hashes are known to differ. A listing without
// a unique changes file fails with *NoUniqueChangesFileError.
func (d *Detector) Classify(ctx context.Context, projectA, packageA, projectB, packageB string) (Classification, error) {
	a, err := d.changesMD5(ctx, projectA, packageA)
	if err != nil {
		return "", err
	}
	if a.Ambiguous {
		return "", &NoUniqueChangesFileError{Project: projectA, Package: packageA, Candidates: a.Candidates}
	}

	b, err := d.changesMD5(ctx, projectB, packageB)
	if err != nil {
		return "", err
	}
	if b.Ambiguous {
		return "", &NoUniqueChangesFileError{Project: projectB, Package: packageB, Candidates: b.Candidates}
	}

	if a.MD5 != b.MD5 {
		return DifferentChanges, nil
	}
	return DifferentSources, nil
}

// Compare classifies a pair. Pairs whose top-level hashes are equal or unknown
// never diverge and are answered without any fetch.
func (d *Detector) Compare(ctx context.Context, p Pair) (Classification, error) {
	if !p.Diverged() {
		return None, nil
	}
	return d.Classify(ctx, p.Project, p.Package, p.DevelProject, p.DevelPackage)
}

// Problem returns the problem to record for p, if any. The answer is a pure
// function of the two source hashes and is cached without expiry. An
// ambiguous changelog becomes the problem text itself.
func (d *Detector) Problem(ctx context.Context, p Pair) (types.ProblemKind, bool, error) {
	if !p.Diverged() {
		return "", false, nil
	}

	problem, err := cache.Fetch(ctx, d.cache, cache.DivergenceKey(p.MD5, p.DevelMD5), cache.TTLForever,
		func(ctx context.Context) (types.ProblemKind, error) {
			return d.problem(ctx, p)
		})
	if err != nil {
		return "", false, err
	}
	return problem, problem != "", nil
}

func (d *Detector) problem(ctx context.Context, p Pair) (types.ProblemKind, error) {
	metrics := observability.GetMetrics()

	class, err := d.Compare(ctx, p)
	var ambiguous *NoUniqueChangesFileError
	if errors.As(err, &ambiguous) {
		metrics.DivergenceClassifications.WithLabelValues("ambiguous").Inc()
		d.logger.Debug("cannot find unique changes file",
			"project", ambiguous.Project,
			"package", ambiguous.Package,
			"candidates", ambiguous.Candidates)
		return types.ProblemKind(ambiguous.Error()), nil
	}
	if err != nil {
		return "", err
	}

	metrics.DivergenceClassifications.WithLabelValues(string(class)).Inc()
	problem, _ := class.Problem()
	return problem, nil
}
