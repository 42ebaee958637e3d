// Package backendtest provides an in-memory build service for tests.
package backendtest

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/daimoniac/pkgstatus/internal/backend"
	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/types"
)

var _ backend.Client = (*Fake)(nil)

// Fake is an in-memory backend.Client. Configure it through the exported
// maps before use; it counts calls per method and can inject errors.
type Fake struct {
	mu sync.Mutex

	// Results holds build results by project
	Results map[string][]types.BuildResult
	// Repos holds repository configuration by project
	Repos map[string][]types.Repository
	// Dirs holds source listings by "project/package"
	Dirs map[string][]types.DirEntry
	// Attrs holds attribute values by "project|namespace:name"
	Attrs map[string][]types.Attribute
	// Requests is the system wide list of new requests
	Requests []types.Request
	// Status holds status snapshots by project
	Status map[string]*types.ProjectStatus

	// Errors injects failures by method name ("Directory") or by
	// method and key ("Directory:home:foo/bar")
	Errors map[string]error

	calls map[string]int
}

// New returns an empty Fake
func New() *Fake {
	return &Fake{
		Results: make(map[string][]types.BuildResult),
		Repos:   make(map[string][]types.Repository),
		Dirs:    make(map[string][]types.DirEntry),
		Attrs:   make(map[string][]types.Attribute),
		Status:  make(map[string]*types.ProjectStatus),
		Errors:  make(map[string]error),
		calls:   make(map[string]int),
	}
}

// Calls returns how often method was called
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// SetError injects err for method, optionally narrowed to key
func (f *Fake) SetError(method, key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key != "" {
		method += ":" + key
	}
	f.Errors[method] = err
}

// AttrKey builds the Attrs map key
func AttrKey(project string, attr types.AttributeRef) string {
	return project + "|" + attr.String()
}

func (f *Fake) enter(method, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if err, ok := f.Errors[method+":"+key]; ok {
		return err
	}
	return f.Errors[method]
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", errors.ErrNotFound, what)
}

// BuildResults applies the filter the way the build service does: results are
// narrowed by repository and architecture, statuses by package and code.
// Results whose statuses are all filtered out are still returned.
func (f *Fake) BuildResults(ctx context.Context, project string, filter types.ResultFilter) ([]types.BuildResult, error) {
	if err := f.enter("BuildResults", project); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	results, ok := f.Results[project]
	if !ok {
		return nil, notFound("project " + project)
	}

	var out []types.BuildResult
	for _, r := range results {
		if len(filter.Repos) > 0 && !slices.Contains(filter.Repos, r.Repository) {
			continue
		}
		if len(filter.Archs) > 0 && !slices.Contains(filter.Archs, r.Architecture) {
			continue
		}
		copied := r
		copied.Statuses = nil
		for _, st := range r.Statuses {
			if filter.Package != "" && st.Package != filter.Package {
				continue
			}
			if len(filter.Codes) > 0 && !slices.Contains(filter.Codes, types.BuildState(st.Code)) {
				continue
			}
			copied.Statuses = append(copied.Statuses, st)
		}
		if filter.View != "summary" {
			copied.Summary = nil
		}
		out = append(out, copied)
	}
	return out, nil
}

func (f *Fake) Repositories(ctx context.Context, project string) ([]types.Repository, error) {
	if err := f.enter("Repositories", project); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	repos, ok := f.Repos[project]
	if !ok {
		return nil, notFound("project " + project)
	}
	return slices.Clone(repos), nil
}

func (f *Fake) Directory(ctx context.Context, project, pkg string) ([]types.DirEntry, error) {
	key := project + "/" + pkg
	if err := f.enter("Directory", key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	entries, ok := f.Dirs[key]
	if !ok {
		return nil, notFound("package " + key)
	}
	return slices.Clone(entries), nil
}

func (f *Fake) Attributes(ctx context.Context, project string, attr types.AttributeRef) ([]types.Attribute, error) {
	key := AttrKey(project, attr)
	if err := f.enter("Attributes", key); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.Attrs[key]), nil
}

func (f *Fake) NewRequests(ctx context.Context) ([]types.Request, error) {
	if err := f.enter("NewRequests", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.Requests), nil
}

func (f *Fake) ProjectStatus(ctx context.Context, project string) (*types.ProjectStatus, error) {
	if err := f.enter("ProjectStatus", project); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.Status[project]
	if !ok {
		return nil, notFound("project " + project)
	}
	copied := *status
	copied.Packages = slices.Clone(status.Packages)
	return &copied, nil
}
