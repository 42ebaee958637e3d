// Package backend talks to the build service that owns build results,
// source listings, attributes and requests.
package backend

import (
	"context"

	"github.com/daimoniac/pkgstatus/internal/types"
)

// Client is the read-only surface of the build service used by the views.
//
// Every method returns an error wrapping errors.ErrNotFound when the object is
// absent, errors.ErrBackendUnavailable or errors.ErrTimeout when the service
// could not answer, and a *errors.MalformedError when the answer could not be parsed.
type Client interface {
	// BuildResults returns the build results of project narrowed by filter.
	BuildResults(ctx context.Context, project string, filter types.ResultFilter) ([]types.BuildResult, error)

	// Repositories returns the repositories declared in the project configuration.
	Repositories(ctx context.Context, project string) ([]types.Repository, error)

	// Directory returns the expanded source listing of a package.
	Directory(ctx context.Context, project, pkg string) ([]types.DirEntry, error)

	// Attributes returns all values of attr set on packages of project.
	Attributes(ctx context.Context, project string, attr types.AttributeRef) ([]types.Attribute, error)

	// NewRequests returns every request in state "new", system wide.
	NewRequests(ctx context.Context) ([]types.Request, error)

	// ProjectStatus returns the package-level status snapshot of project.
	ProjectStatus(ctx context.Context, project string) (*types.ProjectStatus, error)
}

// AttributeValues maps each package to the value of its attribute.
// When a package carries several values the last one wins.
func AttributeValues(attrs []types.Attribute) map[string]string {
	values := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a.Package == "" {
			continue
		}
		values[a.Package] = a.Value
	}
	return values
}
