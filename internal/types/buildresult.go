package types

// BuildState is the state of a repository/architecture pair or the status code of a package build.
type BuildState string

const (
	StateUnknown      BuildState = "unknown"
	StateSucceeded    BuildState = "succeeded"
	StateFailed       BuildState = "failed"
	StateUnresolvable BuildState = "unresolvable"
	StateBroken       BuildState = "broken"
	StateBlocked      BuildState = "blocked"
	StateDispatching  BuildState = "dispatching"
	StateScheduled    BuildState = "scheduled"
	StateBuilding     BuildState = "building"
	StateFinished     BuildState = "finished"
	StateSigning      BuildState = "signing"
	StateDisabled     BuildState = "disabled"
	StateExcluded     BuildState = "excluded"
)

// StateExpansionError is the backend code reported alongside unresolvable.
// It is never offered as a filter of its own.
const StateExpansionError BuildState = "expansionerror"

// FilterableStates lists the status codes offered by the monitor view, in display order.
var FilterableStates = []BuildState{
	StateSucceeded,
	StateFailed,
	StateUnresolvable,
	StateBroken,
	StateBlocked,
	StateDispatching,
	StateScheduled,
	StateBuilding,
	StateFinished,
	StateSigning,
	StateDisabled,
	StateExcluded,
	StateUnknown,
}

// BuildResult is one repository/architecture result of a project.
// Produced fresh on every fetch and never mutated afterwards.
type BuildResult struct {
	Repository   string               `json:"repository"`
	Architecture string               `json:"architecture"`
	State        BuildState           `json:"state,omitempty"`
	Dirty        bool                 `json:"dirty,omitempty"`
	Statuses     []PackageBuildStatus `json:"statuses,omitempty"`
	Summary      []StatusCount        `json:"summary,omitempty"`
}

// Label returns the repository state shown in grids, prefixed with
// "outdated_" when the result was computed against in-flux sources.
func (r BuildResult) Label() string {
	if r.State == "" {
		return ""
	}
	if r.Dirty {
		return "outdated_" + string(r.State)
	}
	return string(r.State)
}

// PackageBuildStatus is the build status of one package inside a BuildResult.
type PackageBuildStatus struct {
	Package   string `json:"package"`
	Code      string `json:"code"`
	Details   string `json:"details,omitempty"`
	SrcMD5    string `json:"srcmd5,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// Repository is a repository declared in a project's configuration.
type Repository struct {
	Name  string   `json:"name"`
	Archs []string `json:"archs"`
}

// ResultFilter narrows a build result fetch on the backend side.
type ResultFilter struct {
	Package   string
	View      string // "status" or "summary"
	Codes     []BuildState
	Archs     []string
	Repos     []string
	LastBuild bool
}

// StatusCount is one entry of a summary view.
type StatusCount struct {
	Code  string `json:"code"`
	Count int    `json:"count"`
}
