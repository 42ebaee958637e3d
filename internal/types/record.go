package types

import "strings"

// ProblemKind describes why a package shows up in the status view.
// Besides the two divergence kinds it may carry free text, either
// "error-<message>" from the devel package or an ambiguous changes file message.
type ProblemKind string

const (
	ProblemDifferentChanges ProblemKind = "different_changes"
	ProblemDifferentSources ProblemKind = "different_sources"
)

// ErrorProblem builds the problem reported when the devel package carries an error.
func ErrorProblem(message string) ProblemKind {
	return ProblemKind("error-" + message)
}

// IsDivergence reports whether the problem came from the devel divergence check.
func (p ProblemKind) IsDivergence() bool {
	return p == ProblemDifferentChanges || p == ProblemDifferentSources
}

// PackageRecord is the assembled status of one package in the status view.
// It lives for a single view computation.
type PackageRecord struct {
	Name               string        `json:"name"`
	FailedComment      string        `json:"failed_comment,omitempty"`
	FailedArchitecture string        `json:"failed_arch,omitempty"`
	FailedRepository   string        `json:"failed_repo,omitempty"`
	FirstFail          int64         `json:"first_fail,omitempty"`
	Problems           []ProblemKind `json:"problems"`
	RequestsFrom       []int         `json:"requests_from"`
	RequestsTo         []int         `json:"requests_to"`
	Version            string        `json:"version"`
	UpstreamVersion    string        `json:"upstream_version,omitempty"`
	UpstreamURL        string        `json:"upstream_url,omitempty"`
	CurrentMD5         string        `json:"md5"`
	DevelProject       string        `json:"devel_project,omitempty"`
	DevelPackage       string        `json:"devel_package,omitempty"`
	DevelMD5           string        `json:"devel_md5,omitempty"`
}

// AddProblem appends a problem unless it is already recorded.
func (r *PackageRecord) AddProblem(p ProblemKind) {
	for _, existing := range r.Problems {
		if existing == p {
			return
		}
	}
	r.Problems = append(r.Problems, p)
}

// HasFailure reports whether a current-revision failure was found.
func (r *PackageRecord) HasFailure() bool {
	return r.FirstFail > 0 || r.FailedRepository != ""
}

// Interesting reports whether the record carries anything worth showing
// when the view is not narrowed to failures.
func (r *PackageRecord) Interesting() bool {
	return r.HasFailure() ||
		r.FailedComment != "" ||
		r.UpstreamVersion != "" ||
		len(r.Problems) > 0 ||
		len(r.RequestsFrom) > 0 ||
		len(r.RequestsTo) > 0
}

// ProjectStatus is the package-level status snapshot of a project.
type ProjectStatus struct {
	Project  string          `json:"project"`
	Packages []PackageStatus `json:"packages"`
}

// PackageStatus is one package of a ProjectStatus snapshot.
type PackageStatus struct {
	Name     string        `json:"name"`
	Version  string        `json:"version"`
	SrcMD5   string        `json:"srcmd5"`
	Failures []Failure     `json:"failures,omitempty"`
	Devel    *DevelPackage `json:"devel,omitempty"`
}

// Failure is a recorded build failure of a package.
// Repo holds "repository/architecture" as reported by the backend.
type Failure struct {
	Repo   string `json:"repo"`
	Time   string `json:"time"`
	SrcMD5 string `json:"srcmd5"`
}

// Location splits Repo into repository and architecture.
func (f Failure) Location() (repository, arch string) {
	repository, arch, _ = strings.Cut(f.Repo, "/")
	return repository, arch
}

// DevelPackage is the devel counterpart declared by a package.
type DevelPackage struct {
	Project string `json:"project"`
	Package string `json:"package"`
	SrcMD5  string `json:"srcmd5,omitempty"`
	Error   string `json:"error,omitempty"`
}

// DirEntry is one file of an expanded source directory listing.
type DirEntry struct {
	Name string `json:"name"`
	MD5  string `json:"md5"`
}
