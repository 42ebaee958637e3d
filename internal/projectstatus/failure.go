package projectstatus

import (
	"strconv"
	"strings"

	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

// ignoredRepoMarkers exclude failures in repositories that are not release relevant
var ignoredRepoMarkers = []string{"ppc", "staging", "snapshot"}

// currentFailure is the newest failure of a package against its current sources
type currentFailure struct {
	Repository   string
	Architecture string
	Time         int64
}

// selectFailure scans the failures of pkg and returns the newest one recorded
// against the current source revision. Failures with an unparseable time are skipped.
func selectFailure(pkg types.PackageStatus) (currentFailure, bool) {
	var best currentFailure
	found := false

	for _, f := range pkg.Failures {
		if ignoredRepository(f.Repo) {
			continue
		}
		t, err := strconv.ParseInt(strings.TrimSpace(f.Time), 10, 64)
		if err != nil {
			observability.GetMetrics().MalformedRecords.WithLabelValues("failure_time").Inc()
			continue
		}
		if t <= best.Time {
			continue
		}
		if f.SrcMD5 != pkg.SrcMD5 {
			continue
		}
		repo, arch := f.Location()
		best = currentFailure{Repository: repo, Architecture: arch, Time: t}
		found = true
	}
	return best, found
}

func ignoredRepository(repo string) bool {
	for _, marker := range ignoredRepoMarkers {
		if strings.Contains(repo, marker) {
			return true
		}
	}
	return false
}
