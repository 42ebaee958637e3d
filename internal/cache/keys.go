package cache

import (
	"fmt"
	"strings"
	"time"
)

// TTLs used by the views. Divergence classifications are content addressed
// and never expire.
const (
	TTLProjectStatus = 10 * time.Minute
	TTLAttributes    = 2 * time.Minute
	TTLRequests      = 5 * time.Minute
	TTLMonitor       = time.Minute
	TTLPackageResult = 2 * time.Minute
	TTLSummary       = 30 * time.Second
	TTLDirectory     = 2 * time.Minute
	TTLRepositories  = 5 * time.Minute
	TTLForever       = time.Duration(0)
)

// Project names never contain '|' or '/', so each per-project key ends its
// project part with one of them and project prefixes never overlap.

func ProjectStatusKey(project string) string {
	return "status:" + project + "|"
}

func AttributesKey(attribute, project string) string {
	return "attributes:" + project + "|" + attribute
}

// RequestsKey is shared by all projects.
func RequestsKey() string {
	return "requests:new"
}

func RepositoriesKey(project string) string {
	return "repos:" + project + "|"
}

// MonitorKey covers the full filter tuple of a monitor fetch.
func MonitorKey(project string, codes, archs, repos []string, lastBuild bool) string {
	return fmt.Sprintf("monitor:%s|code=%s|arch=%s|repo=%s|lastbuild=%t",
		project,
		strings.Join(codes, ","),
		strings.Join(archs, ","),
		strings.Join(repos, ","),
		lastBuild)
}

func PackageResultKey(project, pkg string) string {
	return "pkgresult:" + project + "/" + pkg
}

func SummaryKey(project string) string {
	return "summary:" + project + "|"
}

func DirectoryKey(project, pkg string) string {
	return "dir:" + project + "/" + pkg
}

func DivergenceKey(md5, develMD5 string) string {
	return "dd:" + md5 + "_" + develMD5
}

// ProjectPrefixes lists the key prefixes holding data of one project, used for invalidation.
func ProjectPrefixes(project string) []string {
	return []string{
		ProjectStatusKey(project),
		"attributes:" + project + "|",
		RepositoriesKey(project),
		"monitor:" + project + "|",
		"pkgresult:" + project + "/",
		SummaryKey(project),
		"dir:" + project + "/",
	}
}
