package api

import (
	"net/http"
	"strings"

	"github.com/daimoniac/pkgstatus/internal/monitor"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
	"github.com/daimoniac/pkgstatus/internal/types"
)

// parseQueryParam extracts a query parameter from the request
func parseQueryParam(r *http.Request, key string) string {
	return r.URL.Query().Get(key)
}

// lookupQueryParam extracts a query parameter and reports whether it was sent
func lookupQueryParam(r *http.Request, key string) (string, bool) {
	values, ok := r.URL.Query()[key]
	if !ok {
		return "", false
	}
	if len(values) == 0 {
		return "", true
	}
	return values[0], true
}

// parseFlag reads a switch that is on when sent with any value except "0" or "false"
func parseFlag(r *http.Request, key string) bool {
	value := strings.TrimSpace(parseQueryParam(r, key))
	return value != "" && value != "0" && value != "false"
}

// parseOptOut reads a switch that stays on unless sent as "false"
func parseOptOut(r *http.Request, key string) bool {
	return parseQueryParam(r, key) != "false"
}

// monitorQuery builds the monitor query from request parameters.
//
// defaults=<n> turns the default selection off when n is not positive;
// <status>=<n>, arch_<arch>=<n> and repo_<repo>=<n> include or exclude single
// values; pkgname filters packages and lastbuild asks for the last build only.
func monitorQuery(r *http.Request, project string) monitor.Query {
	q := monitor.NewQuery(project)
	q.NameFilter = parseQueryParam(r, "pkgname")
	q.LastBuildOnly = strings.TrimSpace(parseQueryParam(r, "lastbuild")) != ""

	if value, ok := lookupQueryParam(r, "defaults"); ok {
		q.Defaults = monitor.ParseSelection(value, true) == monitor.ExplicitInclude
	}

	states := append([]types.BuildState{}, types.FilterableStates...)
	states = append(states, types.StateExpansionError)
	for _, state := range states {
		value, ok := lookupQueryParam(r, string(state))
		if sel := monitor.ParseSelection(value, ok); sel != monitor.UseDefault {
			q.Statuses[state] = sel
		}
	}

	for key, values := range r.URL.Query() {
		value := ""
		if len(values) > 0 {
			value = values[0]
		}
		if arch, ok := strings.CutPrefix(key, "arch_"); ok && arch != "" {
			q.Archs[arch] = axisSelection(value)
		}
		if repo, ok := strings.CutPrefix(key, "repo_"); ok && repo != "" {
			q.Repos[repo] = axisSelection(value)
		}
	}
	return q
}

// axisSelection reads arch_ and repo_ toggles, which only include when non-empty
func axisSelection(value string) monitor.Selection {
	if strings.TrimSpace(value) == "" {
		return monitor.ExplicitExclude
	}
	return monitor.ParseSelection(value, true)
}

// statusOptions builds the status options from request parameters
func statusOptions(r *http.Request, project string) projectstatus.Options {
	opts := projectstatus.DefaultOptions(project)
	if devel := parseQueryParam(r, "filter_devel"); devel != "" {
		opts.DevelFilter = devel
	}
	opts.IgnorePending = parseFlag(r, "ignore_pending")
	opts.LimitToFailures = parseOptOut(r, "limit_to_fails")
	opts.IncludeVersions = parseOptOut(r, "include_versions")
	opts.Expression = parseQueryParam(r, "expr")
	return opts
}
