package monitor

import (
	"strconv"

	"github.com/daimoniac/pkgstatus/internal/types"
)

// Selection is the caller's choice for one status, architecture or repository
type Selection int

const (
	UseDefault Selection = iota
	ExplicitInclude
	ExplicitExclude
)

func (s Selection) String() string {
	switch s {
	case ExplicitInclude:
		return "include"
	case ExplicitExclude:
		return "exclude"
	default:
		return "default"
	}
}

// ParseSelection interprets a request flag. A flag that is not a number
// includes; a number includes when it is positive.
func ParseSelection(value string, present bool) Selection {
	if !present {
		return UseDefault
	}
	n, err := strconv.Atoi(value)
	if err != nil || n > 0 {
		return ExplicitInclude
	}
	return ExplicitExclude
}

// hiddenByDefault are left out of the defaults
var hiddenByDefault = map[types.BuildState]bool{
	types.StateDisabled: true,
	types.StateExcluded: true,
	types.StateUnknown:  true,
}

// ResolveStatuses turns per-status selections into the status codes to request.
// Explicit selections always win; the rest follow defaults, which include every
// status except disabled, excluded and unknown. Asking for unresolvable also asks
// for expansionerror, the code the backend reports for the same condition, and
// vice versa.
func ResolveStatuses(flags map[types.BuildState]Selection, defaults bool) []types.BuildState {
	wantExpansion := flags[types.StateExpansionError] == ExplicitInclude

	var codes []types.BuildState
	unresolvable := false
	for _, state := range types.FilterableStates {
		include := false
		switch flags[state] {
		case ExplicitInclude:
			include = true
		case ExplicitExclude:
			include = false
		default:
			include = defaults && !hiddenByDefault[state]
		}
		if state == types.StateUnresolvable && wantExpansion && flags[state] != ExplicitExclude {
			include = true
		}
		if include {
			codes = append(codes, state)
			if state == types.StateUnresolvable {
				unresolvable = true
			}
		}
	}
	if unresolvable {
		codes = append(codes, types.StateExpansionError)
	}
	return codes
}

// resolveAxis keeps the available values selected explicitly or, without an
// explicit choice, when defaults are on.
func resolveAxis(available []string, flags map[string]Selection, defaults bool) []string {
	var selected []string
	for _, v := range available {
		switch flags[v] {
		case ExplicitInclude:
			selected = append(selected, v)
		case ExplicitExclude:
		default:
			if defaults {
				selected = append(selected, v)
			}
		}
	}
	return selected
}
