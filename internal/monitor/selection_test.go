package monitor

import (
	"reflect"
	"testing"

	"github.com/daimoniac/pkgstatus/internal/types"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		value   string
		present bool
		want    Selection
	}{
		{"", false, UseDefault},
		{"1", true, ExplicitInclude},
		{"5", true, ExplicitInclude},
		{"on", true, ExplicitInclude},
		{"", true, ExplicitInclude},
		{"0", true, ExplicitExclude},
		{"-1", true, ExplicitExclude},
	}
	for _, tt := range tests {
		if got := ParseSelection(tt.value, tt.present); got != tt.want {
			t.Errorf("ParseSelection(%q, %v) = %v, want %v", tt.value, tt.present, got, tt.want)
		}
	}
}

func TestResolveStatuses(t *testing.T) {
	defaults := []types.BuildState{
		types.StateSucceeded, types.StateFailed, types.StateUnresolvable, types.StateBroken,
		types.StateBlocked, types.StateDispatching, types.StateScheduled, types.StateBuilding,
		types.StateFinished, types.StateSigning, types.StateExpansionError,
	}

	tests := []struct {
		name     string
		flags    map[types.BuildState]Selection
		defaults bool
		want     []types.BuildState
	}{
		{
			name:     "defaults",
			defaults: true,
			want:     defaults,
		},
		{
			name:     "explicit include overrides hidden default",
			flags:    map[types.BuildState]Selection{types.StateDisabled: ExplicitInclude},
			defaults: true,
			want: append(append([]types.BuildState{}, defaults[:10]...),
				types.StateDisabled, types.StateExpansionError),
		},
		{
			name:     "explicit exclude in defaults mode",
			flags:    map[types.BuildState]Selection{types.StateSucceeded: ExplicitExclude, types.StateUnresolvable: ExplicitExclude},
			defaults: true,
			want: []types.BuildState{
				types.StateFailed, types.StateBroken, types.StateBlocked, types.StateDispatching,
				types.StateScheduled, types.StateBuilding, types.StateFinished, types.StateSigning,
			},
		},
		{
			name:  "only explicit includes without defaults",
			flags: map[types.BuildState]Selection{types.StateFailed: ExplicitInclude, types.StateSucceeded: UseDefault},
			want:  []types.BuildState{types.StateFailed},
		},
		{
			name:  "unresolvable implies expansionerror",
			flags: map[types.BuildState]Selection{types.StateUnresolvable: ExplicitInclude},
			want:  []types.BuildState{types.StateUnresolvable, types.StateExpansionError},
		},
		{
			name:  "expansionerror implies unresolvable",
			flags: map[types.BuildState]Selection{types.StateExpansionError: ExplicitInclude},
			want:  []types.BuildState{types.StateUnresolvable, types.StateExpansionError},
		},
		{
			name: "nothing selected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveStatuses(tt.flags, tt.defaults)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ResolveStatuses() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveAxis(t *testing.T) {
	available := []string{"aarch64", "i586", "x86_64"}

	if got := resolveAxis(available, nil, true); !reflect.DeepEqual(got, available) {
		t.Errorf("defaults: %v", got)
	}

	flags := map[string]Selection{"i586": ExplicitExclude, "ppc64": ExplicitInclude}
	if got := resolveAxis(available, flags, true); !reflect.DeepEqual(got, []string{"aarch64", "x86_64"}) {
		t.Errorf("defaults with exclude: %v", got)
	}

	flags = map[string]Selection{"x86_64": ExplicitInclude}
	if got := resolveAxis(available, flags, false); !reflect.DeepEqual(got, []string{"x86_64"}) {
		t.Errorf("explicit only: %v", got)
	}
}
