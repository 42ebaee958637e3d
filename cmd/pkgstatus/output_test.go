package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/daimoniac/pkgstatus/internal/monitor"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
	"github.com/daimoniac/pkgstatus/internal/types"
)

func TestWriteStatusTable(t *testing.T) {
	view := &projectstatus.View{
		Project: "openSUSE:Factory",
		Packages: []types.PackageRecord{
			{
				Name:               "gcc",
				Version:            "13.2",
				FailedRepository:   "standard",
				FailedArchitecture: "x86_64",
				FirstFail:          1700000000,
				Problems:           []types.ProblemKind{types.ProblemDifferentSources},
				RequestsFrom:       []int{12},
				RequestsTo:         []int{34},
				UpstreamVersion:    "14.1",
			},
			{Name: "zlib"},
		},
	}

	var buf bytes.Buffer
	if err := writeStatusTable(&buf, view); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, want := range []string{"PACKAGE", "standard/x86_64", "2023-11-14 22:13", "different_sources", "<12 >34", "14.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	if !strings.HasPrefix(lines[2], "zlib") || strings.Count(lines[2], "-") != 6 {
		t.Errorf("empty fields should render as dashes: %q", lines[2])
	}
}

func TestWriteStatusTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeStatusTable(&buf, &projectstatus.View{Project: "home:foo"}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "No packages to show in home:foo.\n" {
		t.Errorf("got %q", got)
	}
}

func TestWriteGridTable(t *testing.T) {
	grid := &monitor.Grid{
		Project:      "home:foo",
		Repositories: []string{"standard"},
		Packages:     []string{"a", "b"},
		RepoArchs:    map[string][]string{"standard": {"i586", "x86_64"}},
		RepoStatus:   map[string]map[string]string{"standard": {"i586": "building", "x86_64": "outdated_finished"}},
		PackageStatus: map[string]map[string]map[string]types.PackageBuildStatus{
			"standard": {
				"i586":   {"a": {Package: "a", Code: "failed"}},
				"x86_64": {"a": {Package: "a", Code: "succeeded"}, "b": {Package: "b", Code: "broken"}},
			},
		},
	}

	var buf bytes.Buffer
	if err := writeGridTable(&buf, grid); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), buf.String())
	}

	want := [][]string{
		{"PACKAGE", "standard/i586", "standard/x86_64"},
		{"building", "outdated_finished"},
		{"a", "failed", "succeeded"},
		{"b", "-", "broken"},
	}
	for i, fields := range want {
		if got := strings.Fields(lines[i]); strings.Join(got, " ") != strings.Join(fields, " ") {
			t.Errorf("line %d = %v, want %v", i, got, fields)
		}
	}
}

func TestWriteGridTableNoResults(t *testing.T) {
	var buf bytes.Buffer
	if err := writeGridTable(&buf, &monitor.Grid{Project: "home:foo", NoResults: true}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No build results in home:foo") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteSummaryTable(t *testing.T) {
	summary := &monitor.Summary{
		Project:    "home:foo",
		RepoStatus: map[string]map[string]string{"standard": {"x86_64": "published"}},
		Results: []types.BuildResult{{
			Repository:   "standard",
			Architecture: "x86_64",
			Summary:      []types.StatusCount{{Code: "succeeded", Count: 10}, {Code: "failed", Count: 2}},
		}},
	}

	var buf bytes.Buffer
	if err := writeSummaryTable(&buf, summary); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "succeeded=10 failed=2") {
		t.Errorf("counts missing:\n%s", buf.String())
	}
}

func TestCheckFormat(t *testing.T) {
	for _, f := range []string{formatJSON, formatTable} {
		if err := checkFormat(f); err != nil {
			t.Errorf("checkFormat(%q) = %v", f, err)
		}
	}
	if err := checkFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}
