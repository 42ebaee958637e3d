package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/daimoniac/pkgstatus/internal/monitor"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
	"github.com/daimoniac/pkgstatus/internal/types"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

func checkFormat(format string) error {
	if format != formatJSON && format != formatTable {
		return fmt.Errorf("unknown output format %q (must be json or table)", format)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeStatusTable(w io.Writer, view *projectstatus.View) error {
	if len(view.Packages) == 0 {
		_, err := fmt.Fprintf(w, "No packages to show in %s.\n", view.Project)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tVERSION\tFAILED\tSINCE\tPROBLEMS\tREQUESTS\tUPSTREAM")
	for _, rec := range view.Packages {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.Name,
			orDash(rec.Version),
			orDash(failedOn(rec)),
			orDash(firstFail(rec.FirstFail)),
			orDash(problems(rec.Problems)),
			orDash(requestIDs(rec.RequestsFrom, rec.RequestsTo)),
			orDash(rec.UpstreamVersion))
	}
	return tw.Flush()
}

func writeGridTable(w io.Writer, grid *monitor.Grid) error {
	if grid.NoResults || len(grid.Packages) == 0 {
		_, err := fmt.Fprintf(w, "No build results in %s.\n", grid.Project)
		return err
	}

	type column struct{ repo, arch string }
	var columns []column
	for _, repo := range grid.Repositories {
		for _, arch := range grid.RepoArchs[repo] {
			columns = append(columns, column{repo, arch})
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"PACKAGE"}
	states := []string{""}
	for _, col := range columns {
		header = append(header, col.repo+"/"+col.arch)
		states = append(states, grid.RepoStatus[col.repo][col.arch])
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	fmt.Fprintln(tw, strings.Join(states, "\t"))

	for _, pkg := range grid.Packages {
		row := []string{pkg}
		for _, col := range columns {
			status, ok := grid.PackageStatus[col.repo][col.arch][pkg]
			if !ok {
				row = append(row, "-")
				continue
			}
			row = append(row, status.Code)
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func writeSummaryTable(w io.Writer, summary *monitor.Summary) error {
	if len(summary.Results) == 0 {
		_, err := fmt.Fprintf(w, "No build results in %s.\n", summary.Project)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "REPOSITORY\tARCH\tSTATE\tCOUNTS")
	for _, res := range summary.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			res.Repository,
			res.Architecture,
			orDash(summary.RepoStatus[res.Repository][res.Architecture]),
			orDash(statusCounts(res.Summary)))
	}
	return tw.Flush()
}

func failedOn(rec types.PackageRecord) string {
	if rec.FailedRepository == "" {
		return ""
	}
	return rec.FailedRepository + "/" + rec.FailedArchitecture
}

func firstFail(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04")
}

func problems(kinds []types.ProblemKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

func requestIDs(from, to []int) string {
	var parts []string
	for _, id := range from {
		parts = append(parts, fmt.Sprintf("<%d", id))
	}
	for _, id := range to {
		parts = append(parts, fmt.Sprintf(">%d", id))
	}
	return strings.Join(parts, " ")
}

func statusCounts(counts []types.StatusCount) string {
	parts := make([]string, len(counts))
	for i, c := range counts {
		parts[i] = fmt.Sprintf("%s=%d", c.Code, c.Count)
	}
	return strings.Join(parts, " ")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
