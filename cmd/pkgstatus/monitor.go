package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/monitor"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/types"
)

var monitorFlags struct {
	name       string
	lastBuild  bool
	noDefaults bool
	statuses   []string
	hide       []string
	archs      []string
	repos      []string
	pkg        string
	summary    bool
	fresh      bool
	output     string
}

var monitorCmd = &cobra.Command{
	Use:   "monitor PROJECT",
	Short: "Show the repository, architecture and package build grid of a project",
	Long: `Build the monitor grid of PROJECT. Statuses, architectures and repositories
follow the defaults unless named with --status, --arch or --repo; --no-defaults
shows only what is named. --package shows the results of a single package and
--summary the per repository state with status counts.`,
	Args: cobra.ExactArgs(1),
	RunE: runMonitor,
}

func init() {
	f := monitorCmd.Flags()
	f.StringVar(&monitorFlags.name, "name", "", "Package name filter")
	f.BoolVar(&monitorFlags.lastBuild, "lastbuild", false, "Show the last build result instead of the current state")
	f.BoolVar(&monitorFlags.noDefaults, "no-defaults", false, "Show only explicitly named statuses, architectures and repositories")
	f.StringSliceVar(&monitorFlags.statuses, "status", nil, "Status code to include (repeatable)")
	f.StringSliceVar(&monitorFlags.hide, "hide", nil, "Status code to exclude (repeatable)")
	f.StringSliceVar(&monitorFlags.archs, "arch", nil, "Architecture to include (repeatable)")
	f.StringSliceVar(&monitorFlags.repos, "repo", nil, "Repository to include (repeatable)")
	f.StringVar(&monitorFlags.pkg, "package", "", "Show the results of a single package")
	f.BoolVar(&monitorFlags.summary, "summary", false, "Show the project summary")
	f.BoolVar(&monitorFlags.fresh, "fresh", false, "Bypass cached backend answers")
	f.StringVarP(&monitorFlags.output, "output", "o", formatTable, "Output format: table or json")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if err := checkFormat(monitorFlags.output); err != nil {
		return err
	}
	if monitorFlags.pkg != "" && monitorFlags.summary {
		return fmt.Errorf("--package and --summary are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLoggerTo(os.Stderr, cfg.Observability.LogLevel)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	if monitorFlags.fresh {
		ctx = cache.WithDiscard(ctx)
	}
	project := args[0]
	out := cmd.OutOrStdout()

	if monitorFlags.summary {
		summary, err := a.grids.Summary(ctx, project)
		if err != nil {
			return fmt.Errorf("building summary of %s: %w", project, err)
		}
		if monitorFlags.output == formatJSON {
			return writeJSON(out, summary)
		}
		return writeSummaryTable(out, summary)
	}

	var grid *monitor.Grid
	if monitorFlags.pkg != "" {
		grid, err = a.grids.PackageResults(ctx, project, monitorFlags.pkg)
	} else {
		grid, err = a.grids.Build(ctx, monitorQuery(project))
	}
	if err != nil {
		return fmt.Errorf("building monitor of %s: %w", project, err)
	}

	if monitorFlags.output == formatJSON {
		return writeJSON(out, grid)
	}
	return writeGridTable(out, grid)
}

// monitorQuery turns the command flags into a grid query
func monitorQuery(project string) monitor.Query {
	q := monitor.NewQuery(project)
	q.NameFilter = monitorFlags.name
	q.LastBuildOnly = monitorFlags.lastBuild
	q.Defaults = !monitorFlags.noDefaults

	for _, s := range monitorFlags.statuses {
		q.Statuses[types.BuildState(s)] = monitor.ExplicitInclude
	}
	for _, s := range monitorFlags.hide {
		q.Statuses[types.BuildState(s)] = monitor.ExplicitExclude
	}
	for _, arch := range monitorFlags.archs {
		q.Archs[arch] = monitor.ExplicitInclude
	}
	for _, repo := range monitorFlags.repos {
		q.Repos[repo] = monitor.ExplicitInclude
	}
	return q
}
