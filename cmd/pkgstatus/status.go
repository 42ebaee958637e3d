package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daimoniac/pkgstatus/internal/cache"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
)

var statusFlags struct {
	devel         string
	ignorePending bool
	all           bool
	noVersions    bool
	expr          string
	fresh         bool
	output        string
}

var statusCmd = &cobra.Command{
	Use:   "status PROJECT",
	Short: "Show the package status view of a project",
	Long: `Assemble the status view of PROJECT: failing packages, divergence from
their devel packages, open requests and newer upstream versions.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	f := statusCmd.Flags()
	f.StringVar(&statusFlags.devel, "devel", projectstatus.AllPackages, `Devel project to narrow to, or "No Project"`)
	f.BoolVar(&statusFlags.ignorePending, "ignore-pending", false, "Hide packages with requests about to be merged")
	f.BoolVar(&statusFlags.all, "all", false, "Show every package worth showing, not only failures")
	f.BoolVar(&statusFlags.noVersions, "no-versions", false, "Skip upstream version reporting")
	f.StringVar(&statusFlags.expr, "expr", "", "CEL expression records must satisfy")
	f.BoolVar(&statusFlags.fresh, "fresh", false, "Bypass cached backend answers")
	f.StringVarP(&statusFlags.output, "output", "o", formatTable, "Output format: table or json")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := checkFormat(statusFlags.output); err != nil {
		return err
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

	opts := projectstatus.DefaultOptions(args[0])
	opts.DevelFilter = statusFlags.devel
	opts.IgnorePending = statusFlags.ignorePending
	opts.LimitToFailures = !statusFlags.all
	opts.IncludeVersions = !statusFlags.noVersions
	opts.Expression = statusFlags.expr

	ctx := cmd.Context()
	if statusFlags.fresh {
		ctx = cache.WithDiscard(ctx)
	}

	view, err := a.status.Assemble(ctx, opts)
	if err != nil {
		return fmt.Errorf("assembling status of %s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()
	if statusFlags.output == formatJSON {
		return writeJSON(out, view)
	}
	return writeStatusTable(out, view)
}
