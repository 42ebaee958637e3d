package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/daimoniac/pkgstatus/internal/export"
	"github.com/daimoniac/pkgstatus/internal/observability"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
)

var exportCmd = &cobra.Command{
	Use:   "export PROJECT...",
	Short: "Upload status snapshots of projects to S3",
	Long: `Assemble the default status view of every PROJECT and write it as JSON to
<S3_PREFIX>/<project>/status.json in S3_BUCKET.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateExport(); err != nil {
		return fmt.Errorf("invalid export configuration: %w", err)
	}

	logger := observability.NewLoggerTo(os.Stderr, cfg.Observability.LogLevel)
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	uploader, err := export.New(ctx, export.Config{
		Endpoint:       cfg.Export.Endpoint,
		Region:         cfg.Export.Region,
		Bucket:         cfg.Export.Bucket,
		Prefix:         cfg.Export.Prefix,
		AccessKey:      cfg.Export.AccessKey,
		SecretKey:      cfg.Export.SecretKey,
		ForcePathStyle: cfg.Export.ForcePathStyle,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing S3 client: %w", err)
	}

	var failed int
	for _, project := range args {
		view, err := a.status.Assemble(ctx, projectstatus.DefaultOptions(project))
		if err != nil {
			logger.Error("failed to assemble status",
				"project", project,
				"error", err.Error())
			failed++
			continue
		}

		key, err := uploader.Upload(ctx, view)
		if err != nil {
			logger.Error("failed to upload snapshot",
				"project", project,
				"error", err.Error())
			failed++
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\ts3://%s/%s\n", project, cfg.Export.Bucket, key)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d exports failed", failed, len(args))
	}
	return nil
}
