// Package export publishes status view snapshots to an S3 compatible store.
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/daimoniac/pkgstatus/internal/errors"
	"github.com/daimoniac/pkgstatus/internal/projectstatus"
)

// Config holds the settings needed to connect to an S3-compatible store.
type Config struct {
	Endpoint       string // custom endpoint URL (e.g. http://localhost:3900)
	Region         string
	Bucket         string
	Prefix         string
	AccessKey      string // empty uses the default credential chain
	SecretKey      string
	ForcePathStyle bool
}

// ObjectPutter is the part of the S3 API the uploader needs
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Snapshot is the document written for one project
type Snapshot struct {
	Project     string              `json:"project"`
	GeneratedAt time.Time           `json:"generated_at"`
	Status      *projectstatus.View `json:"status"`
}

// Uploader writes status snapshots to a single bucket
type Uploader struct {
	s3     ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// New creates an Uploader from the given Config.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Uploader, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var opts []func(*s3.Options)
	if cfg.Endpoint != "" || cfg.ForcePathStyle {
		opts = append(opts, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = true
		})
	}

	return NewWithClient(s3.NewFromConfig(awsCfg, opts...), cfg.Bucket, cfg.Prefix, logger), nil
}

// NewWithClient creates an Uploader on top of an existing S3 client
func NewWithClient(client ObjectPutter, bucket, prefix string, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{
		s3:     client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		now:    time.Now,
		logger: logger,
	}
}

// Key returns the object key of the snapshot of project
func (u *Uploader) Key(project string) string {
	return path.Join(u.prefix, project, "status.json")
}

// Upload writes the snapshot of view and returns its object key
func (u *Uploader) Upload(ctx context.Context, view *projectstatus.View) (string, error) {
	if view == nil || view.Project == "" {
		return "", errors.NewPermanentf("%w: snapshot without project", errors.ErrInvalidInput)
	}

	body, err := json.MarshalIndent(Snapshot{
		Project:     view.Project,
		GeneratedAt: u.now().UTC(),
		Status:      view,
	}, "", "  ")
	if err != nil {
		return "", errors.NewPermanentf("encode snapshot of %s: %w", view.Project, err)
	}

	key := u.Key(view.Project)
	_, err = u.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &u.bucket,
		Key:         &key,
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", errors.NewTransientf("put %s: %w", key, err)
	}

	u.logger.Info("snapshot exported",
		"bucket", u.bucket,
		"key", key,
		"packages", len(view.Packages),
		"bytes", len(body))
	return key, nil
}
