package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/maltedev/fashion-scraper/internal/models"
)

// S3API is the part of *s3.Client the uploader uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader copies a run's export files to <bucket>/<prefix>/<site>/<run id>/.
type S3Uploader struct {
	client S3API
	bucket string
	prefix string
	logger *slog.Logger
}

func NewS3Uploader(client S3API, bucket, prefix string) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: slog.Default().With("component", "s3_uploader"),
	}
}

// NewS3UploaderFromEnv builds a client from the default AWS credential chain.
func NewS3UploaderFromEnv(ctx context.Context, region, bucket, prefix string) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return NewS3Uploader(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func (u *S3Uploader) Name() string { return "s3" }

func (u *S3Uploader) Key(run *models.Run, file string) string {
	return path.Join(u.prefix, run.Site, run.ID, filepath.Base(file))
}

// Publish uploads every export file recorded on run.
func (u *S3Uploader) Publish(ctx context.Context, run *models.Run) error {
	var errs []error
	for _, file := range []string{run.CSVPath, run.JSONPath} {
		if file == "" {
			continue
		}
		if err := u.upload(ctx, run, file); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (u *S3Uploader) upload(ctx context.Context, run *models.Run, file string) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", file, err)
	}
	defer f.Close()

	key := u.Key(run, file)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType(file)),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s to s3://%s/%s: %w", file, u.bucket, key, err)
	}

	u.logger.Info("uploaded export", "bucket", u.bucket, "key", key)
	return nil
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
