package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/fathomline/sounder/log"
)

// s3API is the slice of the S3 client the exporter needs.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Config holds configuration for journal export to object storage.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path splits an "s3://bucket/prefix" location into bucket and
// prefix. The prefix may be empty.
func ParseS3Path(path string) (bucket, prefix string, err error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", fmt.Errorf("s3 path %q must start with s3://", path)
	}
	bucket, prefix, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("s3 path %q has no bucket", path)
	}
	return bucket, strings.TrimSuffix(prefix, "/"), nil
}

// S3Exporter uploads finished journal files to S3.
type S3Exporter struct {
	client s3API
	bucket string
	prefix string
	log    *log.Logger
}

// NewS3Exporter builds an exporter on the AWS default credential chain
// (env vars, shared config, IAM role).
func NewS3Exporter(ctx context.Context, cfg S3Config, logger *log.Logger) (*S3Exporter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("journal: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Exporter{
		client: s3.NewFromConfig(awsConfig, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		log:    logger,
	}, nil
}

// newS3ExporterWithClient wires a ready-made client, for tests.
func newS3ExporterWithClient(client s3API, bucket, prefix string, logger *log.Logger) *S3Exporter {
	return &S3Exporter{client: client, bucket: bucket, prefix: prefix, log: logger}
}

// Export uploads the journal file for runID and returns the object's
// s3:// location.
func (e *S3Exporter) Export(ctx context.Context, runID, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("journal: read %s: %w", path, err)
	}

	key := e.objectKey(runID)
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-msgpack"),
	})
	if err != nil {
		return "", fmt.Errorf("journal: upload s3://%s/%s: %w", e.bucket, key, err)
	}

	e.log.Info("journal exported", map[string]any{
		"bucket": e.bucket,
		"key":    key,
		"bytes":  len(data),
	})
	return fmt.Sprintf("s3://%s/%s", e.bucket, key), nil
}

// objectKey computes the run-partitioned object key:
// <prefix>/run_id=<id>/outcomes.mpk
func (e *S3Exporter) objectKey(runID string) string {
	key := fmt.Sprintf("run_id=%s/outcomes.mpk", runID)
	if e.prefix != "" {
		key = e.prefix + "/" + key
	}
	return key
}
