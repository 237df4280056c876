package backup

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/marmos91/blockfile/internal/telemetry"
)

// S3Config holds configuration for the S3 target.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string

	// Region is the AWS region (optional, uses SDK default if empty).
	Region string

	// Endpoint is the S3 endpoint URL (optional, for S3-compatible services).
	Endpoint string

	// KeyPrefix is prepended to all snapshot keys (e.g., "nightly/").
	KeyPrefix string

	// ForcePathStyle forces path-style addressing (required for Localstack/MinIO).
	ForcePathStyle bool

	// AccessKeyID and SecretAccessKey select static credentials. When empty
	// the default AWS credential chain is used.
	AccessKeyID     string
	SecretAccessKey string
}

// putObjectAPI is the part of *s3.Client the target needs.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Target uploads snapshots to an S3 bucket.
type S3Target struct {
	client    putObjectAPI
	bucket    string
	keyPrefix string
}

// NewS3Target creates a target using an existing client.
func NewS3Target(client *s3.Client, cfg S3Config) *S3Target {
	return &S3Target{client: client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}
}

// NewS3TargetFromConfig creates an S3 client from cfg and wraps it.
func NewS3TargetFromConfig(ctx context.Context, cfg S3Config) (*S3Target, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 backup requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3Target(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// Location returns the s3:// URL an object key maps to.
func (t *S3Target) Location(key string) string {
	return "s3://" + t.bucket + "/" + t.keyPrefix + key
}

// Upload stores body under the target's prefix.
func (t *S3Target) Upload(ctx context.Context, key string, body io.ReadSeeker, size int64) error {
	fullKey := t.keyPrefix + key
	telemetry.AddEvent(ctx, "s3.put_object", telemetry.Bucket(t.bucket), telemetry.Key(fullKey))

	_, err := t.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(t.bucket),
		Key:           aws.String(fullKey),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}
