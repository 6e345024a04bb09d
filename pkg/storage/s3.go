package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LinkResolver turns a build path into a URL a client can download from.
type LinkResolver interface {
	BuildURL(ctx context.Context, path string) (string, error)
}

// S3Client presigns build downloads
type S3Client struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	expiry    time.Duration
}

// NewS3Client creates a new S3 client
func NewS3Client(ctx context.Context, cfg Config) (*S3Client, error) {
	var (
		awsConfig aws.Config
		err       error
	)

	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		// Static credentials (MinIO or AWS with explicit keys)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.S3AccessKey,
				cfg.S3SecretKey,
				"",
			)),
		)
	} else {
		// Default credential chain (IAM roles, env vars, etc.)
		awsConfig, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.S3Region),
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		if cfg.S3UsePathStyle {
			o.UsePathStyle = true
		}
	})

	expiry := cfg.S3PresignExpiry
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	return &S3Client{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.S3Bucket,
		expiry:    expiry,
	}, nil
}

// BuildURL returns a presigned GET URL for the object at path.
func (c *S3Client) BuildURL(ctx context.Context, path string) (string, error) {
	key := strings.TrimPrefix(path, "/")
	ctx, span := tracer.Start(ctx, "S3.PresignGetObject",
		trace.WithAttributes(
			attribute.String("s3.operation", "PresignGetObject"),
			attribute.String("s3.bucket", c.bucket),
			attribute.String("s3.key", key),
		),
	)
	defer span.End()

	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.expiry))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to presign object")
		return "", fmt.Errorf("failed to presign %s: %w", key, err)
	}

	span.SetStatus(codes.Ok, "object presigned")
	return req.URL, nil
}

// Ping checks that the bucket exists and the credentials can reach it.
func (c *S3Client) Ping(ctx context.Context) error {
	_, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil {
		return fmt.Errorf("failed to reach bucket %s: %w", c.bucket, err)
	}
	return nil
}

// StaticLinks serves builds from a fixed base URL.
type StaticLinks struct {
	BaseURL string
}

// BuildURL joins the base URL and the build path.
func (l StaticLinks) BuildURL(_ context.Context, path string) (string, error) {
	if l.BaseURL == "" {
		return "", fmt.Errorf("no download base URL configured")
	}
	u, err := url.JoinPath(l.BaseURL, path)
	if err != nil {
		return "", fmt.Errorf("invalid download URL for %s: %w", path, err)
	}
	return u, nil
}
