// Package objectstore archives raw roster uploads and failure reports to any
// S3-compatible bucket.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/gradekeeper/api/config"
)

// Client wraps an S3-compatible bucket.
type Client struct {
	s3Client *s3.S3
	bucket   string
}

// Config holds credentials and bucket location.
type Config struct {
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Endpoint  string
}

// NewClient creates a new archive client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is not configured")
	}

	sess, err := session.NewSession(&aws.Config{
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		),
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		S3ForcePathStyle: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create archive session: %w", err)
	}

	return &Client{
		s3Client: s3.New(sess),
		bucket:   cfg.Bucket,
	}, nil
}

// NewClientFromEnv builds a client from the ARCHIVE_* environment
// configuration. Returns an error when archiving is not configured.
func NewClientFromEnv() (*Client, error) {
	env, err := config.Get()
	if err != nil {
		return nil, err
	}
	return NewClient(Config{
		AccessKey: env.ARCHIVE_ACCESS_KEY,
		SecretKey: env.ARCHIVE_SECRET_KEY,
		Bucket:    env.ARCHIVE_BUCKET,
		Region:    env.ARCHIVE_REGION,
		Endpoint:  env.ARCHIVE_ENDPOINT,
	})
}

// Upload stores an object under the given key.
func (c *Client) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        aws.ReadSeekCloser(bytes.NewReader(data)),
		ACL:         aws.String("private"),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	return nil
}

// Download fetches an object by key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	result, err := c.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download object %s: %w", key, err)
	}
	defer result.Body.Close()

	return io.ReadAll(result.Body)
}
