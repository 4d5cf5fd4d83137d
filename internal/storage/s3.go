package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds S3/MinIO client configuration.
type S3Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "recaplet"
	Key             string // object name of the news document
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// S3Client mirrors the news document to an S3-compatible bucket.
type S3Client struct {
	minioClient *minio.Client
	bucket      string
	key         string
}

// NewS3 creates a new S3/MinIO client.
func NewS3(config S3Config) (*S3Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if config.Key == "" {
		config.Key = "news.json"
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &S3Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
		key:         config.Key,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *S3Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// PutDocument uploads the serialized news document.
func (c *S3Client) PutDocument(ctx context.Context, data []byte) error {
	_, err := c.minioClient.PutObject(ctx, c.bucket, c.key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "application/json",
		CacheControl: "no-cache",
	})
	if err != nil {
		return fmt.Errorf("failed to put document: %w", err)
	}
	return nil
}

// GetDocument downloads the serialized news document.
func (c *S3Client) GetDocument(ctx context.Context) ([]byte, error) {
	object, err := c.minioClient.GetObject(ctx, c.bucket, c.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return data, nil
}

// Location returns the bucket and key the document is mirrored to.
func (c *S3Client) Location() string {
	return c.bucket + "/" + c.key
}
