package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/AnTengye/topicdetect/config"
	"github.com/AnTengye/topicdetect/pkg/logger"
)

// ObjectStore uploads and downloads named objects in one durable bucket.
type ObjectStore interface {
	Bucket() string
	Upload(ctx context.Context, key, localPath string) error
	Download(ctx context.Context, key, localPath string) error
}

// S3Store is an ObjectStore backed by any S3 compatible service.
type S3Store struct {
	client *minio.Client
	bucket string
	config *config.StorageConfig
	retry  RetryPolicy
}

func NewS3Store(cfg *config.StorageConfig) (*S3Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  storageCredentials(cfg),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
		retry: RetryPolicy{
			MaxAttempts:     cfg.DownloadMaxAttempts,
			InitialInterval: cfg.DownloadInitialBackoff,
		},
	}, nil
}

// storageCredentials uses the configured key pair when present. Otherwise it
// falls back to the AWS environment, the shared credentials file and then
// instance metadata, so requests are never sent unsigned by accident.
func storageCredentials(cfg *config.StorageConfig) *credentials.Credentials {
	if cfg.AccessKey != "" {
		return credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}
	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{Client: &http.Client{Transport: http.DefaultTransport}},
	})
}

func (s *S3Store) Bucket() string {
	return s.bucket
}

// EnsureBucket creates the bucket in the configured region if it doesn't exist.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	// An empty region means the service default (us-east-1 on AWS).
	err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.config.Region})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	logger.Info(ctx, "bucket created", "bucket", s.bucket, "region", s.config.Region)
	return nil
}

// Upload stores the file at localPath under key.
func (s *S3Store) Upload(ctx context.Context, key, localPath string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "text/plain; charset=utf-8",
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// Download writes the object at key to localPath. Transient storage errors
// are retried with bounded exponential backoff; past the bound the error is
// ErrStorageUnavailable.
func (s *S3Store) Download(ctx context.Context, key, localPath string) error {
	return s.retry.Do(ctx, ErrStorageUnavailable, func() error {
		err := s.client.FGetObject(ctx, s.bucket, key, localPath, minio.GetObjectOptions{})
		if err == nil {
			return nil
		}
		return classifyStorageError(key, err)
	}, func(err error, wait time.Duration) {
		logger.Warn(ctx, "object download failed, retrying",
			"bucket", s.bucket,
			"key", key,
			"error", err,
			"wait", wait,
		)
	})
}

// classifyStorageError marks errors that a retry cannot fix as permanent.
func classifyStorageError(key string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%s: %w", key, ErrObjectNotFound)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return Permanent(err)
	}
	if isTransientStorageError(resp.StatusCode, err) {
		return err
	}
	return Permanent(err)
}

func isTransientStorageError(status int, err error) bool {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return true
	}
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	// No HTTP status means the request never completed.
	return status == 0 && !errors.Is(err, context.Canceled)
}
