package storage

import (
	"context"
	"fmt"
	"time"

	"muselib/config"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BucketStats summarizes one bucket prefix.
type BucketStats struct {
	Objects      int64
	TotalSize    int64
	LastModified time.Time
}

// AdminClient is a thin wrapper for bucket inspection from the CLI.
type AdminClient struct {
	client *minio.Client
	bucket string
}

// NewAdminClient connects to MinIO for bucket inspection.
func NewAdminClient(cfg *config.Config) (*AdminClient, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &AdminClient{client: client, bucket: cfg.MinioBucket}, nil
}

// ListObjects prints every object under prefix and returns the stats.
func (a *AdminClient) ListObjects(ctx context.Context, prefix string, print func(key string, size int64, modified time.Time)) (*BucketStats, error) {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", a.bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", a.bucket)
	}

	stats := &BucketStats{}
	objectCh := a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			return stats, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		stats.Objects++
		stats.TotalSize += object.Size
		if object.LastModified.After(stats.LastModified) {
			stats.LastModified = object.LastModified
		}
		if print != nil {
			print(object.Key, object.Size, object.LastModified)
		}
	}
	return stats, nil
}
