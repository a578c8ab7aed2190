package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
	"time"

	"muselib/config"
	"muselib/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// BlobKind names the logical namespace a blob is stored under.
type BlobKind string

const (
	BlobAudio BlobKind = "music"
	BlobArt   BlobKind = "album-art"
)

// Blob is an opened object together with its stored metadata.
type Blob struct {
	io.ReadCloser
	ContentType string
	Size        int64
}

// BlobStore abstracts the object store for audio files and cover art.
type BlobStore interface {
	// Put stores data under a generated unique name in the kind's
	// namespace and returns a stable, publicly resolvable URL.
	Put(ctx context.Context, kind BlobKind, contentType string, data []byte) (string, error)

	// Remove deletes the blob behind a URL previously returned by Put.
	// Removing a blob that no longer exists is not an error.
	Remove(ctx context.Context, blobURL string) error

	// Get opens the object at the given namespaced path for reading.
	// The object's existence is verified up front, so a missing key
	// fails here rather than on the first read.
	Get(ctx context.Context, objectPath string) (*Blob, error)
}

// minioStore implements BlobStore on a MinIO bucket.
type minioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinioStore connects to MinIO, ensures the bucket exists and returns
// a ready BlobStore.
func NewMinioStore(cfg *config.Config) (BlobStore, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", cfg.MinioBucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket %s: %w", cfg.MinioBucket, err)
		}
		logger.Info("Created bucket", logger.String("bucket", cfg.MinioBucket))
	}

	publicURL := cfg.MinioPublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.MinioUseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.MinioEndpoint, cfg.MinioBucket)
	}

	return &minioStore{
		client:    client,
		bucket:    cfg.MinioBucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Put uploads a blob under <kind>/<uuid><ext> and returns its public URL.
func (s *minioStore) Put(ctx context.Context, kind BlobKind, contentType string, data []byte) (string, error) {
	objectPath := fmt.Sprintf("%s/%s%s", kind, uuid.NewString(), extensionFor(contentType))

	_, err := s.client.PutObject(ctx, s.bucket, objectPath,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s blob: %w", kind, err)
	}

	logger.Debug("Blob stored",
		logger.String("path", objectPath),
		logger.Int("size", len(data)))
	return s.publicURL + "/" + objectPath, nil
}

// Remove deletes the object a Put-issued URL points at. MinIO treats
// removal of a missing key as success, which matches the idempotency
// contract here.
func (s *minioStore) Remove(ctx context.Context, blobURL string) error {
	objectPath, err := s.objectPath(blobURL)
	if err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucket, objectPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove blob %s: %w", objectPath, err)
	}
	return nil
}

// Get opens a namespaced object for streaming. GetObject alone defers
// the existence check to the first read, so stat first to fail before
// any response bytes are committed.
func (s *minioStore) Get(ctx context.Context, objectPath string) (*Blob, error) {
	info, err := s.client.StatObject(ctx, s.bucket, objectPath, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to stat blob %s: %w", objectPath, err)
	}

	object, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get blob %s: %w", objectPath, err)
	}

	return &Blob{
		ReadCloser:  object,
		ContentType: info.ContentType,
		Size:        info.Size,
	}, nil
}

// objectPath extracts the in-bucket path from a public URL.
func (s *minioStore) objectPath(blobURL string) (string, error) {
	if rest, ok := strings.CutPrefix(blobURL, s.publicURL+"/"); ok {
		return rest, nil
	}

	// Fall back to path parsing for URLs minted with a different public
	// base (e.g. after the endpoint moved behind a proxy).
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", fmt.Errorf("invalid blob url %q: %w", blobURL, err)
	}
	path := strings.TrimPrefix(u.Path, "/")
	path = strings.TrimPrefix(path, s.bucket+"/")
	if path == "" {
		return "", fmt.Errorf("blob url %q has no object path", blobURL)
	}
	return path, nil
}

// extensionFor maps a content type to a file extension, defaulting to
// the subtype when the platform has no registered mapping.
func extensionFor(contentType string) string {
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	if _, sub, ok := strings.Cut(contentType, "/"); ok && sub != "" {
		return "." + sub
	}
	return ".bin"
}
