// Package gcs archives snapshots to Google Cloud Storage.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
)

const defaultContentType = "application/json"

// Config captures the target bucket and an optional key prefix.
type Config struct {
	Bucket string
	Prefix string
}

// BlobStore writes archived snapshots to a bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed blob store.
func New(client *storage.Client, cfg Config) (*BlobStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &BlobStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// PutObject uploads r under prefix/name and returns a gs:// URI. Archives are
// small, so the upload is a single request. The first path segment is
// recorded as the object's category metadata.
func (s *BlobStore) PutObject(ctx context.Context, name string, contentType string, r io.Reader) (string, error) {
	name = strings.Trim(strings.TrimSpace(name), "/")
	if name == "" {
		return "", fmt.Errorf("path is required")
	}
	key := path.Join(s.prefix, name)
	if contentType == "" {
		contentType = defaultContentType
	}

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "no-cache"
	w.ChunkSize = 0
	if category, _, ok := strings.Cut(name, "/"); ok {
		w.Metadata = map[string]string{"category": category}
	}
	if _, err := io.Copy(w, r); err != nil {
		return "", errors.Join(fmt.Errorf("upload %s: %w", key, err), w.Close())
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", key, err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, key), nil
}

// Ping checks that the bucket is reachable with the current credentials.
func (s *BlobStore) Ping(ctx context.Context) error {
	if _, err := s.client.Bucket(s.bucket).Attrs(ctx); err != nil {
		return fmt.Errorf("bucket %s: %w", s.bucket, err)
	}
	return nil
}
