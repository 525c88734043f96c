// Package gcs stores raw posting pages in Google Cloud Storage.
package gcs

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/storage"
)

// BlobStore implements jobs.BlobStore on a GCS bucket.
type BlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New dials GCS. Objects are written under the given key prefix. Close must
// be called when done.
func New(ctx context.Context, bucket, prefix string) (*BlobStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("dial gcs: %w", err)
	}
	return &BlobStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// PutObject writes data under path and returns the gs:// URI.
func (b *BlobStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	if b.prefix != "" {
		path = b.prefix + "/" + path
	}
	w := b.client.Bucket(b.bucket).Object(path).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close() //nolint:errcheck
		return "", fmt.Errorf("write gs://%s/%s: %w", b.bucket, path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close gs://%s/%s: %w", b.bucket, path, err)
	}
	return fmt.Sprintf("gs://%s/%s", b.bucket, path), nil
}

// Close releases the underlying client.
func (b *BlobStore) Close() error {
	return b.client.Close()
}
