package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSBucket stores objects in a Google Cloud Storage bucket.
type GCSBucket struct {
	client *gcs.Client
	bucket string
}

// NewGCSBucket creates a client using application default credentials, or
// the service account file at credentialsFile when it is set.
func NewGCSBucket(ctx context.Context, bucket, credentialsFile string) (*GCSBucket, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: new client: %w", err)
	}
	return &GCSBucket{client: client, bucket: bucket}, nil
}

func (b *GCSBucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		// Cancelling before Close aborts the upload instead of committing a
		// partial object.
		cancel()
		_ = w.Close()
		return fmt.Errorf("gcs: write %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: close writer %q: %w", key, err)
	}
	return nil
}

func (b *GCSBucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, fmt.Errorf("gcs: %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("gcs: open reader %q: %w", key, err)
	}
	return rc, nil
}

func (b *GCSBucket) Name() string {
	return b.bucket
}

func (b *GCSBucket) Close() error {
	return b.client.Close()
}
