package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioBucket stores objects in an S3-compatible bucket. It exists for
// development setups where a GCS bucket is not available.
type MinioBucket struct {
	client *minio.Client
	bucket string
}

func NewMinioBucket(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioBucket, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: new client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio: check bucket %q: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio: make bucket %q: %w", bucket, err)
		}
	}
	return &MinioBucket{client: client, bucket: bucket}, nil
}

func (b *MinioBucket) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio: put %q: %w", key, err)
	}
	return nil
}

func (b *MinioBucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get %q: %w", key, err)
	}
	// GetObject is lazy; Stat surfaces a missing key before any read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("minio: %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("minio: stat %q: %w", key, err)
	}
	return obj, nil
}

func (b *MinioBucket) Name() string {
	return b.bucket
}

func (b *MinioBucket) Close() error {
	return nil
}
