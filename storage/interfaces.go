package storage

import (
	"context"
	"errors"
	"io"

	"leiloes-caixa/models"
)

// ErrNotFound is returned when a key does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// Bucket is the object-level interface every storage backend must satisfy.
// Upload overwrites any object already stored under key.
type Bucket interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Name() string
	Close() error
}

// RunLedger persists the outcome of every region processed by the pipeline.
type RunLedger interface {
	Record(ctx context.Context, rec *models.RunRecord) error
	FetchAll(ctx context.Context) ([]*models.RunRecord, error)
	Close() error
}

// NopLedger discards run records. It is used when no database is configured.
type NopLedger struct{}

func (NopLedger) Record(context.Context, *models.RunRecord) error { return nil }

func (NopLedger) FetchAll(context.Context) ([]*models.RunRecord, error) { return nil, nil }

func (NopLedger) Close() error { return nil }
