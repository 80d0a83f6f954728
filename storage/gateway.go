package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"leiloes-caixa/config"
	"leiloes-caixa/models"
	"leiloes-caixa/parser"
	"leiloes-caixa/utils"
)

const csvContentType = "text/csv"

// TransferError reports a failed upload or download of a single object.
type TransferError struct {
	Op  string
	Key string
	Err error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("storage: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// OpenBucket selects the backend named by cfg.Storage.Backend.
func OpenBucket(ctx context.Context, cfg *config.Config) (Bucket, error) {
	switch cfg.Storage.Backend {
	case config.BackendMinio:
		m := cfg.Storage.Minio
		return NewMinioBucket(ctx, m.Endpoint, m.AccessKey, m.SecretKey, cfg.Bucket, m.UseSSL)
	case config.BackendLocal:
		return NewLocalBucket(cfg.Storage.Local.Root, cfg.Bucket)
	default:
		return NewGCSBucket(ctx, cfg.Bucket, cfg.Storage.CredentialsFile)
	}
}

// Gateway moves files between the local filesystem and a Bucket, and reads
// CSV tables from either side.
type Gateway struct {
	bucket    Bucket
	encodings []parser.Encoding
	logger    *utils.Logger
}

// NewGateway wraps bucket. encodings are the candidates tried, in order,
// when reading remote tables; nil selects parser.DefaultEncodings.
func NewGateway(bucket Bucket, encodings []parser.Encoding, logger *utils.Logger) *Gateway {
	if len(encodings) == 0 {
		encodings = parser.DefaultEncodings
	}
	return &Gateway{bucket: bucket, encodings: encodings, logger: logger}
}

// Put uploads the file at localPath under key, replacing any existing object.
func (g *Gateway) Put(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return &TransferError{Op: "put", Key: key, Err: err}
	}
	defer f.Close()

	if err := g.bucket.Upload(ctx, key, f, csvContentType); err != nil {
		return &TransferError{Op: "put", Key: key, Err: err}
	}
	g.logger.Info("[storage] File %s uploaded to bucket %s at %s", localPath, g.bucket.Name(), key)
	return nil
}

// Get downloads key into localPath. A missing key yields an error matching
// ErrNotFound and leaves no file behind.
func (g *Gateway) Get(ctx context.Context, key, localPath string) error {
	rc, err := g.bucket.Download(ctx, key)
	if err != nil {
		return &TransferError{Op: "get", Key: key, Err: err}
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return &TransferError{Op: "get", Key: key, Err: err}
	}
	f, err := os.Create(localPath)
	if err != nil {
		return &TransferError{Op: "get", Key: key, Err: err}
	}
	if _, err := io.Copy(f, rc); err != nil {
		_ = f.Close()
		_ = os.Remove(localPath)
		return &TransferError{Op: "get", Key: key, Err: err}
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(localPath)
		return &TransferError{Op: "get", Key: key, Err: err}
	}

	g.logger.Debug("[storage] Object %s downloaded from bucket %s to %s", key, g.bucket.Name(), localPath)
	return nil
}

// ReadTable parses a local UTF-8, comma-delimited file whose first line is
// the header. No encoding fallback is attempted.
func (g *Gateway) ReadTable(localPath string) (*models.Table, error) {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", localPath, err)
	}
	res, err := parser.Read(data, parser.Options{
		Dialect:   parser.DialectComma,
		BadLines:  parser.BadLinesError,
		Encodings: []parser.Encoding{parser.UTF8},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %q: %w", localPath, err)
	}
	return res.Table, nil
}

// ReadRemoteTable reads key straight from the bucket into memory. The object
// is expected in the portal's semicolon layout: the first line is a title
// and the second holds the column labels.
func (g *Gateway) ReadRemoteTable(ctx context.Context, key string) (*models.Table, error) {
	rc, err := g.bucket.Download(ctx, key)
	if err != nil {
		return nil, &TransferError{Op: "read", Key: key, Err: err}
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, &TransferError{Op: "read", Key: key, Err: err}
	}

	res, err := parser.Read(buf.Bytes(), parser.Options{
		Dialect:   parser.DialectSemicolonShifted,
		BadLines:  parser.BadLinesError,
		Encodings: g.encodings,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %q: %w", key, err)
	}
	g.logger.Debug("[storage] Read %d rows from %s (%s)", res.Table.RowCount(), key, res.Encoding)
	return res.Table, nil
}
