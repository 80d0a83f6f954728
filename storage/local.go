package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalBucket keeps objects as files below a root directory. Keys map to
// slash-separated relative paths.
type LocalBucket struct {
	root string
	name string
}

func NewLocalBucket(root, name string) (*LocalBucket, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("local: create root %q: %w", root, err)
	}
	return &LocalBucket{root: root, name: name}, nil
}

func (b *LocalBucket) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.HasSuffix(key, "/") {
		return "", fmt.Errorf("local: invalid key %q", key)
	}
	return filepath.Join(b.root, filepath.FromSlash(strings.TrimPrefix(clean, "/"))), nil
}

func (b *LocalBucket) Upload(ctx context.Context, key string, r io.Reader, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := b.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("local: create dir for %q: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("local: create temp for %q: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("local: write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("local: close %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("local: commit %q: %w", key, err)
	}
	return nil
}

func (b *LocalBucket) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := b.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("local: %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("local: open %q: %w", key, err)
	}
	return f, nil
}

func (b *LocalBucket) Name() string {
	return b.name
}

func (b *LocalBucket) Close() error {
	return nil
}
