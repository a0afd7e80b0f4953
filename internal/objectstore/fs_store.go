package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// NewFSBucket 以 basePath 为根目录构建只读 Bucket，对象键映射为相对路径。
func NewFSBucket(basePath, prefix string) (Bucket, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat storage path: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage path %s is not a directory", abs)
	}

	return &fsBucket{
		basePath: abs,
		prefix:   strings.Trim(prefix, "/"),
	}, nil
}

type fsBucket struct {
	basePath string
	prefix   string
}

func (b *fsBucket) Get(ctx context.Context, key string) (*Object, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	filePath, err := b.path(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &Object{
		Key:     key,
		Body:    f,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

func (b *fsBucket) path(key string) (string, error) {
	rel, err := cleanKey(b.prefix, key)
	if err != nil {
		return "", err
	}

	filePath := filepath.Join(b.basePath, filepath.FromSlash(rel))
	if !strings.HasPrefix(filePath, b.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return filePath, nil
}
