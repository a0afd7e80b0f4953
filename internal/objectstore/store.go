package objectstore

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// Bucket 负责按键读取对象。实现只读，不提供任何写入接口。
type Bucket interface {
	// Get 返回可流式读取的对象，调用方负责关闭 Body。不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) (*Object, error)
}

// Object 组合对象正文与存储报告的元数据，便于响应层直接透传。
type Object struct {
	Key     string
	Body    io.ReadCloser
	Size    int64 // -1 表示未知
	ModTime time.Time
	ETag    string
}

// SizeKnown 表示存储是否报告了对象大小。
func (o *Object) SizeKnown() bool {
	return o != nil && o.Size >= 0
}

// ErrNotFound 表示对象不存在。
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey 表示对象键为空或试图越过根目录。
var ErrInvalidKey = errors.New("invalid object key")

// cleanKey 统一对象键格式（无前导斜杠、无 . / ..），并拼接可选前缀。
func cleanKey(prefix, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", ErrInvalidKey
		}
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+key), "/")
	if cleaned == "" {
		return "", ErrInvalidKey
	}
	if prefix != "" {
		cleaned = path.Join(prefix, cleaned)
	}
	return cleaned, nil
}
