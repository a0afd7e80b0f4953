package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/ai-ecosystem-graph/graph-edge/internal/edgecache"
	"github.com/ai-ecosystem-graph/graph-edge/internal/objectstore"
)

// memBucket 是内存中的对象存储，记录每个键被读取的次数。
type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    map[string]int
	// entered/release 非空时，Get 会先通知进入再等待放行。
	entered chan string
	release chan struct{}
}

func newMemBucket(objects map[string][]byte) *memBucket {
	return &memBucket{objects: objects, gets: map[string]int{}}
}

func (b *memBucket) Get(ctx context.Context, key string) (*objectstore.Object, error) {
	b.mu.Lock()
	b.gets[key]++
	data, ok := b.objects[key]
	b.mu.Unlock()

	if b.entered != nil {
		b.entered <- key
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return &objectstore.Object{
		Key:  key,
		Body: io.NopCloser(bytes.NewReader(data)),
		Size: int64(len(data)),
	}, nil
}

func (b *memBucket) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.gets[key]
}

// explodingBucket 与 explodingCache 一旦被访问就让测试失败。
type explodingBucket struct{ t *testing.T }

func (b explodingBucket) Get(context.Context, string) (*objectstore.Object, error) {
	b.t.Fatalf("object store must not be touched")
	return nil, errors.New("unreachable")
}

type explodingCache struct{ t *testing.T }

func (c explodingCache) Match(context.Context, string) (*edgecache.Response, error) {
	c.t.Fatalf("edge cache must not be touched")
	return nil, errors.New("unreachable")
}

func (c explodingCache) Put(context.Context, string, *edgecache.Response) error {
	c.t.Fatalf("edge cache must not be touched")
	return errors.New("unreachable")
}

// brokenCache 模拟不可用的外部缓存。
type brokenCache struct{}

func (brokenCache) Match(context.Context, string) (*edgecache.Response, error) {
	return nil, errors.New("connection refused")
}

func (brokenCache) Put(context.Context, string, *edgecache.Response) error {
	return errors.New("connection refused")
}

// recordingCache 记录写入的响应，Match 返回预置条目。
type recordingCache struct {
	mu      sync.Mutex
	entries map[string]*edgecache.Response
	puts    int
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: map[string]*edgecache.Response{}}
}

func (c *recordingCache) Match(_ context.Context, key string) (*edgecache.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if resp, ok := c.entries[key]; ok {
		return resp, nil
	}
	return nil, edgecache.ErrMiss
}

func (c *recordingCache) Put(_ context.Context, key string, resp *edgecache.Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = resp
	c.puts++
	return nil
}

func (c *recordingCache) drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func gz(t *testing.T, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}
