package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/ai-ecosystem-graph/graph-edge/internal/artifact"
	"github.com/ai-ecosystem-graph/graph-edge/internal/edgecache"
	"github.com/ai-ecosystem-graph/graph-edge/internal/logging"
	"github.com/ai-ecosystem-graph/graph-edge/internal/objectstore"
)

// 写入边缘缓存的响应头，用于跨实例识别同一份索引。
const (
	headerLoadedAt = "X-Index-Loaded-At"
	headerSource   = "X-Index-Source"
)

// 索引来源，用于日志与指标。
const (
	SourceMemo  = "memo"
	SourceEdge  = "edge"
	SourceStore = "store"
)

// sourceKeys 为索引对象的读取顺序。
var sourceKeys = []string{artifact.ModelLookupKey, artifact.ComponentIndexKey}

// Observer 接收索引加载事件，metrics.Collectors 实现该接口。
type Observer interface {
	ObserveIndexLoad(source string, elapsed time.Duration)
}

// LoaderOptions 描述 Loader 的依赖与参数。
type LoaderOptions struct {
	Bucket       objectstore.Bucket
	Cache        edgecache.Cache
	Logger       *logrus.Logger
	Observer     Observer
	CacheKey     string
	TTL          time.Duration
	SingleFlight bool
}

// Loader 负责解析并缓存索引。零锁加载：并发冷启动会各自读取对象存储，
// 只有开启 SingleFlight 时才在进程内合并。
type Loader struct {
	bucket       objectstore.Bucket
	cache        edgecache.Cache
	logger       *logrus.Logger
	observer     Observer
	cacheKey     string
	ttl          time.Duration
	singleFlight bool
	group        singleflight.Group
	now          func() time.Time

	mu        sync.RWMutex
	memo      *Index
	memoStamp string
}

// NewLoader 校验依赖并创建 Loader。
func NewLoader(opts LoaderOptions) (*Loader, error) {
	if opts.Bucket == nil {
		return nil, errors.New("object store bucket is required")
	}
	if opts.CacheKey == "" {
		return nil, errors.New("index cache key is required")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("invalid index ttl: %v", opts.TTL)
	}
	cache := opts.Cache
	if cache == nil {
		cache = edgecache.Noop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &Loader{
		bucket:       opts.Bucket,
		cache:        cache,
		logger:       logger,
		observer:     opts.Observer,
		cacheKey:     opts.CacheKey,
		ttl:          opts.TTL,
		singleFlight: opts.SingleFlight,
		now:          time.Now,
	}, nil
}

// Index 返回当前有效的索引：边缘缓存命中时直接复用，否则从对象存储重新加载。
func (l *Loader) Index(ctx context.Context) (*Index, error) {
	if !l.singleFlight {
		return l.load(ctx)
	}
	v, err, _ := l.group.Do(l.cacheKey, func() (interface{}, error) {
		return l.load(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Snapshot 返回进程内最近一次解析的索引，不触发加载。
func (l *Loader) Snapshot() (*Index, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.memo, l.memo != nil
}

func (l *Loader) load(ctx context.Context) (*Index, error) {
	started := l.now()

	if idx, source, ok := l.fromCache(ctx); ok {
		l.observe(source, started)
		return idx, nil
	}

	body, key, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}
	idx, err := ParseIndex(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", key, err)
	}

	loadedAt := l.now()
	stamp := strconv.FormatInt(loadedAt.UnixNano(), 10)
	idx.SourceKey = key
	idx.LoadedAt = loadedAt

	resp := edgecache.NewResponse(body, l.ttl, map[string]string{
		"Content-Type": "application/json",
		headerSource:   key,
		headerLoadedAt: stamp,
	})
	if err := l.cache.Put(ctx, l.cacheKey, resp); err != nil {
		l.logger.WithFields(logging.IndexFields(key, SourceStore, idx.Len())).
			WithError(err).Warn("index_cache_put_failed")
	}

	l.remember(stamp, idx)
	l.observe(SourceStore, started)
	l.logger.WithFields(logging.IndexFields(key, SourceStore, idx.Len())).
		WithField("elapsed_ms", time.Since(started).Milliseconds()).
		Info("index_loaded")
	return idx, nil
}

// fromCache 尝试从边缘缓存取得索引。缓存故障或条目损坏都按未命中处理。
func (l *Loader) fromCache(ctx context.Context) (*Index, string, bool) {
	resp, err := l.cache.Match(ctx, l.cacheKey)
	if err != nil {
		if !errors.Is(err, edgecache.ErrMiss) {
			l.logger.WithFields(logrus.Fields{
				"action":    "index_load",
				"cache_key": l.cacheKey,
			}).WithError(err).Warn("index_cache_match_failed")
		}
		return nil, "", false
	}

	stamp := resp.Get(headerLoadedAt)
	if idx := l.memoFor(stamp); idx != nil {
		return idx, SourceMemo, true
	}

	idx, err := ParseIndex(resp.Body)
	if err != nil {
		l.logger.WithFields(logrus.Fields{
			"action":    "index_load",
			"cache_key": l.cacheKey,
		}).WithError(err).Warn("index_cache_entry_invalid")
		return nil, "", false
	}
	idx.SourceKey = resp.Get(headerSource)
	if nanos, err := strconv.ParseInt(stamp, 10, 64); err == nil {
		idx.LoadedAt = time.Unix(0, nanos)
	} else {
		idx.LoadedAt = resp.StoredAt
	}
	l.remember(stamp, idx)
	l.logger.WithFields(logging.IndexFields(idx.SourceKey, SourceEdge, idx.Len())).Debug("index_loaded")
	return idx, SourceEdge, true
}

// fetch 依次读取 model_lookup 与 component_index，返回解压后的正文与命中的键。
func (l *Loader) fetch(ctx context.Context) ([]byte, string, error) {
	for _, key := range sourceKeys {
		obj, err := l.bucket.Get(ctx, key)
		if errors.Is(err, objectstore.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, key, fmt.Errorf("fetch %s: %w", key, err)
		}
		body, err := gunzipAll(obj.Body)
		obj.Body.Close()
		if err != nil {
			return nil, key, fmt.Errorf("%w: decompress %s: %v", ErrIndexUnavailable, key, err)
		}
		return body, key, nil
	}
	return nil, "", ErrIndexNotFound
}

func gunzipAll(r io.Reader) ([]byte, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}

func (l *Loader) memoFor(stamp string) *Index {
	if stamp == "" {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.memoStamp == stamp {
		return l.memo
	}
	return nil
}

func (l *Loader) remember(stamp string, idx *Index) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.memo = idx
	l.memoStamp = stamp
}

func (l *Loader) observe(source string, started time.Time) {
	if l.observer == nil {
		return
	}
	l.observer.ObserveIndexLoad(source, l.now().Sub(started))
}
