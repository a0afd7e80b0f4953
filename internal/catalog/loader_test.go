package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ai-ecosystem-graph/graph-edge/internal/artifact"
	"github.com/ai-ecosystem-graph/graph-edge/internal/edgecache"
	"github.com/ai-ecosystem-graph/graph-edge/internal/objectstore"
)

const testCacheKey = "v1:index:model_lookup"

func newTestLoader(t *testing.T, bucket objectstore.Bucket, cache edgecache.Cache, singleFlight bool) *Loader {
	t.Helper()
	loader, err := NewLoader(LoaderOptions{
		Bucket:       bucket,
		Cache:        cache,
		CacheKey:     testCacheKey,
		TTL:          time.Hour,
		SingleFlight: singleFlight,
	})
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	return loader
}

func TestLoaderPrefersModelLookup(t *testing.T) {
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey:    gz(t, `{"index": {"a/m": 1}}`),
		artifact.ComponentIndexKey: gz(t, `{"component_index": {"b/m": 2}}`),
	})
	idx, err := newTestLoader(t, bucket, edgecache.Noop{}, false).Index(context.Background())
	if err != nil {
		t.Fatalf("Index error: %v", err)
	}
	if idx.SourceKey != artifact.ModelLookupKey {
		t.Fatalf("expected model_lookup source, got %s", idx.SourceKey)
	}
	if bucket.count(artifact.ComponentIndexKey) != 0 {
		t.Fatalf("component_index should not be read when model_lookup exists")
	}
}

func TestLoaderFallsBackToComponentIndex(t *testing.T) {
	bucket := newMemBucket(map[string][]byte{
		artifact.ComponentIndexKey: gz(t, `{"component_index": {"org/model": 7}}`),
	})
	idx, err := newTestLoader(t, bucket, edgecache.Noop{}, false).Index(context.Background())
	if err != nil {
		t.Fatalf("Index error: %v", err)
	}
	if idx.SourceKey != artifact.ComponentIndexKey {
		t.Fatalf("expected component_index source, got %s", idx.SourceKey)
	}
	if v, ok := idx.Get("org/model"); !ok || string(v) != "7" {
		t.Fatalf("unexpected lookup result %s", v)
	}
	if bucket.count(artifact.ModelLookupKey) != 1 {
		t.Fatalf("model_lookup should be tried first")
	}
}

func TestLoaderBothMissing(t *testing.T) {
	_, err := newTestLoader(t, newMemBucket(nil), edgecache.Noop{}, false).Index(context.Background())
	if !errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("expected ErrIndexNotFound, got %v", err)
	}
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("ErrIndexNotFound should be an ErrIndexUnavailable")
	}
}

func TestLoaderRejectsCorruptGzip(t *testing.T) {
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey: []byte(`{"index": {}}`),
	})
	_, err := newTestLoader(t, bucket, edgecache.Noop{}, false).Index(context.Background())
	if !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestLoaderSurfacesStorageErrors(t *testing.T) {
	_, err := newTestLoader(t, failingBucket{}, edgecache.Noop{}, false).Index(context.Background())
	if err == nil || errors.Is(err, ErrIndexNotFound) {
		t.Fatalf("storage failure should be reported as is, got %v", err)
	}
}

func TestLoaderUsesEdgeCacheWithinEpoch(t *testing.T) {
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey: gz(t, `{"index": {"a/m": 1}}`),
	})
	loader := newTestLoader(t, bucket, edgecache.NewMemoryCache(0), false)
	ctx := context.Background()

	first, err := loader.Index(ctx)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	second, err := loader.Index(ctx)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if bucket.count(artifact.ModelLookupKey) != 1 {
		t.Fatalf("second call within the epoch must not touch the store")
	}
	if first != second {
		t.Fatalf("memo should return the already parsed index")
	}
}

func TestLoaderStoresDecompressedIndex(t *testing.T) {
	doc := `{"index": {"a/m": 1}}`
	bucket := newMemBucket(map[string][]byte{artifact.ModelLookupKey: gz(t, doc)})
	cache := newRecordingCache()

	if _, err := newTestLoader(t, bucket, cache, false).Index(context.Background()); err != nil {
		t.Fatalf("Index error: %v", err)
	}
	resp, err := cache.Match(context.Background(), testCacheKey)
	if err != nil {
		t.Fatalf("index should be cached: %v", err)
	}
	if string(resp.Body) != doc {
		t.Fatalf("cache should hold decompressed JSON, got %q", resp.Body)
	}
	if resp.Get("Cache-Control") != "public, max-age=3600" {
		t.Fatalf("unexpected Cache-Control %q", resp.Get("Cache-Control"))
	}
	if resp.Get(headerSource) != artifact.ModelLookupKey || resp.Get(headerLoadedAt) == "" {
		t.Fatalf("missing load metadata headers: %v", resp.Header)
	}
}

func TestLoaderParsesEntryWrittenElsewhere(t *testing.T) {
	cache := newRecordingCache()
	cache.entries[testCacheKey] = edgecache.NewResponse([]byte(`{"component_index": {"x/y": 4}}`), time.Hour, map[string]string{
		headerSource:   artifact.ComponentIndexKey,
		headerLoadedAt: "1700000000000000000",
	})

	loader := newTestLoader(t, explodingBucket{t: t}, cache, false)
	idx, err := loader.Index(context.Background())
	if err != nil {
		t.Fatalf("Index error: %v", err)
	}
	if v, _ := idx.Get("x/y"); string(v) != "4" {
		t.Fatalf("unexpected component %s", v)
	}
	if idx.SourceKey != artifact.ComponentIndexKey || idx.LoadedAt.UnixNano() != 1700000000000000000 {
		t.Fatalf("metadata should come from cached headers: %s %v", idx.SourceKey, idx.LoadedAt)
	}
}

func TestLoaderReloadsAfterEntryExpires(t *testing.T) {
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey: gz(t, `{"index": {"a/m": 1}}`),
	})
	cache := newRecordingCache()
	loader := newTestLoader(t, bucket, cache, false)
	ctx := context.Background()

	if _, err := loader.Index(ctx); err != nil {
		t.Fatalf("first load: %v", err)
	}
	cache.drop(testCacheKey)
	if _, err := loader.Index(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if bucket.count(artifact.ModelLookupKey) != 2 {
		t.Fatalf("an absent cache entry is a cold start, expected a second fetch")
	}
}

func TestLoaderToleratesBrokenCache(t *testing.T) {
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey: gz(t, `{"index": {"a/m": 1}}`),
	})
	idx, err := newTestLoader(t, bucket, brokenCache{}, false).Index(context.Background())
	if err != nil {
		t.Fatalf("cache failures must not fail the load: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("unexpected index size %d", idx.Len())
	}
}

func TestLoaderIgnoresInvalidCacheEntry(t *testing.T) {
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey: gz(t, `{"index": {"a/m": 1}}`),
	})
	cache := newRecordingCache()
	cache.entries[testCacheKey] = edgecache.NewResponse([]byte("garbage"), time.Hour, nil)

	if _, err := newTestLoader(t, bucket, cache, false).Index(context.Background()); err != nil {
		t.Fatalf("Index error: %v", err)
	}
	if bucket.count(artifact.ModelLookupKey) != 1 || cache.puts != 1 {
		t.Fatalf("invalid entry should be replaced from the store")
	}
}

func TestLoaderSnapshotNeverLoads(t *testing.T) {
	loader := newTestLoader(t, explodingBucket{t: t}, explodingCache{t: t}, false)
	if _, ok := loader.Snapshot(); ok {
		t.Fatalf("snapshot should be empty before the first load")
	}
}

func TestLoaderConcurrentColdStartsAreAllowed(t *testing.T) {
	const callers = 4
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey: gz(t, `{"index": {"a/m": 1}}`),
	})
	bucket.entered = make(chan string, callers)
	bucket.release = make(chan struct{})
	loader := newTestLoader(t, bucket, edgecache.Noop{}, false)

	errs := runConcurrently(loader, callers)
	for i := 0; i < callers; i++ {
		select {
		case <-bucket.entered:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d concurrent fetches, saw %d", callers, i)
		}
	}
	close(bucket.release)
	for err := range errs {
		if err != nil {
			t.Fatalf("Index error: %v", err)
		}
	}
	if got := bucket.count(artifact.ModelLookupKey); got != callers {
		t.Fatalf("without singleflight each cold caller fetches, got %d", got)
	}
}

func TestLoaderSingleFlightCollapsesColdStarts(t *testing.T) {
	const callers = 4
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey: gz(t, `{"index": {"a/m": 1}}`),
	})
	bucket.entered = make(chan string, callers)
	bucket.release = make(chan struct{})
	loader := newTestLoader(t, bucket, edgecache.NewMemoryCache(0), true)

	errs := runConcurrently(loader, callers)
	select {
	case <-bucket.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("no fetch started")
	}
	time.Sleep(20 * time.Millisecond)
	close(bucket.release)
	for err := range errs {
		if err != nil {
			t.Fatalf("Index error: %v", err)
		}
	}
	if got := bucket.count(artifact.ModelLookupKey); got != 1 {
		t.Fatalf("singleflight should collapse cold starts, got %d fetches", got)
	}
}

type countingObserver struct {
	mu      sync.Mutex
	sources []string
}

func (o *countingObserver) ObserveIndexLoad(source string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sources = append(o.sources, source)
}

func TestLoaderReportsSources(t *testing.T) {
	bucket := newMemBucket(map[string][]byte{
		artifact.ModelLookupKey: gz(t, `{"index": {"a/m": 1}}`),
	})
	observer := &countingObserver{}
	loader, err := NewLoader(LoaderOptions{
		Bucket:   bucket,
		Cache:    edgecache.NewMemoryCache(0),
		Observer: observer,
		CacheKey: testCacheKey,
		TTL:      time.Hour,
	})
	if err != nil {
		t.Fatalf("NewLoader error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := loader.Index(context.Background()); err != nil {
			t.Fatalf("Index error: %v", err)
		}
	}
	if len(observer.sources) != 2 || observer.sources[0] != SourceStore || observer.sources[1] != SourceMemo {
		t.Fatalf("unexpected sources %v", observer.sources)
	}
	if snap, ok := loader.Snapshot(); !ok || snap.Len() != 1 {
		t.Fatalf("snapshot should expose the loaded index")
	}
}

func TestNewLoaderValidatesOptions(t *testing.T) {
	bucket := newMemBucket(nil)
	cases := []LoaderOptions{
		{CacheKey: testCacheKey, TTL: time.Hour},
		{Bucket: bucket, TTL: time.Hour},
		{Bucket: bucket, CacheKey: testCacheKey},
	}
	for i, opts := range cases {
		if _, err := NewLoader(opts); err == nil {
			t.Fatalf("case %d should fail", i)
		}
	}
}

type failingBucket struct{}

func (failingBucket) Get(context.Context, string) (*objectstore.Object, error) {
	return nil, errors.New("s3 get: access denied")
}

func runConcurrently(loader *Loader, n int) <-chan error {
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := loader.Index(context.Background())
			errs <- err
		}()
	}
	go func() {
		wg.Wait()
		close(errs)
	}()
	return errs
}
