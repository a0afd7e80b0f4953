package edgecache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache 是进程内实现，适合单实例部署与测试。
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*Response
	order      []string
	maxEntries int
	now        func() time.Time
}

// NewMemoryCache 创建内存缓存；maxEntries<=0 表示不限制条目数。
func NewMemoryCache(maxEntries int) *MemoryCache {
	return &MemoryCache{
		entries:    make(map[string]*Response),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryCache) Match(ctx context.Context, key string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, ErrMiss
	}
	if !entry.Fresh(m.now()) {
		m.removeLocked(key)
		return nil, ErrMiss
	}
	return entry.clone(), nil
}

func (m *MemoryCache) Put(ctx context.Context, key string, resp *Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if resp == nil || resp.MaxAge() <= 0 {
		return nil
	}
	stored := prepare(resp, m.now())

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; exists {
		m.removeLocked(key)
	}
	m.entries[key] = stored
	m.order = append(m.order, key)
	m.evictLocked()
	return nil
}

// Len 返回当前条目数（含尚未清理的过期条目）。
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// evictLocked 先清理过期条目，再按写入顺序淘汰最旧条目。
func (m *MemoryCache) evictLocked() {
	now := m.now()
	for _, key := range append([]string(nil), m.order...) {
		if entry := m.entries[key]; entry != nil && !entry.Fresh(now) {
			m.removeLocked(key)
		}
	}
	for m.maxEntries > 0 && len(m.order) > m.maxEntries {
		m.removeLocked(m.order[0])
	}
}

func (m *MemoryCache) removeLocked(key string) {
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}
