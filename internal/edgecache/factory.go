package edgecache

import (
	"fmt"

	"github.com/ai-ecosystem-graph/graph-edge/internal/config"
)

// New 根据配置创建缓存后端。
func New(cfg config.EdgeCacheConfig) (Cache, error) {
	switch cfg.Backend {
	case "", config.EdgeCacheMemory:
		return NewMemoryCache(cfg.MaxEntries), nil
	case config.EdgeCacheRedis:
		return NewRedisCache(cfg.URL, cfg.KeyPrefix)
	case config.EdgeCacheNone:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unsupported edge cache backend: %s", cfg.Backend)
	}
}

// Describe 返回后端名称，供日志与诊断接口使用。
func Describe(c Cache) string {
	switch c.(type) {
	case *MemoryCache:
		return config.EdgeCacheMemory
	case *RedisCache:
		return config.EdgeCacheRedis
	case Noop:
		return config.EdgeCacheNone
	default:
		return fmt.Sprintf("%T", c)
	}
}
