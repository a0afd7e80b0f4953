package edgecache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache 将响应以 MessagePack 编码写入 Redis，过期时间取响应的 max-age。
// 多实例共享同一份索引缓存时使用。
type RedisCache struct {
	client    redis.UniversalClient
	keyPrefix string
	now       func() time.Time
}

// NewRedisCache 解析 redis:// 或 rediss:// URL 并创建客户端，不在构造时连接。
func NewRedisCache(rawURL, keyPrefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCacheWithClient(redis.NewClient(opts), keyPrefix), nil
}

// NewRedisCacheWithClient 复用已有客户端（集群/哨兵或测试替身）。
func NewRedisCacheWithClient(client redis.UniversalClient, keyPrefix string) *RedisCache {
	return &RedisCache{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *RedisCache) Match(ctx context.Context, key string) (*Response, error) {
	raw, err := r.client.Get(ctx, r.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		// 无法解码的旧条目按未命中处理，下一次 Put 会覆盖。
		return nil, ErrMiss
	}
	if !resp.Fresh(r.now()) {
		return nil, ErrMiss
	}
	return resp, nil
}

func (r *RedisCache) Put(ctx context.Context, key string, resp *Response) error {
	if resp == nil {
		return nil
	}
	ttl := resp.MaxAge()
	if ttl <= 0 {
		return nil
	}
	stored := prepare(resp, r.now())
	if err := r.client.Set(ctx, r.keyPrefix+key, encodeResponse(stored), ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// HealthCheck 通过 PING 检测 Redis 可用性。
func (r *RedisCache) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close 释放底层连接池。
func (r *RedisCache) Close() error {
	return r.client.Close()
}
