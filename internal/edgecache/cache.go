package edgecache

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrMiss 表示缓存中不存在可用（未过期）的条目。
var ErrMiss = errors.New("edge cache miss")

// Cache 以响应为单位缓存数据：Match 命中返回副本，Put 按响应自身的 max-age 决定有效期。
type Cache interface {
	Match(ctx context.Context, key string) (*Response, error)
	Put(ctx context.Context, key string, resp *Response) error
}

// HealthChecker 由需要外部连接的后端实现，供诊断接口探测。
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Response 是缓存中保存的完整响应。Header 的键统一为规范大小写。
type Response struct {
	Status   int
	Header   map[string]string
	Body     []byte
	StoredAt time.Time
}

// NewResponse 构造 200 响应并写入 Cache-Control: public, max-age=<ttl>。
func NewResponse(body []byte, ttl time.Duration, header map[string]string) *Response {
	merged := make(map[string]string, len(header)+1)
	for k, v := range header {
		merged[k] = v
	}
	merged["Cache-Control"] = "public, max-age=" + strconv.FormatInt(int64(ttl/time.Second), 10)
	return &Response{
		Status: 200,
		Header: merged,
		Body:   body,
	}
}

// Get 读取响应头，不存在时返回空串。
func (r *Response) Get(name string) string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header[name]
}

// MaxAge 解析 Cache-Control 中的 max-age；no-store 或缺失时返回 0。
func (r *Response) MaxAge() time.Duration {
	raw := r.Get("Cache-Control")
	if raw == "" {
		return 0
	}
	var maxAge time.Duration
	for _, directive := range strings.Split(raw, ",") {
		directive = strings.ToLower(strings.TrimSpace(directive))
		if directive == "no-store" {
			return 0
		}
		value, ok := strings.CutPrefix(directive, "max-age=")
		if !ok {
			continue
		}
		seconds, err := strconv.ParseInt(strings.Trim(value, `"`), 10, 64)
		if err != nil || seconds <= 0 {
			return 0
		}
		maxAge = time.Duration(seconds) * time.Second
	}
	return maxAge
}

// ExpiresAt 返回条目的过期时间；不可缓存的响应返回零值。
func (r *Response) ExpiresAt() time.Time {
	ttl := r.MaxAge()
	if ttl <= 0 || r.StoredAt.IsZero() {
		return time.Time{}
	}
	return r.StoredAt.Add(ttl)
}

// Fresh 判断条目在 now 时刻是否仍可复用。
func (r *Response) Fresh(now time.Time) bool {
	expires := r.ExpiresAt()
	if expires.IsZero() {
		return false
	}
	return now.Before(expires)
}

func (r *Response) clone() *Response {
	if r == nil {
		return nil
	}
	header := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		header[k] = v
	}
	return &Response{
		Status:   r.Status,
		Header:   header,
		Body:     r.Body,
		StoredAt: r.StoredAt,
	}
}

// prepare 在写入前复制响应并补齐状态码与写入时间。
func prepare(resp *Response, now time.Time) *Response {
	stored := resp.clone()
	if stored.Status == 0 {
		stored.Status = 200
	}
	if stored.StoredAt.IsZero() {
		stored.StoredAt = now
	}
	return stored
}
