package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.RequestTimeout.DurationValue() <= 0 {
		return newFieldError("Global.RequestTimeout", "必须大于 0")
	}

	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.EdgeCache.validate(); err != nil {
		return err
	}
	if err := c.Index.validate(); err != nil {
		return err
	}
	if c.Blob.CacheMaxAge.DurationValue() <= 0 {
		return newFieldError(sectionField("Blob", "CacheMaxAge"), "必须大于 0")
	}
	return nil
}

func (s StorageConfig) validate() error {
	switch s.Backend {
	case StorageBackendFS:
		if strings.TrimSpace(s.Path) == "" {
			return newFieldError(sectionField("Storage", "Path"), "fs 后端不能为空")
		}
	case StorageBackendS3:
		if strings.TrimSpace(s.Bucket) == "" {
			return newFieldError(sectionField("Storage", "Bucket"), "s3 后端不能为空")
		}
		if err := validateEndpoint(s.ResolvedEndpoint()); err != nil {
			return fmt.Errorf("%s: %w", sectionField("Storage", "Endpoint"), err)
		}
		if (s.AccessKeyID == "") != (s.SecretAccessKey == "") {
			return newFieldError(sectionField("Storage", "AccessKeyID/SecretAccessKey"), "必须同时提供或同时留空")
		}
	default:
		return newFieldError(sectionField("Storage", "Backend"), "仅支持 fs|s3")
	}
	return nil
}

func (e EdgeCacheConfig) validate() error {
	switch e.Backend {
	case EdgeCacheMemory, EdgeCacheNone:
	case EdgeCacheRedis:
		if strings.TrimSpace(e.URL) == "" {
			return newFieldError(sectionField("EdgeCache", "URL"), "redis 后端不能为空")
		}
		parsed, err := url.Parse(e.URL)
		if err != nil {
			return fmt.Errorf("%s: %w", sectionField("EdgeCache", "URL"), err)
		}
		if parsed.Scheme != "redis" && parsed.Scheme != "rediss" {
			return newFieldError(sectionField("EdgeCache", "URL"), "仅支持 redis:// 或 rediss://")
		}
	default:
		return newFieldError(sectionField("EdgeCache", "Backend"), "仅支持 memory|redis|none")
	}
	if e.MaxEntries < 0 {
		return newFieldError(sectionField("EdgeCache", "MaxEntries"), "不能为负数")
	}
	return nil
}

func (i IndexConfig) validate() error {
	if i.CacheTTL.DurationValue() <= 0 {
		return newFieldError(sectionField("Index", "CacheTTL"), "必须大于 0")
	}
	if i.MinQueryLength < 0 {
		return newFieldError(sectionField("Index", "MinQueryLength"), "不能为负数")
	}
	if i.DefaultSearchLimit <= 0 {
		return newFieldError(sectionField("Index", "DefaultSearchLimit"), "必须大于 0")
	}
	if i.MaxSearchLimit != 0 && i.MaxSearchLimit < i.DefaultSearchLimit {
		return newFieldError(sectionField("Index", "MaxSearchLimit"), "不能小于 DefaultSearchLimit")
	}
	return nil
}

func validateEndpoint(raw string) error {
	if raw == "" {
		return errors.New("缺少 endpoint（或 AccountID）")
	}
	if strings.Contains(raw, "://") {
		return fmt.Errorf("endpoint 不应包含协议头: %s", raw)
	}
	if strings.Contains(raw, "/") {
		return fmt.Errorf("endpoint 不允许包含路径: %s", raw)
	}
	return nil
}
