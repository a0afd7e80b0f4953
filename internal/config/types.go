package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"1h" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}

	if intVal, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Seconds 返回整秒数，用于拼接 Cache-Control max-age。
func (d Duration) Seconds() int64 {
	return int64(time.Duration(d) / time.Second)
}

// 存储后端与边缘缓存后端的取值。
const (
	StorageBackendFS = "fs"
	StorageBackendS3 = "s3"

	EdgeCacheMemory = "memory"
	EdgeCacheRedis  = "redis"
	EdgeCacheNone   = "none"
)

// GlobalConfig 描述进程级运行参数（监听端口、日志、请求超时）。
type GlobalConfig struct {
	ListenPort     int      `mapstructure:"ListenPort"`
	LogLevel       string   `mapstructure:"LogLevel"`
	LogFilePath    string   `mapstructure:"LogFilePath"`
	LogMaxSize     int      `mapstructure:"LogMaxSize"`
	LogMaxBackups  int      `mapstructure:"LogMaxBackups"`
	LogCompress    bool     `mapstructure:"LogCompress"`
	RequestTimeout Duration `mapstructure:"RequestTimeout"`
}

// StorageConfig 决定数据集对象从哪里读取：本地目录或 S3 兼容存储（R2/MinIO）。
type StorageConfig struct {
	Backend         string `mapstructure:"Backend"`
	Path            string `mapstructure:"Path"`
	Endpoint        string `mapstructure:"Endpoint"`
	AccountID       string `mapstructure:"AccountID"`
	Bucket          string `mapstructure:"Bucket"`
	Region          string `mapstructure:"Region"`
	AccessKeyID     string `mapstructure:"AccessKeyID"`
	SecretAccessKey string `mapstructure:"SecretAccessKey"`
	UseSSL          bool   `mapstructure:"UseSSL"`
	Prefix          string `mapstructure:"Prefix"`
}

// EdgeCacheConfig 描述索引缓存所使用的响应缓存后端。
type EdgeCacheConfig struct {
	Backend    string `mapstructure:"Backend"`
	URL        string `mapstructure:"URL"`
	KeyPrefix  string `mapstructure:"KeyPrefix"`
	MaxEntries int    `mapstructure:"MaxEntries"`
}

// IndexConfig 控制 model → component 索引的缓存键、有效期与搜索参数。
type IndexConfig struct {
	CacheKey           string   `mapstructure:"CacheKey"`
	CacheTTL           Duration `mapstructure:"CacheTTL"`
	MinQueryLength     int      `mapstructure:"MinQueryLength"`
	DefaultSearchLimit int      `mapstructure:"DefaultSearchLimit"`
	MaxSearchLimit     int      `mapstructure:"MaxSearchLimit"`
	SingleFlight       bool     `mapstructure:"SingleFlight"`
}

// BlobConfig 控制文件透传的响应头与可选的服务端解压模式。
type BlobConfig struct {
	CacheMaxAge          Duration `mapstructure:"CacheMaxAge"`
	DecompressIndexFiles bool     `mapstructure:"DecompressIndexFiles"`
}

// DiagnosticsConfig 控制 /-/ 诊断接口是否挂载。
type DiagnosticsConfig struct {
	Enabled bool `mapstructure:"Enabled"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global      GlobalConfig      `mapstructure:",squash"`
	Storage     StorageConfig     `mapstructure:"Storage"`
	EdgeCache   EdgeCacheConfig   `mapstructure:"EdgeCache"`
	Index       IndexConfig       `mapstructure:"Index"`
	Blob        BlobConfig        `mapstructure:"Blob"`
	Diagnostics DiagnosticsConfig `mapstructure:"Diagnostics"`
}

// HasCredentials 表示 S3 后端是否配置了完整的访问密钥。
func (s StorageConfig) HasCredentials() bool {
	return s.AccessKeyID != "" && s.SecretAccessKey != ""
}

// ResolvedEndpoint 返回 S3 endpoint；仅配置 AccountID 时推导 R2 地址。
func (s StorageConfig) ResolvedEndpoint() string {
	if endpoint := strings.TrimSpace(s.Endpoint); endpoint != "" {
		return endpoint
	}
	if s.AccountID != "" {
		return fmt.Sprintf("%s.r2.cloudflarestorage.com", s.AccountID)
	}
	return ""
}

// Summary 输出 backend:location 形式的描述，供启动日志使用，不包含密钥。
func (s StorageConfig) Summary() string {
	switch s.Backend {
	case StorageBackendS3:
		return fmt.Sprintf("s3:%s/%s", s.ResolvedEndpoint(), s.Bucket)
	default:
		return fmt.Sprintf("fs:%s", s.Path)
	}
}
