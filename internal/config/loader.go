package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// DefaultIndexCacheKey 是索引缓存条目的固定逻辑键。
const DefaultIndexCacheKey = "v1:index:model_lookup"

const envPrefix = "GRAPH_EDGE"

// Load 读取并解析 TOML 配置文件，同时注入默认值、环境变量覆盖与校验逻辑。
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(durationDecodeHook())); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Backend == StorageBackendFS {
		absPath, err := filepath.Abs(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("无法解析存储目录: %w", err)
		}
		cfg.Storage.Path = absPath
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ListenPort", 8787)
	v.SetDefault("LogLevel", "info")
	v.SetDefault("LogFilePath", "")
	v.SetDefault("LogMaxSize", 100)
	v.SetDefault("LogMaxBackups", 10)
	v.SetDefault("LogCompress", true)
	v.SetDefault("RequestTimeout", "30s")

	v.SetDefault("Storage.Backend", StorageBackendFS)
	v.SetDefault("Storage.Path", "./data")
	v.SetDefault("Storage.Endpoint", "")
	v.SetDefault("Storage.AccountID", "")
	v.SetDefault("Storage.Bucket", "")
	v.SetDefault("Storage.Region", "auto")
	v.SetDefault("Storage.AccessKeyID", "")
	v.SetDefault("Storage.SecretAccessKey", "")
	v.SetDefault("Storage.UseSSL", true)
	v.SetDefault("Storage.Prefix", "")

	v.SetDefault("EdgeCache.Backend", EdgeCacheMemory)
	v.SetDefault("EdgeCache.URL", "")
	v.SetDefault("EdgeCache.KeyPrefix", "graph-edge:")
	v.SetDefault("EdgeCache.MaxEntries", 64)

	v.SetDefault("Index.CacheKey", DefaultIndexCacheKey)
	v.SetDefault("Index.CacheTTL", 3600)
	v.SetDefault("Index.MinQueryLength", 2)
	v.SetDefault("Index.DefaultSearchLimit", 10)
	v.SetDefault("Index.MaxSearchLimit", 100)
	v.SetDefault("Index.SingleFlight", false)

	v.SetDefault("Blob.CacheMaxAge", 3600)
	v.SetDefault("Blob.DecompressIndexFiles", false)

	v.SetDefault("Diagnostics.Enabled", true)
}

// bindEnv 允许通过 GRAPH_EDGE_<SECTION>_<KEY> 覆盖配置，并兼容上传脚本使用的 R2_* 变量。
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("Storage.AccountID", envPrefix+"_STORAGE_ACCOUNTID", "R2_ACCOUNT_ID")
	_ = v.BindEnv("Storage.AccessKeyID", envPrefix+"_STORAGE_ACCESSKEYID", "R2_ACCESS_KEY_ID")
	_ = v.BindEnv("Storage.SecretAccessKey", envPrefix+"_STORAGE_SECRETACCESSKEY", "R2_SECRET_ACCESS_KEY")
	_ = v.BindEnv("Storage.Bucket", envPrefix+"_STORAGE_BUCKET", "R2_BUCKET_NAME")
}

func applyDefaults(cfg *Config) {
	g := &cfg.Global
	if g.ListenPort == 0 {
		g.ListenPort = 8787
	}
	if g.RequestTimeout.DurationValue() == 0 {
		g.RequestTimeout = Duration(30 * time.Second)
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageBackendFS
	}
	cfg.Storage.Prefix = strings.Trim(cfg.Storage.Prefix, "/")

	cfg.EdgeCache.Backend = strings.ToLower(strings.TrimSpace(cfg.EdgeCache.Backend))
	if cfg.EdgeCache.Backend == "" {
		cfg.EdgeCache.Backend = EdgeCacheMemory
	}

	idx := &cfg.Index
	if strings.TrimSpace(idx.CacheKey) == "" {
		idx.CacheKey = DefaultIndexCacheKey
	}
	if idx.CacheTTL.DurationValue() == 0 {
		idx.CacheTTL = Duration(time.Hour)
	}
	if idx.DefaultSearchLimit == 0 {
		idx.DefaultSearchLimit = 10
	}

	if cfg.Blob.CacheMaxAge.DurationValue() == 0 {
		cfg.Blob.CacheMaxAge = Duration(time.Hour)
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			if v == "" {
				return Duration(0), nil
			}
			if parsed, err := time.ParseDuration(v); err == nil {
				return Duration(parsed), nil
			}
			if seconds, err := strconv.ParseFloat(v, 64); err == nil {
				return Duration(time.Duration(seconds * float64(time.Second))), nil
			}
			return nil, fmt.Errorf("无法解析 Duration 字段: %s", v)
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("不支持的 Duration 类型: %T", v)
		}
	}
}
