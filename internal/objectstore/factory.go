package objectstore

import (
	"fmt"
	"time"

	"github.com/ai-ecosystem-graph/graph-edge/internal/config"
)

// New 根据配置选择存储后端。
func New(cfg config.StorageConfig, headerTimeout time.Duration) (Bucket, error) {
	switch cfg.Backend {
	case config.StorageBackendFS, "":
		return NewFSBucket(cfg.Path, cfg.Prefix)
	case config.StorageBackendS3:
		return NewS3Bucket(S3Options{
			Endpoint:        cfg.ResolvedEndpoint(),
			Bucket:          cfg.Bucket,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
			Prefix:          cfg.Prefix,
			HeaderTimeout:   headerTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}
