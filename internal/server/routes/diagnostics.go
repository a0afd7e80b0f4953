package routes

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/ai-ecosystem-graph/graph-edge/internal/artifact"
	"github.com/ai-ecosystem-graph/graph-edge/internal/catalog"
	"github.com/ai-ecosystem-graph/graph-edge/internal/edgecache"
	"github.com/ai-ecosystem-graph/graph-edge/internal/metrics"
	"github.com/ai-ecosystem-graph/graph-edge/internal/version"
)

const healthCheckTimeout = 2 * time.Second

// IndexSnapshotter 返回进程内已解析的索引，*catalog.Loader 实现该接口。
type IndexSnapshotter interface {
	Snapshot() (*catalog.Index, bool)
}

// DiagnosticsOptions 汇总诊断接口读取的组件。
type DiagnosticsOptions struct {
	Index                IndexSnapshotter
	Cache                edgecache.Cache
	Metrics              *metrics.Collectors
	StorageSummary       string
	DecompressIndexFiles bool
}

// RegisterDiagnosticsRoutes 暴露 /-/healthz、/-/index、/-/artifacts 与 /-/metrics，
// 供运维查看实例状态。所有接口只读，不会触发索引加载。
func RegisterDiagnosticsRoutes(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		payload := fiber.Map{
			"status":  "ok",
			"version": version.Version,
			"storage": opts.StorageSummary,
			"cache":   cacheStatus(c, opts.Cache),
		}
		if opts.Cache != nil {
			payload["cache_backend"] = edgecache.Describe(opts.Cache)
		}
		return c.JSON(payload)
	})

	app.Get("/-/index", func(c fiber.Ctx) error {
		return c.JSON(encodeIndex(opts.Index))
	})

	app.Get("/-/artifacts", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"rules": encodeRules(artifact.Rules(), opts.DecompressIndexFiles),
		})
	})

	app.Get("/-/metrics", adaptor.HTTPHandler(opts.Metrics.Handler()))
}

func cacheStatus(c fiber.Ctx, cache edgecache.Cache) string {
	checker, ok := cache.(edgecache.HealthChecker)
	if !ok {
		return "ok"
	}
	ctx, cancel := context.WithTimeout(c.Context(), healthCheckTimeout)
	defer cancel()
	if err := checker.HealthCheck(ctx); err != nil {
		return err.Error()
	}
	return "ok"
}

type indexPayload struct {
	Loaded    bool   `json:"loaded"`
	Entries   int    `json:"entries,omitempty"`
	SourceKey string `json:"source_key,omitempty"`
	LoadedAt  string `json:"loaded_at,omitempty"`
}

func encodeIndex(source IndexSnapshotter) indexPayload {
	if source == nil {
		return indexPayload{}
	}
	idx, ok := source.Snapshot()
	if !ok {
		return indexPayload{}
	}
	payload := indexPayload{
		Loaded:    true,
		Entries:   idx.Len(),
		SourceKey: idx.SourceKey,
	}
	if !idx.LoadedAt.IsZero() {
		payload.LoadedAt = idx.LoadedAt.UTC().Format(time.RFC3339)
	}
	return payload
}

type rulePayload struct {
	Class              string   `json:"class"`
	Key                string   `json:"key,omitempty"`
	Match              string   `json:"match"`
	Needles            []string `json:"needles,omitempty"`
	Exact              []string `json:"exact,omitempty"`
	Decompressible     bool     `json:"decompressible"`
	ServedDecompressed bool     `json:"served_decompressed"`
}

func encodeRules(rules []artifact.Rule, decompress bool) []rulePayload {
	result := make([]rulePayload, 0, len(rules))
	for _, rule := range rules {
		key := rule.Key
		if key == "" && rule.Class == artifact.ClassComponent {
			key = "components/component_<N>.json.gz"
		}
		result = append(result, rulePayload{
			Class:              rule.Class,
			Key:                key,
			Match:              string(rule.Match),
			Needles:            append([]string(nil), rule.Needles...),
			Exact:              append([]string(nil), rule.Exact...),
			Decompressible:     rule.Decompressible,
			ServedDecompressed: decompress && rule.Decompressible,
		})
	}
	return result
}
