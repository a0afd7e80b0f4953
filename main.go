package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/ai-ecosystem-graph/graph-edge/internal/blob"
	"github.com/ai-ecosystem-graph/graph-edge/internal/catalog"
	"github.com/ai-ecosystem-graph/graph-edge/internal/config"
	"github.com/ai-ecosystem-graph/graph-edge/internal/edgecache"
	"github.com/ai-ecosystem-graph/graph-edge/internal/logging"
	"github.com/ai-ecosystem-graph/graph-edge/internal/metrics"
	"github.com/ai-ecosystem-graph/graph-edge/internal/objectstore"
	"github.com/ai-ecosystem-graph/graph-edge/internal/server"
	"github.com/ai-ecosystem-graph/graph-edge/internal/server/routes"
	"github.com/ai-ecosystem-graph/graph-edge/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["storage"] = cfg.Storage.Summary()
		fields["edge_cache"] = cfg.EdgeCache.Backend
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	app, err := buildApp(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化服务失败: %v\n", err)
		return 1
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["storage"] = cfg.Storage.Summary()
	fields["edge_cache"] = cfg.EdgeCache.Backend
	fields["single_flight"] = cfg.Index.SingleFlight
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(app, cfg.Global.ListenPort, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("graph-edge", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 GRAPH_EDGE_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("GRAPH_EDGE_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

// buildApp 按“对象存储 → 边缘缓存 → 索引加载器 → 文件响应 → Fiber”顺序装配，
// 所有请求共享同一份存储客户端与缓存实例。
func buildApp(cfg *config.Config, logger *logrus.Logger) (*fiber.App, error) {
	bucket, err := objectstore.New(cfg.Storage, cfg.Global.RequestTimeout.DurationValue())
	if err != nil {
		return nil, fmt.Errorf("初始化对象存储失败: %w", err)
	}

	cache, err := edgecache.New(cfg.EdgeCache)
	if err != nil {
		return nil, fmt.Errorf("初始化边缘缓存失败: %w", err)
	}

	collectors := metrics.New()

	loader, err := catalog.NewLoader(catalog.LoaderOptions{
		Bucket:       bucket,
		Cache:        cache,
		Logger:       logger,
		Observer:     collectors,
		CacheKey:     cfg.Index.CacheKey,
		TTL:          cfg.Index.CacheTTL.DurationValue(),
		SingleFlight: cfg.Index.SingleFlight,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化索引加载器失败: %w", err)
	}

	querier := catalog.NewQuerier(loader, catalog.QueryOptions{
		MinQueryLength: cfg.Index.MinQueryLength,
		DefaultLimit:   cfg.Index.DefaultSearchLimit,
		MaxLimit:       cfg.Index.MaxSearchLimit,
	})

	responder, err := blob.New(blob.Options{
		Bucket:               bucket,
		Logger:               logger,
		CacheMaxAge:          cfg.Blob.CacheMaxAge.DurationValue(),
		DecompressIndexFiles: cfg.Blob.DecompressIndexFiles,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化文件响应失败: %w", err)
	}

	app, err := server.NewApp(server.AppOptions{
		Logger:       logger,
		Querier:      querier,
		Files:        responder,
		Metrics:      collectors,
		ListenPort:   cfg.Global.ListenPort,
		Diagnostics:  cfg.Diagnostics.Enabled,
		QueryTimeout: cfg.Global.RequestTimeout.DurationValue(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Diagnostics.Enabled {
		routes.RegisterDiagnosticsRoutes(app, routes.DiagnosticsOptions{
			Index:                loader,
			Cache:                cache,
			Metrics:              collectors,
			StorageSummary:       cfg.Storage.Summary(),
			DecompressIndexFiles: cfg.Blob.DecompressIndexFiles,
		})
	}
	return app, nil
}

func startHTTPServer(app *fiber.App, port int, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
