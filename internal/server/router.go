package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ai-ecosystem-graph/graph-edge/internal/artifact"
	"github.com/ai-ecosystem-graph/graph-edge/internal/catalog"
	"github.com/ai-ecosystem-graph/graph-edge/internal/metrics"
)

// FileServer 负责把解析出的对象键写回客户端，*blob.Responder 实现该接口。
type FileServer interface {
	Serve(c fiber.Ctx, res artifact.Resolution, requestID string) error
}

// AppOptions 描述构建 Fiber 应用所需的依赖。
type AppOptions struct {
	Logger     *logrus.Logger
	Querier    *catalog.Querier
	Files      FileServer
	Metrics    *metrics.Collectors
	ListenPort int
	// Diagnostics 为 true 时 /-/ 前缀交给诊断路由处理。
	Diagnostics bool
	// QueryTimeout 限制 search/lookup 加载索引的时间，0 表示不限制。
	QueryTimeout time.Duration
}

// 请求动作，用于指标标签。
const (
	actionPreflight   = "preflight"
	actionSearch      = "search"
	actionLookup      = "lookup"
	actionDiagnostics = "diagnostics"
	actionBlob        = "blob"
)

const contextKeyRequestID = "_graphedge_request_id"

// CORS 预检响应头。
var preflightHeaders = map[string]string{
	fiber.HeaderAccessControlAllowOrigin:  "*",
	fiber.HeaderAccessControlAllowMethods: "GET, HEAD, OPTIONS",
	fiber.HeaderAccessControlAllowHeaders: "*",
	fiber.HeaderAccessControlMaxAge:       "86400",
}

// NewApp builds the Fiber application: recover, request context middleware,
// the two query endpoints and the artifact catch-all.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Querier == nil {
		return nil, errors.New("querier is required")
	}
	if opts.Files == nil {
		return nil, errors.New("file server is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		StrictRouting: true,
		AppName:       "graph-edge",
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	h := &queryHandlers{
		querier: opts.Querier,
		logger:  opts.Logger,
		timeout: opts.QueryTimeout,
	}
	app.All("/search", h.search)
	app.All("/lookup", h.lookup)

	app.All("/*", func(c fiber.Ctx) error {
		if opts.Diagnostics && isDiagnosticsPath(c.Path()) {
			return c.Next()
		}
		return opts.Files.Serve(c, artifact.Resolve(c.Path()), RequestID(c))
	})

	return app, nil
}

// requestContextMiddleware 生成请求 ID、为所有响应附加 CORS 源头，
// 并在任何路由之前短路 OPTIONS 预检。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		c.Set(fiber.HeaderAccessControlAllowOrigin, "*")

		action := classify(c.Method(), c.Path(), opts.Diagnostics)
		if action == actionPreflight {
			for k, v := range preflightHeaders {
				c.Set(k, v)
			}
			c.Status(fiber.StatusNoContent)
			opts.Metrics.ObserveRequest(action, fiber.StatusNoContent)
			return nil
		}

		err := c.Next()
		opts.Metrics.ObserveRequest(action, responseStatus(c, err))
		return err
	}
}

func classify(method, path string, diagnostics bool) string {
	switch {
	case method == fiber.MethodOptions:
		return actionPreflight
	case path == "/search":
		return actionSearch
	case path == "/lookup":
		return actionLookup
	case diagnostics && isDiagnosticsPath(path):
		return actionDiagnostics
	default:
		return actionBlob
	}
}

func responseStatus(c fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

func isDiagnosticsPath(path string) bool {
	return strings.HasPrefix(path, "/-/")
}
