package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/ai-ecosystem-graph/graph-edge/internal/catalog"
	"github.com/ai-ecosystem-graph/graph-edge/internal/logging"
)

// lookup 结果允许客户端缓存一小时。
const lookupCacheControl = "public, max-age=3600"

type queryHandlers struct {
	querier *catalog.Querier
	logger  *logrus.Logger
	timeout time.Duration
}

func (h *queryHandlers) context(c fiber.Ctx) (context.Context, context.CancelFunc) {
	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if h.timeout > 0 {
		return context.WithTimeout(ctx, h.timeout)
	}
	return context.WithCancel(ctx)
}

// search 处理 /search?q=&limit=，出错时仍返回空的 matches 列表。
func (h *queryHandlers) search(c fiber.Ctx) error {
	fallback := fiber.Map{"matches": []catalog.Match{}}
	return guardAction(c, h.logger, actionSearch, fallback, func() error {
		started := time.Now()
		query := c.Query("q")
		limit := h.querier.ParseLimit(c.Query("limit"))

		ctx, cancel := h.context(c)
		defer cancel()

		matches, err := h.querier.Search(ctx, query, limit)
		if err != nil {
			h.logQuery(c, actionSearch, fiber.StatusInternalServerError, started, logrus.Fields{"query": query}, err)
			return writeActionError(c, fiber.StatusInternalServerError, err.Error(), fallback)
		}

		h.logQuery(c, actionSearch, fiber.StatusOK, started, logrus.Fields{
			"query":   query,
			"limit":   limit,
			"matches": len(matches),
		}, nil)
		return c.JSON(fiber.Map{"matches": matches})
	})
}

// lookup 处理 /lookup?model_id=，返回组件 ID 原值。
func (h *queryHandlers) lookup(c fiber.Ctx) error {
	return guardAction(c, h.logger, actionLookup, nil, func() error {
		started := time.Now()
		modelID := c.Query("model_id")

		ctx, cancel := h.context(c)
		defer cancel()

		componentID, found, err := h.querier.Lookup(ctx, modelID)
		switch {
		case errors.Is(err, catalog.ErrModelIDRequired):
			h.logQuery(c, actionLookup, fiber.StatusBadRequest, started, nil, nil)
			return writeActionError(c, fiber.StatusBadRequest, "model_id parameter required", nil)
		case err != nil:
			h.logQuery(c, actionLookup, fiber.StatusInternalServerError, started, logrus.Fields{"model_id": modelID}, err)
			return writeActionError(c, fiber.StatusInternalServerError, err.Error(), nil)
		case !found:
			h.logQuery(c, actionLookup, fiber.StatusNotFound, started, logrus.Fields{"model_id": modelID}, nil)
			return writeActionError(c, fiber.StatusNotFound, "Model not found", fiber.Map{"component_id": nil})
		}

		h.logQuery(c, actionLookup, fiber.StatusOK, started, logrus.Fields{"model_id": modelID}, nil)
		c.Set(fiber.HeaderCacheControl, lookupCacheControl)
		return c.JSON(fiber.Map{"component_id": componentID})
	})
}

func (h *queryHandlers) logQuery(c fiber.Ctx, action string, status int, started time.Time, extra logrus.Fields, err error) {
	fields := logging.RequestFields(action, "", status, RequestID(c))
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	for k, v := range extra {
		fields[k] = v
	}
	if err != nil {
		fields["error"] = err.Error()
		h.logger.WithFields(fields).Error("query_failed")
		return
	}
	h.logger.WithFields(fields).Info("query_complete")
}
