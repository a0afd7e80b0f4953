package server

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/ai-ecosystem-graph/graph-edge/internal/logging"
)

// guardAction 执行 fn，并把 panic 转换为 500 JSON 响应，保证查询接口不会把
// 未处理的故障抛给传输层。fallback 为出错时附带的额外字段。
func guardAction(c fiber.Ctx, logger *logrus.Logger, action string, fallback fiber.Map, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = respondActionPanic(c, logger, action, fallback, r)
		}
	}()
	return fn()
}

func respondActionPanic(c fiber.Ctx, logger *logrus.Logger, action string, fallback fiber.Map, recovered interface{}) error {
	requestID := RequestID(c)
	fields := logging.RequestFields(action, "", fiber.StatusInternalServerError, requestID)
	fields["error"] = fmt.Sprintf("panic: %v", recovered)
	logger.WithFields(fields).Error("action_panic")

	return writeActionError(c, fiber.StatusInternalServerError, "Internal error", fallback)
}

func writeActionError(c fiber.Ctx, status int, message string, fallback fiber.Map) error {
	payload := fiber.Map{"error": message}
	for k, v := range fallback {
		payload[k] = v
	}
	return c.Status(status).JSON(payload)
}
