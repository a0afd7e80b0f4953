package blob

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/klauspost/compress/gzip"
	"github.com/sirupsen/logrus"

	"github.com/ai-ecosystem-graph/graph-edge/internal/artifact"
	"github.com/ai-ecosystem-graph/graph-edge/internal/logging"
	"github.com/ai-ecosystem-graph/graph-edge/internal/objectstore"
)

// 文件透传响应使用的 CORS 方法列表。
const allowMethods = "GET, HEAD, OPTIONS"

// Options 描述 Responder 的依赖与响应参数。
type Options struct {
	Bucket               objectstore.Bucket
	Logger               *logrus.Logger
	CacheMaxAge          time.Duration
	DecompressIndexFiles bool
}

// Responder 将对象存储中的条目写回客户端。
type Responder struct {
	bucket       objectstore.Bucket
	logger       *logrus.Logger
	cacheControl string
	decompress   bool
}

// New 创建 Responder，CacheMaxAge 未设置时使用 1 小时。
func New(opts Options) (*Responder, error) {
	if opts.Bucket == nil {
		return nil, errors.New("object store bucket is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	maxAge := opts.CacheMaxAge
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Responder{
		bucket:       opts.Bucket,
		logger:       logger,
		cacheControl: "public, max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10),
		decompress:   opts.DecompressIndexFiles,
	}, nil
}

// Serve 读取 res.Key 对应的对象并写入响应。对象缺失是正常结果，返回 404 文本。
func (r *Responder) Serve(c fiber.Ctx, res artifact.Resolution, requestID string) error {
	started := time.Now()

	obj, err := r.bucket.Get(c.Context(), res.Key)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) {
			r.logResult(res, requestID, fiber.StatusNotFound, -1, started, nil)
			return writeText(c, fiber.StatusNotFound, "File not found: "+res.Key)
		}
		r.logResult(res, requestID, fiber.StatusBadGateway, -1, started, err)
		return writeText(c, fiber.StatusBadGateway, "Storage error: "+res.Key)
	}

	if r.decompress && res.Decompressible {
		return r.serveDecompressed(c, res, obj, requestID, started)
	}
	return r.servePassthrough(c, res, obj, requestID, started)
}

// servePassthrough 原样透传 gzip 字节，不设置 Content-Encoding。
func (r *Responder) servePassthrough(
	c fiber.Ctx,
	res artifact.Resolution,
	obj *objectstore.Object,
	requestID string,
	started time.Time,
) error {
	r.setHeaders(c, "application/gzip", obj)
	c.Status(fiber.StatusOK)

	size := -1
	if obj.SizeKnown() {
		size = int(obj.Size)
	}

	if c.Method() == http.MethodHead {
		obj.Body.Close()
		if size >= 0 {
			c.Response().Header.SetContentLength(size)
		}
		r.logResult(res, requestID, fiber.StatusOK, obj.Size, started, nil)
		return nil
	}

	// 流由 fasthttp 在写完后关闭。
	err := c.SendStream(obj.Body, size)
	r.logResult(res, requestID, fiber.StatusOK, obj.Size, started, err)
	return err
}

// serveDecompressed 边读边解压小型索引文件，以 JSON 返回，不设置 Content-Length。
func (r *Responder) serveDecompressed(
	c fiber.Ctx,
	res artifact.Resolution,
	obj *objectstore.Object,
	requestID string,
	started time.Time,
) error {
	zr, err := gzip.NewReader(obj.Body)
	if err != nil {
		obj.Body.Close()
		err = fmt.Errorf("decompress %s: %w", res.Key, err)
		r.logResult(res, requestID, fiber.StatusBadGateway, obj.Size, started, err)
		return writeText(c, fiber.StatusBadGateway, "Storage error: "+res.Key)
	}

	r.setHeaders(c, fiber.MIMEApplicationJSON, obj)
	c.Status(fiber.StatusOK)

	if c.Method() == http.MethodHead {
		zr.Close()
		obj.Body.Close()
		r.logResult(res, requestID, fiber.StatusOK, -1, started, nil)
		return nil
	}

	err = c.SendStream(&gunzipStream{Reader: zr, source: obj.Body}, -1)
	r.logResult(res, requestID, fiber.StatusOK, -1, started, err)
	return err
}

func (r *Responder) setHeaders(c fiber.Ctx, contentType string, obj *objectstore.Object) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderAccessControlAllowMethods, allowMethods)
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, r.cacheControl)
	if obj.ETag != "" {
		c.Set(fiber.HeaderETag, `"`+strings.Trim(obj.ETag, `"`)+`"`)
	}
	if !obj.ModTime.IsZero() {
		c.Set(fiber.HeaderLastModified, obj.ModTime.UTC().Format(http.TimeFormat))
	}
	c.Response().Header.Del(fiber.HeaderContentEncoding)
}

func writeText(c fiber.Ctx, status int, body string) error {
	c.Set(fiber.HeaderAccessControlAllowOrigin, "*")
	c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
	return c.Status(status).SendString(body)
}

func (r *Responder) logResult(
	res artifact.Resolution,
	requestID string,
	status int,
	size int64,
	started time.Time,
	err error,
) {
	fields := logging.RequestFields("blob", res.Key, status, requestID)
	fields["class"] = res.Class
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if size >= 0 {
		fields["size"] = size
	}
	if err != nil {
		fields["error"] = err.Error()
		r.logger.WithFields(fields).Error("blob_failed")
		return
	}
	r.logger.WithFields(fields).Info("blob_complete")
}

// gunzipStream 在关闭时同时释放解压器与对象正文。
type gunzipStream struct {
	*gzip.Reader
	source io.Closer
}

func (s *gunzipStream) Close() error {
	zErr := s.Reader.Close()
	if err := s.source.Close(); err != nil {
		return err
	}
	return zErr
}
