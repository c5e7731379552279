package server

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/any-hub/fs-lru/internal/diskcache"
	"github.com/any-hub/fs-lru/internal/eviction"
	"github.com/any-hub/fs-lru/internal/logging"
)

// CacheService describes the cache operations exposed over HTTP. It allows
// injecting fake caches during tests.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) ([]byte, error)
	Del(ctx context.Context, key string) error
	Reset(ctx context.Context) int
	Sweep(ctx context.Context) eviction.Report
	Stats() eviction.Stats
	Dir() string
	Options() diskcache.Options
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger    *logrus.Logger
	Cache     CacheService
	BodyLimit int
}

const (
	contextKeyRequestID = "_fslru_request_id"
	defaultBodyLimit    = 64 << 20
)

// NewApp builds a Fiber application exposing the cache API with request id
// middleware and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = defaultBodyLimit
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		BodyLimit:     opts.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(requestIDMiddleware())

	h := &cacheHandler{cache: opts.Cache, logger: opts.Logger}
	app.Get("/cache/*", h.get)
	app.Put("/cache/*", h.put)
	app.Delete("/cache/*", h.del)
	app.Post("/-/reset", h.reset)
	app.Post("/-/sweep", h.sweep)
	app.Get("/-/stats", h.stats)

	return app, nil
}

// requestIDMiddleware 为每个请求生成 ID 并写入响应头。
func requestIDMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}

type cacheHandler struct {
	cache  CacheService
	logger *logrus.Logger
}

func (h *cacheHandler) get(c fiber.Ctx) error {
	key, err := cacheKey(c)
	if err != nil {
		return h.fail(c, key, fiber.StatusBadRequest, "key_required", nil)
	}

	data, err := h.cache.Get(requestContext(c), key)
	if err != nil {
		return h.fail(c, key, statusFor(err), codeFor(err), err)
	}

	h.access(c, key, fiber.StatusOK)
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Status(fiber.StatusOK).Send(data)
}

func (h *cacheHandler) put(c fiber.Ctx) error {
	key, err := cacheKey(c)
	if err != nil {
		return h.fail(c, key, fiber.StatusBadRequest, "key_required", nil)
	}

	body := append([]byte(nil), c.Body()...)
	written, err := h.cache.Set(requestContext(c), key, body)
	if err != nil {
		return h.fail(c, key, statusFor(err), codeFor(err), err)
	}

	h.access(c, key, fiber.StatusCreated)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key":  key,
		"size": len(written),
	})
}

func (h *cacheHandler) del(c fiber.Ctx) error {
	key, err := cacheKey(c)
	if err != nil {
		return h.fail(c, key, fiber.StatusBadRequest, "key_required", nil)
	}

	if err := h.cache.Del(requestContext(c), key); err != nil {
		return h.fail(c, key, statusFor(err), codeFor(err), err)
	}

	h.access(c, key, fiber.StatusNoContent)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *cacheHandler) reset(c fiber.Ctx) error {
	removed := h.cache.Reset(requestContext(c))
	h.logger.WithFields(logrus.Fields{
		"action":     "cache_reset",
		"request_id": RequestID(c),
		"removed":    removed,
	}).Info("cache_reset")
	return c.JSON(fiber.Map{"removed": removed})
}

func (h *cacheHandler) sweep(c fiber.Ctx) error {
	return c.JSON(h.cache.Sweep(requestContext(c)))
}

func (h *cacheHandler) stats(c fiber.Ctx) error {
	stats := h.cache.Stats()
	opts := h.cache.Options()
	return c.JSON(fiber.Map{
		"sweeps":                 stats.Sweeps,
		"last_sweep":             stats.Last,
		"dir":                    h.cache.Dir(),
		"max_bytes":              opts.MaxBytes,
		"max_age_seconds":        int64(opts.MaxAge.Seconds()),
		"prune_interval_seconds": int64(opts.PruneInterval.Seconds()),
	})
}

func (h *cacheHandler) access(c fiber.Ctx, key string, status int) {
	h.logger.WithFields(logging.RequestFields(RequestID(c), c.Method(), key, status)).Debug("cache_request")
}

func (h *cacheHandler) fail(c fiber.Ctx, key string, status int, code string, err error) error {
	entry := h.logger.WithFields(logging.RequestFields(RequestID(c), c.Method(), key, status))
	switch {
	case status >= fiber.StatusInternalServerError:
		entry.WithError(err).Error("cache_request_failed")
	default:
		entry.Debug("cache_request_rejected")
	}
	return c.Status(status).JSON(fiber.Map{"error": code})
}

var errEmptyKey = errors.New("empty key")

// cacheKey 取通配段作为 key 并做 URL 反转义。
func cacheKey(c fiber.Ctx) (string, error) {
	raw := c.Params("*")
	key, err := url.PathUnescape(raw)
	if err != nil {
		key = raw
	}
	if strings.TrimSpace(key) == "" {
		return "", errEmptyKey
	}
	return key, nil
}

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx
}

func statusFor(err error) int {
	if errors.Is(err, diskcache.ErrNotFound) {
		return fiber.StatusNotFound
	}
	return fiber.StatusInternalServerError
}

func codeFor(err error) string {
	if errors.Is(err, diskcache.ErrNotFound) {
		return "not_found"
	}
	return "io_error"
}
