// Package diskcache 组合 EntryStore 与 EvictionSweeper，对外提供
// Start/Stop/Get/Set/Del/Reset 接口，并在未命中时调用可选的 Loader。
package diskcache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/fs-lru/internal/cache"
	"github.com/any-hub/fs-lru/internal/eviction"
	"github.com/any-hub/fs-lru/internal/hasher"
)

// ErrNotFound 与 cache.ErrNotFound 相同，便于调用方只依赖本包。
var ErrNotFound = cache.ErrNotFound

// Loader 在缓存未命中时提供数据。返回 ErrNotFound 表示源端同样不存在。
type Loader interface {
	Load(ctx context.Context, key string) ([]byte, error)
}

// LoaderFunc 将普通函数适配为 Loader。
type LoaderFunc func(ctx context.Context, key string) ([]byte, error)

// Load makes LoaderFunc satisfy Loader.
func (f LoaderFunc) Load(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

// Cache 是磁盘 LRU 缓存的门面。
type Cache struct {
	opts    Options
	store   *cache.Store
	sweeper *eviction.Sweeper
	loader  Loader
	logger  *logrus.Logger
}

// New 校验参数并组装 Store 与 Sweeper；不会触碰磁盘，目录在 Start 时创建。
func New(opts Options, logger *logrus.Logger, storeOpts ...cache.StoreOption) (*Cache, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	h, err := hasher.New(hasher.ParseSeed(opts.HashSeed), opts.HashAlgorithm)
	if err != nil {
		return nil, &ConfigError{Field: "HashAlgorithm", Reason: err.Error()}
	}

	store, err := cache.NewStore(opts.Dir, h, storeOpts...)
	if err != nil {
		return nil, &ConfigError{Field: "Dir", Reason: err.Error()}
	}

	sweeper := eviction.New(store, opts.policy(), opts.PruneInterval, logger,
		eviction.WithDeleteConcurrency(opts.DeleteConcurrency))

	return &Cache{
		opts:    opts,
		store:   store,
		sweeper: sweeper,
		loader:  opts.Loader,
		logger:  logger,
	}, nil
}

// Start 确保缓存目录存在并启动 sweep 定时器。
func (c *Cache) Start(ctx context.Context) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := c.store.EnsureDir(); err != nil {
		return err
	}
	c.sweeper.Start()
	c.logger.WithFields(logrus.Fields{
		"action":         "cache_start",
		"dir":            c.store.Dir(),
		"max_bytes":      c.opts.MaxBytes,
		"max_age":        c.opts.MaxAge.String(),
		"prune_interval": c.opts.PruneInterval.String(),
	}).Info("cache_started")
	return nil
}

// Stop 取消下一次 sweep，可重复调用。
func (c *Cache) Stop() {
	c.sweeper.Stop()
}

// Get 读取缓存并刷新其访问时间；未命中时交给 Loader，并把结果写回缓存。
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.store.Read(ctx, key)
	if err == nil {
		c.Touch(ctx, key)
		return data, nil
	}
	if !errors.Is(err, cache.ErrNotFound) || c.loader == nil {
		return nil, err
	}

	loaded, err := c.loader.Load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load %q: %w", key, err)
	}
	if _, err := c.store.Write(ctx, key, loaded); err != nil {
		c.logger.WithError(err).WithField("action", "cache_load").Warn("cache_loader_store_failed")
	}
	return loaded, nil
}

// Set 整体写入条目并返回写入的内容。
func (c *Cache) Set(ctx context.Context, key string, data []byte) ([]byte, error) {
	return c.store.Write(ctx, key, data)
}

// Del 删除条目，不存在时返回 ErrNotFound。
func (c *Cache) Del(ctx context.Context, key string) error {
	return c.store.Delete(ctx, key)
}

// Touch 刷新条目的访问/修改时间；失败只记录日志。
func (c *Cache) Touch(ctx context.Context, key string) {
	if err := c.store.Touch(ctx, key); err != nil {
		c.logger.WithError(err).WithField("action", "cache_touch").Warn("cache_touch_failed")
	}
}

// Reset 删除全部条目，返回尝试删除的文件数；任何失败都只记录日志。
func (c *Cache) Reset(ctx context.Context) int {
	count, err := c.store.ResetAll(ctx)
	if err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"action":    "cache_reset",
			"attempted": count,
		}).Warn("cache_reset_partial")
	}
	return count
}

// Sweep 立即执行一次淘汰，与定时 sweep 互斥。
func (c *Cache) Sweep(ctx context.Context) eviction.Report {
	return c.sweeper.Sweep(ctx)
}

// Stats 返回 sweep 统计。
func (c *Cache) Stats() eviction.Stats {
	return c.sweeper.Stats()
}

// Dir 返回缓存目录的绝对路径。
func (c *Cache) Dir() string {
	return c.store.Dir()
}

// Options 返回补齐默认值后的配置。
func (c *Cache) Options() Options {
	return c.opts
}

// Path 返回 key 对应的文件路径，供诊断与测试使用。
func (c *Cache) Path(key string) string {
	return c.store.Path(key)
}
