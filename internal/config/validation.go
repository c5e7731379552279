package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/fs-lru/internal/hasher"
)

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("Global.ListenPort", "必须在 1-65535")
	}
	if g.LogLevel != "" {
		if _, err := logrus.ParseLevel(g.LogLevel); err != nil {
			return newFieldError("Global.LogLevel", "无法识别的日志级别")
		}
	}
	if g.CacheDir == "" {
		return newFieldError("Global.CacheDir", "不能为空")
	}
	if g.MaxBytes <= 0 {
		return newFieldError("Global.MaxBytes", "必须大于 0")
	}
	if g.MaxAge.DurationValue() < 0 {
		return newFieldError("Global.MaxAge", "不能为负数")
	}
	if g.PruneInterval.DurationValue() <= 0 {
		return newFieldError("Global.PruneInterval", "必须大于 0")
	}
	if g.DeleteConcurrency < 0 {
		return newFieldError("Global.DeleteConcurrency", "不能为负数")
	}
	if _, err := hasher.New(0, hasher.Algorithm(g.HashAlgorithm)); err != nil {
		return newFieldError("Global.HashAlgorithm", "仅支持 xxhash64/sha256")
	}
	if g.Upstream != "" {
		if err := validateUpstream(g.Upstream); err != nil {
			return fmt.Errorf("Global.Upstream: %w", err)
		}
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("Global.UpstreamTimeout", "必须大于 0")
	}

	return nil
}

func validateUpstream(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("仅支持 http/https，上游: %s", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("上游缺少 Host: %s", raw)
	}
	return nil
}
