package diskcache

import (
	"fmt"
	"strings"
	"time"

	"github.com/any-hub/fs-lru/internal/eviction"
	"github.com/any-hub/fs-lru/internal/hasher"
)

// DefaultPruneInterval 是两次 sweep 之间的默认间隔。
const DefaultPruneInterval = time.Hour

// Options 描述构建 Cache 所需的全部参数。
type Options struct {
	Dir               string
	MaxBytes          int64
	MaxAge            time.Duration
	HashSeed          string
	HashAlgorithm     hasher.Algorithm
	PruneInterval     time.Duration
	DeleteConcurrency int
	Loader            Loader
}

// ConfigError 表示构造参数非法。
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid cache option %s: %s", e.Field, e.Reason)
}

// Validate 校验必填项与取值范围，返回 *ConfigError。
func (o Options) Validate() error {
	if strings.TrimSpace(o.Dir) == "" {
		return &ConfigError{Field: "Dir", Reason: "must not be empty"}
	}
	if o.MaxBytes <= 0 {
		return &ConfigError{Field: "MaxBytes", Reason: "must be greater than 0"}
	}
	if o.MaxAge < 0 {
		return &ConfigError{Field: "MaxAge", Reason: "must not be negative"}
	}
	if o.PruneInterval < 0 {
		return &ConfigError{Field: "PruneInterval", Reason: "must not be negative"}
	}
	if o.DeleteConcurrency < 0 {
		return &ConfigError{Field: "DeleteConcurrency", Reason: "must not be negative"}
	}
	if _, err := hasher.New(0, o.HashAlgorithm); err != nil {
		return &ConfigError{Field: "HashAlgorithm", Reason: err.Error()}
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.PruneInterval == 0 {
		o.PruneInterval = DefaultPruneInterval
	}
	if o.HashAlgorithm == "" {
		o.HashAlgorithm = hasher.AlgorithmXXHash64
	}
	if o.DeleteConcurrency == 0 {
		o.DeleteConcurrency = eviction.DefaultDeleteConcurrency
	}
	return o
}

func (o Options) policy() eviction.Policy {
	return eviction.Policy{MaxBytes: o.MaxBytes, MaxAge: o.MaxAge}
}
