package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/any-hub/fs-lru/internal/diskcache"
	"github.com/any-hub/fs-lru/internal/hasher"
)

// Duration 提供更灵活的反序列化能力，同时兼容纯秒整数与 Go Duration 字符串。
type Duration time.Duration

// UnmarshalText 使 Viper 可以识别诸如 "30s"、"5m" 或纯数字秒值等配置写法。
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}

	if seconds, err := time.ParseDuration(raw); err == nil {
		*d = Duration(seconds)
		return nil
	}

	if intVal, err := parseInt(raw); err == nil {
		*d = Duration(time.Duration(intVal) * time.Second)
		return nil
	}

	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue 返回真实的 time.Duration，便于调用方计算。
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// ByteSize 表示字节数，支持纯整数或 "512MiB"、"1GB"、"64KiB" 等带单位写法。
// 单位遵循 go-humanize：k/kb 为 1000，ki/kib 为 1024。
type ByteSize int64

// UnmarshalText 解析带单位的字节数。
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := parseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Int64 返回原始字节数。
func (b ByteSize) Int64() int64 {
	return int64(b)
}

func parseByteSize(raw string) (ByteSize, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}

	value, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", raw, err)
	}
	if value > math.MaxInt64 {
		return 0, fmt.Errorf("byte size %q overflows int64", raw)
	}
	return ByteSize(value), nil
}

// parseInt 支持十进制或 0x 前缀的十六进制字符串解析。
func parseInt(value string) (int64, error) {
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		return strconv.ParseInt(value, 0, 64)
	}
	return strconv.ParseInt(value, 10, 64)
}

// GlobalConfig 描述进程级运行参数与缓存参数。
type GlobalConfig struct {
	ListenPort        int      `mapstructure:"ListenPort"`
	LogLevel          string   `mapstructure:"LogLevel"`
	LogFilePath       string   `mapstructure:"LogFilePath"`
	LogMaxSize        int      `mapstructure:"LogMaxSize"`
	LogMaxBackups     int      `mapstructure:"LogMaxBackups"`
	LogCompress       bool     `mapstructure:"LogCompress"`
	CacheDir          string   `mapstructure:"CacheDir"`
	MaxBytes          ByteSize `mapstructure:"MaxBytes"`
	MaxAge            Duration `mapstructure:"MaxAge"`
	PruneInterval     Duration `mapstructure:"PruneInterval"`
	HashSeed          string   `mapstructure:"HashSeed"`
	HashAlgorithm     string   `mapstructure:"HashAlgorithm"`
	DeleteConcurrency int      `mapstructure:"DeleteConcurrency"`
	Upstream          string   `mapstructure:"Upstream"`
	UpstreamTimeout   Duration `mapstructure:"UpstreamTimeout"`
}

// Config 是 TOML 文件映射的整体结构。
type Config struct {
	Global GlobalConfig `mapstructure:",squash"`
}

// HasUpstream 表示是否配置了未命中回源地址。
func (c *Config) HasUpstream() bool {
	return strings.TrimSpace(c.Global.Upstream) != ""
}

// CacheOptions 将配置映射为 diskcache.Options，Loader 由调用方另行注入。
func (c *Config) CacheOptions() diskcache.Options {
	g := c.Global
	return diskcache.Options{
		Dir:               g.CacheDir,
		MaxBytes:          g.MaxBytes.Int64(),
		MaxAge:            g.MaxAge.DurationValue(),
		HashSeed:          g.HashSeed,
		HashAlgorithm:     hasher.Algorithm(g.HashAlgorithm),
		PruneInterval:     g.PruneInterval.DurationValue(),
		DeleteConcurrency: g.DeleteConcurrency,
	}
}
