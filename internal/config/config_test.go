package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	cfgPath := testConfigPath(t, "valid.toml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	if cfg.Global.MaxBytes.Int64() != 256<<20 {
		t.Fatalf("MaxBytes 解析错误: %d", cfg.Global.MaxBytes)
	}
	if cfg.Global.MaxAge.DurationValue() != 24*time.Hour {
		t.Fatalf("MaxAge 解析错误: %v", cfg.Global.MaxAge.DurationValue())
	}
	if cfg.Global.PruneInterval.DurationValue() != 10*time.Minute {
		t.Fatalf("PruneInterval 解析错误: %v", cfg.Global.PruneInterval.DurationValue())
	}
	if !filepath.IsAbs(cfg.Global.CacheDir) {
		t.Fatalf("CacheDir 应转换为绝对路径: %s", cfg.Global.CacheDir)
	}
	if cfg.Global.HashAlgorithm != "xxhash64" {
		t.Fatalf("HashAlgorithm 应默认为 xxhash64，得到 %s", cfg.Global.HashAlgorithm)
	}
	if cfg.Global.UpstreamTimeout.DurationValue() != 30*time.Second {
		t.Fatalf("UpstreamTimeout 应填充默认值")
	}
	if cfg.HasUpstream() {
		t.Fatalf("未配置 Upstream 时不应启用回源")
	}
}

func TestCacheOptionsMapping(t *testing.T) {
	cfg, err := Load(testConfigPath(t, "valid.toml"))
	if err != nil {
		t.Fatalf("Load 返回错误: %v", err)
	}
	opts := cfg.CacheOptions()
	if opts.Dir != cfg.Global.CacheDir || opts.MaxBytes != 256<<20 {
		t.Fatalf("CacheOptions 映射错误: %+v", opts)
	}
	if opts.HashSeed != "0xCAFEBABE" || opts.MaxAge != 24*time.Hour {
		t.Fatalf("CacheOptions 映射错误: %+v", opts)
	}
	if err := opts.Validate(); err != nil {
		t.Fatalf("映射后的 Options 应通过校验: %v", err)
	}
}

func TestValidateRejectsBadCache(t *testing.T) {
	cfgPath := testConfigPath(t, "missing.toml")

	_, err := Load(cfgPath)
	var fieldErr FieldError
	if !errors.As(err, &fieldErr) {
		t.Fatalf("不合法的配置应返回 FieldError，得到 %v", err)
	}
	if fieldErr.Field != "Global.MaxBytes" {
		t.Fatalf("应指出 MaxBytes 字段，得到 %s", fieldErr.Field)
	}
}

func TestValidateEnforcesListenPortRange(t *testing.T) {
	cfg := validConfig()
	cfg.Global.ListenPort = 70000
	if err := cfg.Validate(); err == nil {
		t.Fatalf("ListenPort 超出范围应当报错")
	}
}

func TestValidateFields(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(*Config)
		shouldErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"sha256 ok", func(c *Config) { c.Global.HashAlgorithm = "sha256" }, false},
		{"unknown hash", func(c *Config) { c.Global.HashAlgorithm = "md5" }, true},
		{"empty dir", func(c *Config) { c.Global.CacheDir = "" }, true},
		{"negative age", func(c *Config) { c.Global.MaxAge = Duration(-time.Second) }, true},
		{"zero interval", func(c *Config) { c.Global.PruneInterval = 0 }, true},
		{"bad log level", func(c *Config) { c.Global.LogLevel = "loud" }, true},
		{"upstream ok", func(c *Config) { c.Global.Upstream = "https://origin.example.com" }, false},
		{"upstream bad scheme", func(c *Config) { c.Global.Upstream = "ftp://origin" }, true},
		{"upstream missing host", func(c *Config) { c.Global.Upstream = "http://" }, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.shouldErr && err == nil {
				t.Fatalf("expected error")
			}
			if !tc.shouldErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseByteSize(t *testing.T) {
	testCases := []struct {
		raw  string
		want int64
		ok   bool
	}{
		{"1024", 1024, true},
		{"64k", 64000, true},
		{"64KiB", 64 << 10, true},
		{"512MiB", 512 << 20, true},
		{"1GB", 1000 * 1000 * 1000, true},
		{"1.5 GiB", 3 << 29, true},
		{"", 0, true},
		{"ten", 0, false},
		{"10XB", 0, false},
		{"9EiB", 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := parseByteSize(tc.raw)
			if tc.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.ok {
				if err == nil {
					t.Fatalf("expected error for %q", tc.raw)
				}
				return
			}
			if got.Int64() != tc.want {
				t.Fatalf("parseByteSize(%q) = %d, want %d", tc.raw, got, tc.want)
			}
		})
	}
}

func validConfig() *Config {
	return &Config{
		Global: GlobalConfig{
			ListenPort:      5000,
			LogLevel:        "info",
			CacheDir:        "./data",
			MaxBytes:        ByteSize(1 << 20),
			PruneInterval:   Duration(time.Hour),
			HashAlgorithm:   "xxhash64",
			UpstreamTimeout: Duration(time.Second),
		},
	}
}
