package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/any-hub/fs-lru/internal/config"
	"github.com/any-hub/fs-lru/internal/diskcache"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 返回共享 http.Client，用于未命中时回源。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil && cfg.Global.UpstreamTimeout.DurationValue() > 0 {
		timeout = cfg.Global.UpstreamTimeout.DurationValue()
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

// UpstreamLoader 以 GET <base>/<escaped key> 从源站拉取未命中的 key。
type UpstreamLoader struct {
	client *http.Client
	base   string
}

// NewUpstreamLoader 构造回源 Loader；base 末尾的斜杠会被去除。
func NewUpstreamLoader(client *http.Client, base string) *UpstreamLoader {
	if client == nil {
		client = http.DefaultClient
	}
	return &UpstreamLoader{
		client: client,
		base:   strings.TrimRight(base, "/"),
	}
}

// Load 实现 diskcache.Loader：404 映射为 ErrNotFound，其它非 2xx 视为错误。
func (l *UpstreamLoader) Load(ctx context.Context, key string) ([]byte, error) {
	target := l.base + "/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return nil, diskcache.ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("upstream %s returned %d", target, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
