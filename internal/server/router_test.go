package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/any-hub/fs-lru/internal/diskcache"
	"github.com/any-hub/fs-lru/internal/logging"
)

func TestRouterPutGetDelete(t *testing.T) {
	app := newTestApp(t, nil)

	resp := doRequest(t, app, "PUT", "/cache/some%2Fkey", []byte("payload"))
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if reqID := resp.Header.Get("X-Request-ID"); reqID == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	resp = doRequest(t, app, "GET", "/cache/some%2Fkey", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "payload" {
		t.Fatalf("unexpected body %q", body)
	}

	resp = doRequest(t, app, "DELETE", "/cache/some%2Fkey", nil)
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, "GET", "/cache/some%2Fkey", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
	body, _ = io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte(`"not_found"`)) {
		t.Fatalf("expected not_found error, got %s", body)
	}
}

func TestRouterDeleteMissingReturns404(t *testing.T) {
	app := newTestApp(t, nil)
	resp := doRequest(t, app, "DELETE", "/cache/never", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRouterGetUsesLoaderOnMiss(t *testing.T) {
	loader := diskcache.LoaderFunc(func(ctx context.Context, key string) ([]byte, error) {
		return []byte("from-origin:" + key), nil
	})
	app := newTestApp(t, loader)

	resp := doRequest(t, app, "GET", "/cache/fresh", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "from-origin:fresh" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestRouterResetAndStats(t *testing.T) {
	app := newTestApp(t, nil)
	for _, key := range []string{"a", "b"} {
		if resp := doRequest(t, app, "PUT", "/cache/"+key, []byte(key)); resp.StatusCode != fiber.StatusCreated {
			t.Fatalf("put %s: %d", key, resp.StatusCode)
		}
	}

	resp := doRequest(t, app, "POST", "/-/reset", nil)
	var reset struct {
		Removed int `json:"removed"`
	}
	decodeJSON(t, resp.Body, &reset)
	if reset.Removed != 2 {
		t.Fatalf("expected 2 removed, got %d", reset.Removed)
	}

	resp = doRequest(t, app, "POST", "/-/sweep", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 from sweep, got %d", resp.StatusCode)
	}

	resp = doRequest(t, app, "GET", "/-/stats", nil)
	var stats struct {
		Sweeps   int64 `json:"sweeps"`
		MaxBytes int64 `json:"max_bytes"`
	}
	decodeJSON(t, resp.Body, &stats)
	if stats.Sweeps != 1 || stats.MaxBytes != 1<<20 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRouterRejectsEmptyKey(t *testing.T) {
	app := newTestApp(t, nil)
	resp := doRequest(t, app, "GET", "/cache/", nil)
	if resp.StatusCode != fiber.StatusBadRequest && resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("empty key must be rejected, got %d", resp.StatusCode)
	}
}

func TestNewAppRequiresDependencies(t *testing.T) {
	if _, err := NewApp(AppOptions{Logger: logging.Discard()}); err == nil {
		t.Fatalf("expected error without cache")
	}
	if _, err := NewApp(AppOptions{}); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func newTestApp(t *testing.T, loader diskcache.Loader) *fiber.App {
	t.Helper()

	c, err := diskcache.New(diskcache.Options{
		Dir:      filepath.Join(t.TempDir(), "cache"),
		MaxBytes: 1 << 20,
		Loader:   loader,
	}, logging.Discard())
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("failed to start cache: %v", err)
	}
	t.Cleanup(c.Stop)

	app, err := NewApp(AppOptions{Logger: logging.Discard(), Cache: c})
	if err != nil {
		t.Fatalf("failed to create app: %v", err)
	}
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body []byte) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, "http://cache.local"+target, reader)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func decodeJSON(t *testing.T, body io.Reader, v any) {
	t.Helper()
	raw, _ := io.ReadAll(body)
	if err := json.Unmarshal(raw, v); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
}
