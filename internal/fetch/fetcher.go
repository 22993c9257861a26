// Package fetch downloads upstream knowledge base content: rate limited
// per domain, robots.txt aware, and cached between runs so unchanged
// archives are not pulled twice.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bioindex/kbsync/internal/cache"
	"github.com/bioindex/kbsync/internal/model"
)

// Fetcher downloads content over HTTP
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *Limiter
	robots    *RobotsChecker // nil when robots checking is disabled
	store     cache.Cache    // nil when caching is disabled
}

// New builds a Fetcher from the HTTP and cache configuration
func New(httpCfg model.HTTPConfig, cacheCfg model.CacheConfig) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: httpCfg.Timeout,
			Transport: &http.Transport{
				Proxy: NewProxyFunc(httpCfg.HTTPProxy, httpCfg.HTTPSProxy, httpCfg.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent: httpCfg.UserAgent,
		maxBytes:  httpCfg.MaxBodyBytes,
		limiter:   NewLimiter(httpCfg.RatePerSecond, httpCfg.RateBurst),
	}
	if httpCfg.RespectRobots {
		f.robots = NewRobotsChecker(httpCfg.UserAgent, 10*time.Second)
	}
	if cacheCfg.Enabled {
		f.store = cache.NewLayeredCache(cacheCfg.MemoryTTL, cacheCfg.Dir, cacheCfg.DiskTTL)
	}
	return f
}

// Get downloads the body at rawURL, honoring cache, robots and rate limits
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if f.store != nil {
		if body, ok := f.store.Get(cache.Key(rawURL)); ok {
			return body, nil
		}
	}

	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots check: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("robots.txt forbids fetching %s", rawURL)
		}
		if err := f.limiter.WaitWithDelay(ctx, rawURL, delay); err != nil {
			return nil, err
		}
	} else if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}

	body, err := f.do(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if f.store != nil {
		_ = f.store.Set(cache.Key(rawURL), body, 0)
	}
	return body, nil
}

// GetToFile downloads the body at rawURL into dir and returns the file
// path. Meant for archives too large to keep in memory alongside their
// extracted contents.
func (f *Fetcher) GetToFile(ctx context.Context, rawURL, dir, name string) (string, error) {
	body, err := f.Get(ctx, rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d %s", rawURL, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
