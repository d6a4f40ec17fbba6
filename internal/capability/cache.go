// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package capability caches the set of formats the conversion service
// declares it supports, so a support check does not cost a round trip.
package capability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/docconv/internal/httputil"
	"github.com/pdiddy/docconv/internal/logging"
	"github.com/pdiddy/docconv/pkg/types"
)

// formatsKey names the single cache entry; it also keys request coalescing.
const formatsKey = "formats"

// sharedFetchTimeout bounds a coalesced fetch, which no caller can cancel.
const sharedFetchTimeout = 2 * time.Minute

// Format describes one format the service can convert from or to.
type Format struct {
	Extension string `json:"extension" yaml:"extension"`
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	MimeType  string `json:"mime,omitempty" yaml:"mime,omitempty"`
}

type formatsResponse struct {
	Document []Format `json:"document"`
}

// JSONFetcher is the part of the HTTP transport the cache needs.
type JSONFetcher interface {
	FetchJSON(ctx context.Context, url string, v any) error
}

// Cache memoizes the service's supported formats. The zero TTL keeps a
// populated list until Invalidate. An empty list is never cached, so a
// service that briefly returns nothing is asked again next time.
type Cache struct {
	fetcher JSONFetcher
	baseURL string
	ttl     time.Duration
	now     func() time.Time
	logger  *zap.Logger

	mu        sync.RWMutex
	formats   []Format
	fetchedAt time.Time

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL sets how long a fetched list stays valid.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logging.OrNop(logger).Named("capability") }
}

// New returns a Cache reading {baseURL}/formats through fetcher.
func New(fetcher JSONFetcher, baseURL string, opts ...Option) *Cache {
	c := &Cache{
		fetcher: fetcher,
		baseURL: baseURL,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SupportedFormats returns the cached list when present and unexpired and
// fetches it otherwise. Concurrent callers share a single fetch. The shared
// fetch is detached from any one caller's cancellation; a caller whose ctx
// ends first returns ctx.Err() while the fetch carries on for the others.
func (c *Cache) SupportedFormats(ctx context.Context) ([]Format, error) {
	if formats, ok := c.cached(); ok {
		return formats, nil
	}

	ch := c.group.DoChan(formatsKey, func() (any, error) {
		if formats, ok := c.cached(); ok {
			return formats, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetching supported formats: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared in-flight formats fetch")
		}
		return res.Val.([]Format), nil
	}
}

func (c *Cache) fetch(ctx context.Context) ([]Format, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("fetching supported formats: service URL is not configured")
	}
	url := httputil.JoinURL(c.baseURL, "formats")

	var resp formatsResponse
	if err := c.fetcher.FetchJSON(ctx, url, &resp); err != nil {
		return nil, fmt.Errorf("fetching supported formats: %w", err)
	}

	formats := make([]Format, 0, len(resp.Document))
	for _, f := range resp.Document {
		f.Extension = types.NormalizeExtension(f.Extension)
		if f.Extension == "" {
			continue
		}
		formats = append(formats, f)
	}

	if len(formats) > 0 {
		c.mu.Lock()
		c.formats = formats
		c.fetchedAt = c.now()
		c.mu.Unlock()
	}
	c.logger.Info("fetched supported formats",
		zap.String(logging.FieldURL, url), zap.Int("count", len(formats)))
	return formats, nil
}

func (c *Cache) cached() ([]Format, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.formats) == 0 {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.formats, true
}

// Extensions returns the supported extensions in service order. A failed
// fetch yields an empty list and is logged.
func (c *Cache) Extensions(ctx context.Context) []string {
	formats, err := c.SupportedFormats(ctx)
	if err != nil {
		c.logger.Warn("supported formats unavailable", zap.Error(err))
		return nil
	}
	exts := make([]string, len(formats))
	for i, f := range formats {
		exts[i] = f.Extension
	}
	return exts
}

// IsSupported reports whether ext is in the supported set. When the set
// cannot be fetched nothing is supported.
func (c *Cache) IsSupported(ctx context.Context, ext string) bool {
	ext = types.NormalizeExtension(ext)
	if ext == "" {
		return false
	}
	for _, e := range c.Extensions(ctx) {
		if e == ext {
			return true
		}
	}
	return false
}

// Supports reports whether a conversion from one extension to another is
// possible: both must be supported.
func (c *Cache) Supports(ctx context.Context, from, to string) bool {
	return c.IsSupported(ctx, from) && c.IsSupported(ctx, to)
}

// Invalidate drops the cached list so the next call fetches again.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.formats = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
	c.group.Forget(formatsKey)
}
