package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Fetcher returns the raw encoded bytes behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// FileFetcher reads local paths and file:// URLs. Relative paths resolve against Root.
type FileFetcher struct {
	Root string
}

func (f FileFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(url, "file://")
	if f.Root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(f.Root, path)
	}
	return os.ReadFile(path)
}

// RouteFetcher sends http(s) URLs to Remote and everything else to Local.
type RouteFetcher struct {
	Remote Fetcher
	Local  Fetcher
}

func (r RouteFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		if r.Remote == nil {
			return nil, fmt.Errorf("no remote fetcher for %s", url)
		}
		return r.Remote.Fetch(ctx, url)
	}
	local := r.Local
	if local == nil {
		local = FileFetcher{}
	}
	return local.Fetch(ctx, url)
}

// BufferCache maps URLs to decoded buffers. Concurrent loads of the same URL
// share a single fetch and decode. Failures are not cached.
type BufferCache struct {
	fetcher    Fetcher
	sampleRate int
	logger     *slog.Logger

	group   singleflight.Group
	mu      sync.RWMutex
	buffers map[string]*Buffer
}

// NewBufferCache returns a cache that decodes to sampleRate. A nil logger discards.
func NewBufferCache(fetcher Fetcher, sampleRate int, logger *slog.Logger) *BufferCache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BufferCache{
		fetcher:    fetcher,
		sampleRate: sampleRate,
		logger:     logger,
		buffers:    make(map[string]*Buffer),
	}
}

// SampleRate is the rate every cached buffer is stored at.
func (c *BufferCache) SampleRate() int { return c.sampleRate }

// Get returns an already decoded buffer.
func (c *BufferCache) Get(url string) (*Buffer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.buffers[url]
	return b, ok
}

// Load returns the buffer for url, fetching and decoding it on first use.
// A canceled ctx abandons the wait without cancelling the shared load.
// Fetch and decode failures are returned as *DecodeError.
func (c *BufferCache) Load(ctx context.Context, url string) (*Buffer, error) {
	if b, ok := c.Get(url); ok {
		return b, nil
	}
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(url, func() (any, error) {
		if b, ok := c.Get(url); ok {
			return b, nil
		}
		c.logger.Debug("loading buffer", "url", url)
		data, err := c.fetcher.Fetch(loadCtx, url)
		if err != nil {
			return nil, &DecodeError{URL: url, Err: err}
		}
		buf, err := DecodeBuffer(data, c.sampleRate)
		if err != nil {
			return nil, &DecodeError{URL: url, Err: err}
		}
		c.mu.Lock()
		c.buffers[url] = buf
		c.mu.Unlock()
		c.logger.Debug("buffer ready", "url", url, "frames", buf.Frames())
		return buf, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn("buffer load failed", "url", url, "err", res.Err)
			return nil, res.Err
		}
		return res.Val.(*Buffer), nil
	}
}

// Put stores an already decoded buffer under url.
func (c *BufferCache) Put(url string, b *Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers[url] = b
}

// Forget drops url so the next Load fetches again.
func (c *BufferCache) Forget(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.buffers, url)
}

// Len returns the number of cached buffers.
func (c *BufferCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buffers)
}
