package sampler

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestBufferCacheSharesConcurrentLoads(t *testing.T) {
	f := newMemFetcher()
	f.set("mem://a.wav", constantWAV(t, 256, testRate, 1000))
	f.gated["mem://a.wav"] = true
	c := NewBufferCache(f, testRate, nil)

	const n = 8
	results := make([]*Buffer, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			b, err := c.Load(context.Background(), "mem://a.wav")
			if err != nil {
				t.Errorf("Load failed: %v", err)
				return
			}
			results[i] = b
		}(i)
	}
	close(f.release)
	wg.Wait()

	if got := f.count("mem://a.wav"); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Fatalf("load %d returned a different buffer", i)
		}
	}
	if results[0].Frames() != 256 {
		t.Fatalf("frames = %d, want 256", results[0].Frames())
	}
}

func TestBufferCacheDoesNotCacheFailures(t *testing.T) {
	f := newMemFetcher()
	c := NewBufferCache(f, testRate, nil)

	_, err := c.Load(context.Background(), "mem://late.wav")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("failed load was cached")
	}

	f.set("mem://late.wav", constantWAV(t, 64, testRate, 1000))
	if _, err := c.Load(context.Background(), "mem://late.wav"); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if got := f.count("mem://late.wav"); got != 2 {
		t.Fatalf("fetch count = %d, want 2", got)
	}
}

func TestBufferCacheLoadHonoursContext(t *testing.T) {
	f := newMemFetcher()
	f.set("mem://slow.wav", constantWAV(t, 64, testRate, 1000))
	f.gated["mem://slow.wav"] = true
	c := NewBufferCache(f, testRate, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Load(ctx, "mem://slow.wav"); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}

	// The shared load still completes for later callers.
	close(f.release)
	if _, err := c.Load(context.Background(), "mem://slow.wav"); err != nil {
		t.Fatalf("Load after cancel failed: %v", err)
	}
}

func TestRouteFetcher(t *testing.T) {
	var remote string
	r := RouteFetcher{
		Remote: FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
			remote = url
			return []byte("ok"), nil
		}),
		Local: FetcherFunc(func(_ context.Context, url string) ([]byte, error) {
			return nil, errors.New("local")
		}),
	}
	if _, err := r.Fetch(context.Background(), "http://host/x.wav"); err != nil || remote != "http://host/x.wav" {
		t.Fatalf("remote route failed: %v %q", err, remote)
	}
	if _, err := r.Fetch(context.Background(), "slices/x.wav"); err == nil || err.Error() != "local" {
		t.Fatalf("expected local route, got %v", err)
	}
	if _, err := (RouteFetcher{}).Fetch(context.Background(), "https://h/x"); err == nil {
		t.Fatalf("expected error without remote fetcher")
	}
}

func TestDecodeBufferResamples(t *testing.T) {
	b, err := DecodeBuffer(constantWAV(t, 4800, 48000, 1000), testRate)
	if err != nil {
		t.Fatalf("DecodeBuffer failed: %v", err)
	}
	if b.SampleRate != testRate {
		t.Fatalf("sample rate = %d", b.SampleRate)
	}
	if d := b.Duration(); d < 0.09 || d > 0.11 {
		t.Fatalf("duration = %f, want about 0.1", d)
	}
}
