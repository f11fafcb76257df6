package sampler

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/cwbudde/algo-sampler/internal/audiofile"
)

func constantWAV(t *testing.T, frames int, sampleRate int, value int) []byte {
	t.Helper()
	samples := make([]int, frames*2)
	for i := range samples {
		samples[i] = value
	}
	b, err := audiofile.EncodePCM16(samples, 2, sampleRate)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}
	return b
}

// memFetcher serves fixed byte slices and counts fetches per URL.
// URLs listed in gated block until release is closed.
type memFetcher struct {
	mu      sync.Mutex
	data    map[string][]byte
	calls   map[string]int
	gated   map[string]bool
	release chan struct{}
}

func newMemFetcher() *memFetcher {
	return &memFetcher{
		data:    make(map[string][]byte),
		calls:   make(map[string]int),
		gated:   make(map[string]bool),
		release: make(chan struct{}),
	}
}

func (f *memFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls[url]++
	gated := f.gated[url]
	b, ok := f.data[url]
	f.mu.Unlock()
	if gated {
		<-f.release
	}
	if !ok {
		return nil, fmt.Errorf("not found: %s", url)
	}
	return b, nil
}

func (f *memFetcher) set(url string, b []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[url] = b
}

func (f *memFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

type eventLog struct {
	mu     sync.Mutex
	events []PadEvent
}

func (l *eventLog) record(ev PadEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) snapshot() []PadEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]PadEvent(nil), l.events...)
}

func (l *eventLog) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

const testRate = 44100

// newLoadedBank returns a dry bank with pads 1..n assigned to constant buffers
// of the given length and fully loaded.
func newLoadedBank(t *testing.T, n int, frames int) (*Bank, *eventLog) {
	t.Helper()
	f := newMemFetcher()
	cache := NewBufferCache(f, testRate, nil)
	bank := NewBank(cache, nil, nil)
	for pad := 1; pad <= n; pad++ {
		url := fmt.Sprintf("mem://slice_%d.wav", pad)
		f.set(url, constantWAV(t, frames, testRate, 1000*pad))
		if err := bank.Assign(context.Background(), PadAssignment{Pad: pad, URL: url}); err != nil {
			t.Fatalf("Assign(%d) failed: %v", pad, err)
		}
	}
	bank.WaitLoads()
	log := &eventLog{}
	bank.Listen(log.record)
	return bank, log
}

func samePads(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
