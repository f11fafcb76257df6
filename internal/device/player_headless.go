//go:build headless

package device

import (
	"context"
	"time"
)

// Player drains a Source in real time without a sound card.
type Player struct {
	src        Source
	sampleRate int
	cancel     context.CancelFunc
}

// Open returns a player that discards src's output.
func Open(src Source, sampleRate int, _ time.Duration) (*Player, error) {
	return &Player{src: src, sampleRate: sampleRate}, nil
}

// Start pulls audio at the nominal rate until Close.
func (p *Player) Start() {
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	r := &reader{src: p.src}
	go func() {
		const period = 10 * time.Millisecond
		frames := p.sampleRate * int(period) / int(time.Second)
		buf := make([]byte, frames*8)
		t := time.NewTicker(period)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = r.Read(buf)
			}
		}
	}()
}

// Close stops the drain loop.
func (p *Player) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
