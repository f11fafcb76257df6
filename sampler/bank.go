package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// BlockSize is the render quantum in frames.
const BlockSize = 128

// Bank is the registry of the nine pads. It owns all pad and voice state,
// serialises triggers from the UI, the sequencer and load completions, and
// renders the mix through the shared effects chain.
//
// Listener callbacks run with the bank locked and must not call back into it.
type Bank struct {
	mu         sync.Mutex
	sampleRate int
	cache      *BufferCache
	fx         *EffectsGraph
	meter      *Meter
	logger     *slog.Logger
	now        func() time.Time

	pads     [NumPads]*pad
	loopMode bool
	rate     float64

	listeners  map[int]func(PadEvent)
	listenerID int
	loads      sync.WaitGroup

	blockL  []float32
	blockR  []float32
	pending []float32
}

// NewBank creates an empty bank. fx may be nil for a dry bank.
func NewBank(cache *BufferCache, fx *EffectsGraph, logger *slog.Logger) *Bank {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	b := &Bank{
		sampleRate: cache.SampleRate(),
		cache:      cache,
		fx:         fx,
		logger:     logger,
		now:        time.Now,
		rate:       1,
		listeners:  make(map[int]func(PadEvent)),
		blockL:     make([]float32, BlockSize),
		blockR:     make([]float32, BlockSize),
	}
	for i := range b.pads {
		b.pads[i] = &pad{num: i + 1}
	}
	return b
}

// SampleRate is the output rate of Process.
func (b *Bank) SampleRate() int { return b.sampleRate }

// Effects returns the shared chain, or nil for a dry bank.
func (b *Bank) Effects() *EffectsGraph { return b.fx }

// SetMeter installs a level meter fed with the post-chain signal.
func (b *Bank) SetMeter(m *Meter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.meter = m
}

// Listen registers fn for every pad start and stop. The returned func unregisters it.
func (b *Bank) Listen(fn func(PadEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.listenerID
	b.listenerID++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

// Handle returns the handle for pad n.
func (b *Bank) Handle(n int) (PadHandle, error) {
	if err := CheckPad(n); err != nil {
		return PadHandle{}, err
	}
	return PadHandle{bank: b, num: n}, nil
}

// Assign binds a to its pad and starts loading the buffer in the background.
// A playing voice on the pad is stopped first. The pad ignores triggers until
// the load completes; a failed load leaves it in PadFailed.
func (b *Bank) Assign(ctx context.Context, a PadAssignment) error {
	if err := CheckPad(a.Pad); err != nil {
		return err
	}
	if a.URL == "" {
		return fmt.Errorf("pad %d: empty url", a.Pad)
	}

	b.mu.Lock()
	p := b.pads[a.Pad-1]
	if p.voice != nil {
		b.stopLocked(p, ReasonReassigned)
	}
	p.gen++
	gen := p.gen
	asg := a
	p.assignment = &asg
	p.buffer = nil
	p.err = nil
	if buf, ok := b.cache.Get(a.URL); ok {
		p.buffer = buf
		p.state = PadIdle
		b.mu.Unlock()
		return nil
	}
	p.state = PadLoading
	b.loads.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.loads.Done()
		buf, err := b.cache.Load(ctx, a.URL)

		b.mu.Lock()
		defer b.mu.Unlock()
		if p.gen != gen {
			// Superseded by a newer assignment.
			return
		}
		if err != nil {
			p.state = PadFailed
			p.err = err
			b.logger.Warn("pad load failed", "pad", p.num, "url", a.URL, "err", err)
			return
		}
		p.buffer = buf
		p.state = PadIdle
		b.logger.Info("pad ready", "pad", p.num, "measure", a.Slice.Measure, "seconds", buf.Duration())
	}()
	return nil
}

// WaitLoads blocks until every load started by Assign has completed.
func (b *Bank) WaitLoads() {
	b.loads.Wait()
}

// Clear stops pad n and removes its assignment.
func (b *Bank) Clear(n int) error {
	if err := CheckPad(n); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clearLocked(b.pads[n-1])
	return nil
}

// ClearAll stops and unassigns every pad.
func (b *Bank) ClearAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pads {
		b.clearLocked(p)
	}
}

func (b *Bank) clearLocked(p *pad) {
	if p.voice != nil {
		b.stopLocked(p, ReasonReassigned)
	}
	p.gen++
	p.assignment = nil
	p.buffer = nil
	p.err = nil
	p.state = PadEmpty
}

// SetLoopMode selects the semantics of user triggers.
func (b *Bank) SetLoopMode(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loopMode = on
}

// LoopMode reports the current user-trigger semantics.
func (b *Bank) LoopMode() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loopMode
}

// SetPlaybackRate sets the global speed and pitch factor for all voices.
func (b *Bank) SetPlaybackRate(rate float64) error {
	if err := checkRange("playback rate", rate, MinPlaybackRate, MaxPlaybackRate); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rate = rate
	return nil
}

// PlaybackRate returns the global speed and pitch factor.
func (b *Bank) PlaybackRate() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rate
}

// Trigger fires pad n. User triggers follow the bank's loop mode; forced
// triggers come from the sequencer.
func (b *Bank) Trigger(n int, forced bool) error {
	if err := CheckPad(n); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triggerLocked(b.pads[n-1], TriggerRequest{Loop: b.loopMode && !forced, Forced: forced})
	return nil
}

// Press is a user trigger of pad n. It reports whether the pad accepted it;
// presses on empty, loading or failed pads are ignored.
func (b *Bank) Press(n int) (bool, error) {
	if err := CheckPad(n); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.triggerLocked(b.pads[n-1], TriggerRequest{Loop: b.loopMode}), nil
}

// TriggerWith fires pad n with explicit semantics.
func (b *Bank) TriggerWith(n int, req TriggerRequest) error {
	if err := CheckPad(n); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.triggerLocked(b.pads[n-1], req)
	return nil
}

func (b *Bank) triggerLocked(p *pad, req TriggerRequest) bool {
	switch p.state {
	case PadEmpty, PadLoading, PadFailed:
		b.logger.Debug("trigger ignored", "pad", p.num, "state", p.state)
		return false
	}

	switch {
	case req.Forced:
		if p.voice != nil {
			b.stopLocked(p, ReasonRestart)
		}
		b.startLocked(p, false, true)
	case req.Loop:
		if p.state == PadPlaying {
			b.stopLocked(p, ReasonToggle)
			return true
		}
		b.startLocked(p, true, false)
	default:
		for _, other := range b.pads {
			if other != p && other.voice != nil {
				b.stopLocked(other, ReasonExclusive)
			}
		}
		if p.voice != nil {
			b.stopLocked(p, ReasonRestart)
		}
		b.startLocked(p, false, false)
	}
	return true
}

// Stop halts pad n. Stopping an idle pad is a no-op.
func (b *Bank) Stop(n int) error {
	if err := CheckPad(n); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pads[n-1]
	if p.voice != nil {
		b.stopLocked(p, ReasonUser)
	}
	return nil
}

// StopAll halts every sounding pad.
func (b *Bank) StopAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.pads {
		if p.voice != nil {
			b.stopLocked(p, ReasonStopAll)
		}
	}
}

func (b *Bank) startLocked(p *pad, loop, forced bool) {
	now := b.now()
	p.voice = newVoice(p.buffer, loop, now)
	p.state = PadPlaying
	b.emitLocked(PadEvent{Kind: PadStarted, Pad: p.num, Forced: forced, Loop: loop, At: now})
}

func (b *Bank) stopLocked(p *pad, reason StopReason) {
	loop := p.voice.loop
	at := b.now()
	if reason == ReasonEnded {
		// Blocks are rendered ahead of the device; stamp the audible end instead.
		at = p.voice.endedAt(b.sampleRate)
	}
	p.voice = nil
	if p.buffer != nil {
		p.state = PadIdle
	}
	b.emitLocked(PadEvent{Kind: PadStopped, Pad: p.num, Loop: loop, Reason: reason, At: at})
}

func (b *Bank) emitLocked(ev PadEvent) {
	for _, fn := range b.listeners {
		fn(ev)
	}
}

// State returns the state of pad n.
func (b *Bank) State(n int) (PadState, error) {
	if err := CheckPad(n); err != nil {
		return PadEmpty, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pads[n-1].state, nil
}

// Err returns the load error of a failed pad.
func (b *Bank) Err(n int) error {
	if err := CheckPad(n); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pads[n-1].err
}

// Assignment returns the current assignment of pad n.
func (b *Bank) Assignment(n int) (PadAssignment, bool) {
	if CheckPad(n) != nil {
		return PadAssignment{}, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := b.pads[n-1].assignment
	if a == nil {
		return PadAssignment{}, false
	}
	return *a, true
}

// Assignments returns every current assignment keyed by pad number.
func (b *Bank) Assignments() map[int]PadAssignment {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[int]PadAssignment, NumPads)
	for _, p := range b.pads {
		if p.assignment != nil {
			out[p.num] = *p.assignment
		}
	}
	return out
}

// Playing returns the numbers of all sounding pads in ascending order.
func (b *Bank) Playing() []int {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []int
	for _, p := range b.pads {
		if p.voice != nil {
			out = append(out, p.num)
		}
	}
	return out
}

// Process renders numFrames of stereo interleaved audio.
// Internally the bank always advances in BlockSize quanta.
func (b *Bank) Process(numFrames int) []float32 {
	out := make([]float32, numFrames*2)
	if numFrames <= 0 {
		return out
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.pending) < len(out) {
		b.renderBlockLocked()
	}
	copy(out, b.pending)
	rest := copy(b.pending, b.pending[len(out):])
	b.pending = b.pending[:rest]
	return out
}

func (b *Bank) renderBlockLocked() {
	l, r := b.blockL, b.blockR
	clear(l)
	clear(r)
	for _, p := range b.pads {
		if p.voice == nil {
			continue
		}
		if !p.voice.mixInto(l, r, b.rate) {
			b.stopLocked(p, ReasonEnded)
		}
	}
	if b.fx != nil {
		b.fx.Process(l, r)
	}
	if b.meter != nil {
		b.meter.Write(l, r)
	}
	for i := range l {
		b.pending = append(b.pending, l[i], r[i])
	}
}
