// Package session wires the pad bank, effects chain, sequencer, recorder and
// renderer into one instrument and exposes the operations a front end needs.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/recorder"
	"github.com/cwbudde/algo-sampler/render"
	"github.com/cwbudde/algo-sampler/sampler"
	"github.com/cwbudde/algo-sampler/sched"
	"github.com/cwbudde/algo-sampler/sequencer"
)

// MeterRate is how often StartMetering reports a level.
const MeterRate = 60

// Config configures a Session. Zero fields take defaults.
type Config struct {
	SampleRate int
	BPM        float64
	Fetcher    sampler.Fetcher
	Scheduler  sched.Scheduler
	Effects    *sampler.EffectParams
	Bypass     *bool
	ReverbIR   string
	Logger     *slog.Logger
}

// Session owns every engine component. All methods are safe for concurrent use.
type Session struct {
	logger   *slog.Logger
	sched    sched.Scheduler
	cache    *sampler.BufferCache
	fx       *sampler.EffectsGraph
	bank     *sampler.Bank
	meter    *sampler.Meter
	patterns *sequencer.Patterns
	clock    *sequencer.Clock
	rec      *recorder.Recorder
	renderer *render.Renderer

	mu          sync.Mutex
	meterCancel func()
	detach      func()
	closed      bool
}

// New builds a session. Bypass is engaged unless cfg.Bypass says otherwise.
func New(cfg Config) (*Session, error) {
	if cfg.SampleRate == 0 {
		cfg.SampleRate = render.SampleRate
	}
	if cfg.SampleRate < 8000 {
		return nil, fmt.Errorf("sample rate must be >= 8000, got %d", cfg.SampleRate)
	}
	if cfg.BPM == 0 {
		cfg.BPM = sequencer.DefaultBPM
	}
	if cfg.Fetcher == nil {
		cfg.Fetcher = sampler.FileFetcher{}
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = sched.Ticker{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fx, err := sampler.NewEffectsGraph(cfg.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("effects: %w", err)
	}
	if cfg.Effects != nil {
		if err := fx.SetParams(*cfg.Effects); err != nil {
			return nil, fmt.Errorf("effects: %w", err)
		}
	}
	if cfg.ReverbIR != "" {
		if err := fx.SetReverbIRFromWAV(cfg.ReverbIR); err != nil {
			return nil, fmt.Errorf("reverb IR: %w", err)
		}
	}
	if cfg.Bypass != nil {
		fx.SetBypass(*cfg.Bypass)
	}

	meter, err := sampler.NewMeter()
	if err != nil {
		return nil, fmt.Errorf("meter: %w", err)
	}

	cache := sampler.NewBufferCache(cfg.Fetcher, cfg.SampleRate, logger.With("component", "cache"))
	bank := sampler.NewBank(cache, fx, logger.With("component", "bank"))
	bank.SetMeter(meter)
	patterns := sequencer.NewPatterns()
	clock := sequencer.NewClock(cfg.Scheduler, patterns, bank, logger.With("component", "sequencer"))
	if err := clock.SetBPM(cfg.BPM); err != nil {
		return nil, err
	}
	rec := recorder.New(logger.With("component", "recorder"))

	s := &Session{
		logger:   logger,
		sched:    cfg.Scheduler,
		cache:    cache,
		fx:       fx,
		bank:     bank,
		meter:    meter,
		patterns: patterns,
		clock:    clock,
		rec:      rec,
		renderer: render.New(cache, logger.With("component", "render")),
	}
	s.detach = rec.Attach(bank)
	return s, nil
}

// Bank exposes the pad registry.
func (s *Session) Bank() *sampler.Bank { return s.bank }

// Cache exposes the buffer cache.
func (s *Session) Cache() *sampler.BufferCache { return s.cache }

// Effects exposes the shared effects chain.
func (s *Session) Effects() *sampler.EffectsGraph { return s.fx }

// Patterns exposes the step table.
func (s *Session) Patterns() *sequencer.Patterns { return s.patterns }

// Clock exposes the sequencer clock.
func (s *Session) Clock() *sequencer.Clock { return s.clock }

// Recorder exposes the performance recorder.
func (s *Session) Recorder() *recorder.Recorder { return s.rec }

// Assign binds slice audio at url to pad. Loading continues in the background.
func (s *Session) Assign(ctx context.Context, pad int, slice analysis.Slice, url string) error {
	return s.bank.Assign(ctx, sampler.PadAssignment{Pad: pad, Slice: slice, URL: url})
}

// AssignSlices assigns slices to pads 1..n in order using urlFor to locate each
// slice's audio. Slices beyond the pad count are ignored.
func (s *Session) AssignSlices(ctx context.Context, slices []analysis.Slice, urlFor func(analysis.Slice) string) error {
	for i, sl := range slices {
		if i >= sampler.NumPads {
			break
		}
		if err := s.Assign(ctx, i+1, sl, urlFor(sl)); err != nil {
			return err
		}
	}
	return nil
}

// WaitLoads blocks until pending assignments have loaded or failed.
func (s *Session) WaitLoads() { s.bank.WaitLoads() }

// Trigger is a user press of pad. While recording, an accepted press is also
// written into the step pattern at the clock's current step, starting the
// clock at step 0 if it is stopped. Presses the pad ignores are not captured.
func (s *Session) Trigger(pad int) error {
	accepted, err := s.bank.Press(pad)
	if err != nil {
		return err
	}
	if accepted && s.rec.Armed() {
		s.capture(pad)
	}
	return nil
}

func (s *Session) capture(pad int) {
	step := 0
	if !s.clock.Playing() {
		s.clock.Start()
	} else if cur := s.clock.Step(); cur >= 0 {
		step = cur
	}
	if err := s.patterns.Set(pad, step, true); err != nil {
		s.logger.Warn("live capture failed", "pad", pad, "err", err)
		return
	}
	s.logger.Debug("captured step", "pad", pad, "step", step)
}

// TriggerForced restarts pad without toggle or exclusivity rules.
func (s *Session) TriggerForced(pad int) error { return s.bank.Trigger(pad, true) }

// Stop halts pad.
func (s *Session) Stop(pad int) error { return s.bank.Stop(pad) }

// StopAll halts every pad.
func (s *Session) StopAll() { s.bank.StopAll() }

// ClearPads unassigns every pad and clears the step table.
func (s *Session) ClearPads() {
	s.bank.ClearAll()
	s.patterns.Clear()
}

// SetLoopMode selects looping (toggle, polyphonic) or one-shot (monophonic) user triggers.
func (s *Session) SetLoopMode(on bool) { s.bank.SetLoopMode(on) }

// LoopMode reports the user-trigger semantics.
func (s *Session) LoopMode() bool { return s.bank.LoopMode() }

// SetPlaybackRate sets the global speed and pitch factor.
func (s *Session) SetPlaybackRate(rate float64) error { return s.bank.SetPlaybackRate(rate) }

// SetBypass engages or releases effects bypass.
func (s *Session) SetBypass(on bool) { s.fx.SetBypass(on) }

// ToggleBypass flips effects bypass and returns the new state.
func (s *Session) ToggleBypass() bool {
	on := !s.fx.Bypassed()
	s.fx.SetBypass(on)
	return on
}

// PlaySequencer starts the clock.
func (s *Session) PlaySequencer() { s.clock.Start() }

// StopSequencer stops the clock and resets its step.
func (s *Session) StopSequencer() { s.clock.Stop() }

// ToggleSequencer flips the clock and returns whether it is now playing.
func (s *Session) ToggleSequencer() bool { return s.clock.Toggle() }

// SetBPM changes the tempo used by the clock and by RenderPerformance.
func (s *Session) SetBPM(bpm float64) error { return s.clock.SetBPM(bpm) }

// BPM returns the session tempo.
func (s *Session) BPM() float64 { return s.clock.BPM() }

// ToggleStep flips one pattern cell.
func (s *Session) ToggleStep(pad, step int) (bool, error) { return s.patterns.Toggle(pad, step) }

// ClearPattern disarms every step of every pad.
func (s *Session) ClearPattern() { s.patterns.Clear() }

// ArmRecord starts or stops recording. Arming starts a new log.
func (s *Session) ArmRecord(on bool) { s.rec.Arm(on) }

// ToggleRecord flips recording and returns the new state.
func (s *Session) ToggleRecord() bool { return s.rec.Toggle() }

// Recording reports whether the recorder is armed.
func (s *Session) Recording() bool { return s.rec.Armed() }

// Events returns a copy of the performance log.
func (s *Session) Events() []recorder.Event { return s.rec.Events() }

// RenderPerformance renders the recorded log at the session tempo. It returns
// nil, nil when nothing was triggered.
func (s *Session) RenderPerformance(ctx context.Context) ([]byte, error) {
	return s.renderer.Render(ctx, s.rec.Events(), s.bank.Assignments(), s.clock.BPM())
}

// Process renders numFrames of stereo interleaved live output.
func (s *Session) Process(numFrames int) []float32 { return s.bank.Process(numFrames) }

// SampleRate is the live output rate.
func (s *Session) SampleRate() int { return s.bank.SampleRate() }

// StartMetering reports the output level to fn MeterRate times per second,
// replacing any previous metering callback.
func (s *Session) StartMetering(fn func(sampler.Level)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meterCancel != nil {
		s.meterCancel()
	}
	s.meterCancel = s.sched.Every(time.Second/MeterRate, func() {
		fn(s.meter.Level())
	})
}

// StopMetering cancels the metering callback.
func (s *Session) StopMetering() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meterCancel != nil {
		s.meterCancel()
		s.meterCancel = nil
	}
}

// Close stops the clock, metering and every voice. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.StopMetering()
	s.clock.Stop()
	s.bank.StopAll()
	s.detach()
	return nil
}
