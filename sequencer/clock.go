package sequencer

import (
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/cwbudde/algo-sampler/sched"
)

const (
	// NotRunning is the step reported while the clock is stopped.
	NotRunning = -1

	DefaultBPM = 120.0
	MaxBPM     = 999.0
)

// Triggerer receives the clock's forced triggers. *sampler.Bank satisfies it.
type Triggerer interface {
	Trigger(pad int, forced bool) error
}

// StepPeriod is the length of one 16th note at bpm.
func StepPeriod(bpm float64) time.Duration {
	ms := (60 / bpm) * 1000 / 4
	return time.Duration(ms * float64(time.Millisecond))
}

// Clock advances through the pattern table at a fixed tempo and force-triggers
// every pad armed at the new step.
//
// Lock order is clock then bank: triggers are issued with the clock locked.
type Clock struct {
	mu       sync.Mutex
	sched    sched.Scheduler
	patterns *Patterns
	target   Triggerer
	logger   *slog.Logger

	bpm     float64
	step    int
	playing bool
	run     uint64
	cancel  func()

	listeners []func(step int)
}

// NewClock returns a stopped clock at DefaultBPM.
func NewClock(s sched.Scheduler, patterns *Patterns, target Triggerer, logger *slog.Logger) *Clock {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Clock{
		sched:    s,
		patterns: patterns,
		target:   target,
		logger:   logger,
		bpm:      DefaultBPM,
		step:     NotRunning,
	}
}

// OnStep registers fn to run after every tick with the new step.
// Callbacks run without the clock locked.
func (c *Clock) OnStep(fn func(step int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Start begins ticking. The first tick lands on step 0 one period from now.
// Starting a running clock is a no-op.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.playing = true
	c.step = NotRunning
	c.scheduleLocked()
	c.logger.Debug("sequencer started", "bpm", c.bpm)
}

// Stop halts ticking and resets the step to NotRunning.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.playing = false
	c.step = NotRunning
	c.unscheduleLocked()
	c.logger.Debug("sequencer stopped")
}

// Toggle starts a stopped clock or stops a running one and reports the new state.
func (c *Clock) Toggle() bool {
	if c.Playing() {
		c.Stop()
		return false
	}
	c.Start()
	return true
}

// SetBPM changes the tempo. A running clock restarts its timer with the new
// period; the current step is kept.
func (c *Clock) SetBPM(bpm float64) error {
	if math.IsNaN(bpm) || bpm <= 0 || bpm > MaxBPM {
		return fmt.Errorf("bpm must be in (0,%g], got %g", MaxBPM, bpm)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bpm = bpm
	if c.playing {
		c.unscheduleLocked()
		c.scheduleLocked()
	}
	return nil
}

// BPM returns the tempo.
func (c *Clock) BPM() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bpm
}

// Period returns the current tick interval.
func (c *Clock) Period() time.Duration {
	return StepPeriod(c.BPM())
}

// Step returns the last step played, or NotRunning.
func (c *Clock) Step() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// Playing reports whether the clock is running.
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *Clock) scheduleLocked() {
	c.run++
	run := c.run
	c.cancel = c.sched.Every(StepPeriod(c.bpm), func() { c.tick(run) })
}

func (c *Clock) unscheduleLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.run++
}

func (c *Clock) tick(run uint64) {
	c.mu.Lock()
	if run != c.run || !c.playing {
		// Late tick from a cancelled registration.
		c.mu.Unlock()
		return
	}
	c.step = (c.step + 1) % Steps
	step := c.step
	for _, pad := range c.patterns.PadsAt(step) {
		if err := c.target.Trigger(pad, true); err != nil {
			c.logger.Warn("sequencer trigger failed", "pad", pad, "step", step, "err", err)
		}
	}
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(step)
	}
}
