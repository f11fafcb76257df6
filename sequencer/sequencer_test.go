package sequencer

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/algo-sampler/sampler"
	"github.com/cwbudde/algo-sampler/sched"
)

type triggerLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *triggerLog) Trigger(pad int, forced bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf("%d:%v", pad, forced))
	return nil
}

func (l *triggerLog) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.calls
	l.calls = nil
	return out
}

func newTestClock() (*Clock, *Patterns, *triggerLog, *sched.Manual) {
	m := sched.NewManual()
	p := NewPatterns()
	trig := &triggerLog{}
	return NewClock(m, p, trig, nil), p, trig, m
}

func TestStepPeriod(t *testing.T) {
	if got := StepPeriod(120); got != 125*time.Millisecond {
		t.Fatalf("StepPeriod(120) = %v, want 125ms", got)
	}
	if got := StepPeriod(60); got != 250*time.Millisecond {
		t.Fatalf("StepPeriod(60) = %v, want 250ms", got)
	}
}

func TestClockTicksAndWraps(t *testing.T) {
	c, p, trig, m := newTestClock()
	_ = p.Set(1, 0, true)
	_ = p.Set(3, 0, true)
	_ = p.Set(2, 15, true)

	if c.Step() != NotRunning {
		t.Fatalf("initial step = %d", c.Step())
	}
	var steps []int
	c.OnStep(func(s int) { steps = append(steps, s) })

	c.Start()
	m.Advance(125 * time.Millisecond)
	if c.Step() != 0 {
		t.Fatalf("first tick step = %d, want 0", c.Step())
	}
	if got := trig.take(); len(got) != 2 || got[0] != "1:true" || got[1] != "3:true" {
		t.Fatalf("step 0 triggers = %v", got)
	}

	m.Advance(15 * 125 * time.Millisecond)
	if c.Step() != 15 {
		t.Fatalf("step = %d, want 15", c.Step())
	}
	if got := trig.take(); len(got) != 1 || got[0] != "2:true" {
		t.Fatalf("step 15 triggers = %v", got)
	}

	m.Advance(125 * time.Millisecond)
	if c.Step() != 0 {
		t.Fatalf("step after wrap = %d", c.Step())
	}
	if len(steps) != 17 || steps[16] != 0 {
		t.Fatalf("OnStep saw %d steps", len(steps))
	}
}

func TestClockStopResetsToSentinel(t *testing.T) {
	c, p, trig, m := newTestClock()
	_ = p.Set(4, 2, true)
	c.Start()
	m.Advance(3 * 125 * time.Millisecond)
	c.Stop()
	if c.Step() != NotRunning || c.Playing() {
		t.Fatalf("after stop: step=%d playing=%v", c.Step(), c.Playing())
	}
	trig.take()
	m.Advance(time.Second)
	if got := trig.take(); len(got) != 0 {
		t.Fatalf("stopped clock triggered %v", got)
	}
	if m.Pending() != 0 {
		t.Fatalf("scheduler still has %d registrations", m.Pending())
	}

	c.Start()
	m.Advance(125 * time.Millisecond)
	if c.Step() != 0 {
		t.Fatalf("restart step = %d, want 0", c.Step())
	}
}

func TestSetBPMRestartsTimer(t *testing.T) {
	c, _, _, m := newTestClock()
	c.Start()
	m.Advance(250 * time.Millisecond)
	if c.Step() != 1 {
		t.Fatalf("step = %d, want 1", c.Step())
	}

	if err := c.SetBPM(60); err != nil {
		t.Fatalf("SetBPM failed: %v", err)
	}
	if c.Period() != 250*time.Millisecond {
		t.Fatalf("period = %v", c.Period())
	}
	m.Advance(125 * time.Millisecond)
	if c.Step() != 1 {
		t.Fatalf("old period still in effect: step %d", c.Step())
	}
	m.Advance(125 * time.Millisecond)
	if c.Step() != 2 {
		t.Fatalf("step = %d, want 2", c.Step())
	}
	if m.Pending() != 1 {
		t.Fatalf("pending registrations = %d, want 1", m.Pending())
	}

	for _, bad := range []float64{0, -10, MaxBPM + 1} {
		if err := c.SetBPM(bad); err == nil {
			t.Fatalf("SetBPM(%v) accepted", bad)
		}
	}
}

func TestForcedTriggersReachBank(t *testing.T) {
	m := sched.NewManual()
	p := NewPatterns()
	samples := make([]int, 2*44100)
	for i := range samples {
		samples[i] = 1000
	}
	bank, err := newBankWithPads(samples, 1, 2)
	if err != nil {
		t.Fatalf("bank setup failed: %v", err)
	}
	bank.SetLoopMode(true)
	_ = bank.Trigger(2, false)

	c := NewClock(m, p, bank, nil)
	_ = p.Set(1, 0, true)
	c.Start()
	m.Advance(125 * time.Millisecond)

	playing := bank.Playing()
	if len(playing) != 2 {
		t.Fatalf("playing = %v, want both pads", playing)
	}
	// A second forced trigger restarts rather than toggles.
	_ = p.Set(1, 1, true)
	m.Advance(125 * time.Millisecond)
	if s, _ := bank.State(1); s != sampler.PadPlaying {
		t.Fatalf("pad 1 state = %v, want playing", s)
	}
}

func TestPatternsValidation(t *testing.T) {
	p := NewPatterns()
	if _, err := p.Toggle(0, 0); !errors.Is(err, sampler.ErrInvalidPad) {
		t.Fatalf("Toggle pad 0 err = %v", err)
	}
	if _, err := p.Toggle(1, 16); !errors.Is(err, ErrInvalidStep) {
		t.Fatalf("Toggle step 16 err = %v", err)
	}
	on, err := p.Toggle(9, 15)
	if err != nil || !on {
		t.Fatalf("Toggle(9,15) = %v, %v", on, err)
	}
	if !p.Armed(9, 15) || p.Armed(9, 14) || p.Armed(10, 15) {
		t.Fatalf("Armed reports wrong cells")
	}
	on, _ = p.Toggle(9, 15)
	if on {
		t.Fatalf("second toggle should disarm")
	}

	_ = p.Set(2, 3, true)
	_ = p.Set(5, 3, true)
	if got := p.PadsAt(3); len(got) != 2 || got[0] != 2 || got[1] != 5 {
		t.Fatalf("PadsAt(3) = %v", got)
	}
	_ = p.ClearPad(2)
	if pat, _ := p.Pattern(2); pat.Count() != 0 {
		t.Fatalf("ClearPad left %d steps", pat.Count())
	}
	p.Clear()
	if got := p.PadsAt(3); len(got) != 0 {
		t.Fatalf("Clear left %v", got)
	}
}
