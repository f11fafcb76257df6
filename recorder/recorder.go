// Package recorder logs pad transitions while a performance is being recorded.
package recorder

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwbudde/algo-sampler/sampler"
)

// EventType is the kind of a logged transition.
type EventType string

const (
	Trigger EventType = "trigger"
	Stop    EventType = "stop"
)

// Event is one logged transition. Time is milliseconds on the recorder's
// monotonic clock; within a log it never decreases.
type Event struct {
	Type EventType `json:"type"`
	Pad  int       `json:"pad"`
	Time float64   `json:"time"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s pad=%d t=%.1fms", e.Type, e.Pad, e.Time)
}

// Recorder observes pad events and appends them to a log while armed.
// It never affects playback.
type Recorder struct {
	mu     sync.Mutex
	logger *slog.Logger
	epoch  time.Time
	armed  bool
	last   float64
	events []Event
}

// New returns a disarmed recorder whose clock starts now.
func New(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Recorder{logger: logger, epoch: time.Now()}
}

// Attach subscribes the recorder to bank and returns the unsubscribe func.
func (r *Recorder) Attach(bank *sampler.Bank) func() {
	return bank.Listen(r.Observe)
}

// Arm starts or stops recording. Arming clears the previous log.
func (r *Recorder) Arm(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if on && !r.armed {
		r.events = nil
		r.last = 0
	}
	r.armed = on
	r.logger.Debug("recorder armed", "armed", on, "events", len(r.events))
}

// Toggle flips the armed state and returns the new value.
func (r *Recorder) Toggle() bool {
	r.mu.Lock()
	on := !r.armed
	r.mu.Unlock()
	r.Arm(on)
	return on
}

// Armed reports whether events are being logged.
func (r *Recorder) Armed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.armed
}

// Observe is a sampler.Bank listener.
func (r *Recorder) Observe(ev sampler.PadEvent) {
	typ := Trigger
	if ev.Kind == sampler.PadStopped {
		typ = Stop
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	r.Record(typ, ev.Pad, at)
}

// Record appends one event at wall time at, if armed.
func (r *Recorder) Record(typ EventType, pad int, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.armed {
		return
	}
	ms := float64(at.Sub(r.epoch)) / float64(time.Millisecond)
	if ms < r.last {
		ms = r.last
	}
	r.last = ms
	r.events = append(r.events, Event{Type: typ, Pad: pad, Time: ms})
}

// Events returns a copy of the log.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Len returns the number of logged events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Clear drops the log without changing the armed state.
func (r *Recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
	r.last = 0
}
