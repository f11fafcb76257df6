package sampler

import (
	"fmt"
	"time"

	"github.com/cwbudde/algo-sampler/analysis"
)

// PadState is the lifecycle state of one pad.
type PadState int

const (
	PadEmpty   PadState = iota // no assignment
	PadLoading                 // assignment made, buffer not decoded yet
	PadIdle                    // buffer ready, nothing sounding
	PadPlaying                 // a voice is sounding
	PadFailed                  // decode failed; the pad stays silent until reassigned
)

func (s PadState) String() string {
	switch s {
	case PadEmpty:
		return "empty"
	case PadLoading:
		return "loading"
	case PadIdle:
		return "idle"
	case PadPlaying:
		return "playing"
	case PadFailed:
		return "failed"
	default:
		return fmt.Sprintf("PadState(%d)", int(s))
	}
}

// PadAssignment binds a slice's audio to a pad. It is replaced wholesale on reassign.
type PadAssignment struct {
	Pad   int
	Slice analysis.Slice
	URL   string
}

// TriggerRequest selects trigger semantics.
//
// A user trigger with Loop toggles a looping voice on and off. A user trigger
// without Loop is monophonic across the bank: it cuts every other pad and
// restarts this one. A Forced trigger restarts only this pad, never loops and
// never cuts other pads.
type TriggerRequest struct {
	Loop   bool
	Forced bool
}

// EventKind distinguishes pad transitions.
type EventKind int

const (
	PadStarted EventKind = iota
	PadStopped
)

func (k EventKind) String() string {
	if k == PadStarted {
		return "started"
	}
	return "stopped"
}

// StopReason explains why a voice was halted.
type StopReason int

const (
	ReasonNone       StopReason = iota
	ReasonUser                  // explicit Stop
	ReasonToggle                // loop-mode trigger on a playing pad
	ReasonExclusive             // cut by a one-shot trigger on another pad
	ReasonRestart               // replaced by a fresh voice on the same pad
	ReasonEnded                 // non-looping buffer ran out
	ReasonStopAll               // StopAll
	ReasonReassigned            // pad reassigned or cleared
)

func (r StopReason) String() string {
	switch r {
	case ReasonUser:
		return "user"
	case ReasonToggle:
		return "toggle"
	case ReasonExclusive:
		return "exclusive"
	case ReasonRestart:
		return "restart"
	case ReasonEnded:
		return "ended"
	case ReasonStopAll:
		return "stop-all"
	case ReasonReassigned:
		return "reassigned"
	default:
		return "none"
	}
}

// PadEvent is delivered to bank listeners on every start and stop.
type PadEvent struct {
	Kind   EventKind
	Pad    int
	Forced bool
	Loop   bool
	Reason StopReason
	At     time.Time
}

type pad struct {
	num        int
	state      PadState
	assignment *PadAssignment
	buffer     *Buffer
	voice      *Voice
	err        error
	gen        uint64
}

// PadHandle addresses one pad of a bank.
type PadHandle struct {
	bank *Bank
	num  int
}

// Number returns the 1-based pad number.
func (h PadHandle) Number() int { return h.num }

// Trigger applies req to this pad.
func (h PadHandle) Trigger(req TriggerRequest) error { return h.bank.TriggerWith(h.num, req) }

// Stop halts this pad's voice, if any.
func (h PadHandle) Stop() error { return h.bank.Stop(h.num) }

// State returns the pad's current state.
func (h PadHandle) State() PadState {
	s, _ := h.bank.State(h.num)
	return s
}
