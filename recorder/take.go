package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cwbudde/algo-sampler/sampler"
)

// Take is a saved performance: the log plus what it needs to be rendered later.
type Take struct {
	BPM    float64        `json:"bpm"`
	Pads   map[int]string `json:"pads"`
	Events []Event        `json:"events"`
}

// Validate checks event types, pad numbers and time order.
func (t *Take) Validate() error {
	if t.BPM <= 0 {
		return fmt.Errorf("bpm must be > 0")
	}
	last := 0.0
	for i, e := range t.Events {
		if e.Type != Trigger && e.Type != Stop {
			return fmt.Errorf("events[%d]: unknown type %q", i, e.Type)
		}
		if err := sampler.CheckPad(e.Pad); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
		if i > 0 && e.Time < last {
			return fmt.Errorf("events[%d]: time %.3f before previous %.3f", i, e.Time, last)
		}
		last = e.Time
	}
	return nil
}

// UsedPads returns the pads that appear in the log, ascending.
func (t *Take) UsedPads() []int {
	seen := make(map[int]bool)
	var pads []int
	for _, e := range t.Events {
		if !seen[e.Pad] {
			seen[e.Pad] = true
			pads = append(pads, e.Pad)
		}
	}
	sort.Ints(pads)
	return pads
}

// WriteTake saves t as indented JSON.
func WriteTake(path string, t *Take) error {
	b, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// ReadTake loads and validates a take file.
func ReadTake(path string) (*Take, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var t Take
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &t, nil
}
