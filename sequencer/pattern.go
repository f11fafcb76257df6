// Package sequencer holds the 16-step pattern table and the clock that plays it.
package sequencer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cwbudde/algo-sampler/sampler"
)

// Steps is the pattern length: one bar of 16th notes.
const Steps = 16

// ErrInvalidStep is returned for step indexes outside 0..Steps-1.
var ErrInvalidStep = errors.New("step index out of range")

// Pattern arms a pad on individual steps.
type Pattern [Steps]bool

// Count returns the number of armed steps.
func (p Pattern) Count() int {
	n := 0
	for _, on := range p {
		if on {
			n++
		}
	}
	return n
}

// Patterns is the table of one pattern per pad. It is safe for concurrent use.
type Patterns struct {
	mu   sync.RWMutex
	pads [sampler.NumPads]Pattern
}

// NewPatterns returns an all-off table.
func NewPatterns() *Patterns {
	return &Patterns{}
}

func checkStep(step int) error {
	if step < 0 || step >= Steps {
		return fmt.Errorf("%w: %d", ErrInvalidStep, step)
	}
	return nil
}

func check(pad, step int) error {
	if err := sampler.CheckPad(pad); err != nil {
		return err
	}
	return checkStep(step)
}

// Toggle flips one cell and returns its new value.
func (p *Patterns) Toggle(pad, step int) (bool, error) {
	if err := check(pad, step); err != nil {
		return false, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cell := &p.pads[pad-1][step]
	*cell = !*cell
	return *cell, nil
}

// Set writes one cell.
func (p *Patterns) Set(pad, step int, on bool) error {
	if err := check(pad, step); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pads[pad-1][step] = on
	return nil
}

// Armed reports one cell. Out-of-range coordinates are never armed.
func (p *Patterns) Armed(pad, step int) bool {
	if check(pad, step) != nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pads[pad-1][step]
}

// Pattern returns a copy of one pad's pattern.
func (p *Patterns) Pattern(pad int) (Pattern, error) {
	if err := sampler.CheckPad(pad); err != nil {
		return Pattern{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.pads[pad-1], nil
}

// SetPattern replaces one pad's pattern.
func (p *Patterns) SetPattern(pad int, pat Pattern) error {
	if err := sampler.CheckPad(pad); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pads[pad-1] = pat
	return nil
}

// PadsAt returns the pads armed at step in ascending order.
func (p *Patterns) PadsAt(step int) []int {
	if checkStep(step) != nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	var pads []int
	for i := range p.pads {
		if p.pads[i][step] {
			pads = append(pads, i+1)
		}
	}
	return pads
}

// ClearPad disarms every step of one pad.
func (p *Patterns) ClearPad(pad int) error {
	if err := sampler.CheckPad(pad); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pads[pad-1] = Pattern{}
	return nil
}

// Clear disarms everything.
func (p *Patterns) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pads = [sampler.NumPads]Pattern{}
}
