package dsp

import "github.com/cwbudde/algo-approx"

// Smoother is a one-pole glide toward a target value, used for click-free gain changes.
type Smoother struct {
	coef   float32
	value  float32
	target float32
}

// NewSmoother returns a smoother settling with time constant timeS, starting at initial.
func NewSmoother(sampleRate int, timeS float64, initial float32) *Smoother {
	s := &Smoother{value: initial, target: initial, coef: 1}
	if sampleRate > 0 && timeS > 0 {
		s.coef = 1 - approx.FastExp(float32(-1.0/(timeS*float64(sampleRate))))
	}
	return s
}

// SetTarget starts a glide toward v.
func (s *Smoother) SetTarget(v float32) {
	s.target = v
}

// Snap jumps straight to v.
func (s *Smoother) Snap(v float32) {
	s.value = v
	s.target = v
}

// Target returns the value being approached.
func (s *Smoother) Target() float32 { return s.target }

// Next advances one sample and returns the smoothed value.
func (s *Smoother) Next() float32 {
	next := s.value + (s.target-s.value)*s.coef
	// Near the target the step drops below one ulp and the value stalls.
	if next == s.value {
		next = s.target
	} else if d := s.target - next; d > -1e-6 && d < 1e-6 {
		next = s.target
	}
	s.value = next
	return s.value
}
