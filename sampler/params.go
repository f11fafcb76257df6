package sampler

import (
	"fmt"
	"math"
	"strings"
)

// FilterType selects the response of the shared filter stage.
type FilterType int

const (
	Lowpass FilterType = iota
	Highpass
	Bandpass
	Notch
)

var filterTypeNames = [...]string{"lowpass", "highpass", "bandpass", "notch"}

func (f FilterType) String() string {
	if f < 0 || int(f) >= len(filterTypeNames) {
		return fmt.Sprintf("FilterType(%d)", int(f))
	}
	return filterTypeNames[f]
}

// ParseFilterType accepts the lowercase names produced by String.
func ParseFilterType(s string) (FilterType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range filterTypeNames {
		if s == name {
			return FilterType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown filter type %q", s)
}

// Parameter ranges accepted by EffectsGraph setters.
const (
	MinFilterFrequency = 20.0
	MaxFilterFrequency = 20000.0
	MinFilterQ         = 0.1
	MaxFilterQ         = 30.0
	MinDelayTime       = 0.05
	MaxDelayTime       = 2.0
	MaxDelayFeedback   = 0.9

	MinPlaybackRate = 0.5
	MaxPlaybackRate = 1.5
)

// Values applied while bypass is engaged.
const (
	openFilterFrequency = 20000.0
	openFilterQ         = math.Sqrt2 / 2
)

// EffectParams is the user-facing state of the effects chain.
type EffectParams struct {
	FilterType      FilterType
	FilterFrequency float64 // Hz
	FilterQ         float64
	DelayTime       float64 // seconds
	DelayFeedback   float64
	DelayMix        float64
	ReverbMix       float64
	MasterVolume    float64
}

// DefaultEffectParams returns the chain settings at startup.
func DefaultEffectParams() EffectParams {
	return EffectParams{
		FilterType:      Lowpass,
		FilterFrequency: 20000,
		FilterQ:         1,
		DelayTime:       0.25,
		DelayFeedback:   0.4,
		DelayMix:        0.3,
		ReverbMix:       0.3,
		MasterVolume:    1,
	}
}

// Validate checks every field against its accepted range.
func (p EffectParams) Validate() error {
	if p.FilterType < Lowpass || p.FilterType > Notch {
		return fmt.Errorf("invalid filter type %d", int(p.FilterType))
	}
	if err := checkRange("filter frequency", p.FilterFrequency, MinFilterFrequency, MaxFilterFrequency); err != nil {
		return err
	}
	if err := checkRange("filter Q", p.FilterQ, MinFilterQ, MaxFilterQ); err != nil {
		return err
	}
	if err := checkRange("delay time", p.DelayTime, MinDelayTime, MaxDelayTime); err != nil {
		return err
	}
	if err := checkRange("delay feedback", p.DelayFeedback, 0, MaxDelayFeedback); err != nil {
		return err
	}
	if err := checkRange("delay mix", p.DelayMix, 0, 1); err != nil {
		return err
	}
	if err := checkRange("reverb mix", p.ReverbMix, 0, 1); err != nil {
		return err
	}
	return checkRange("master volume", p.MasterVolume, 0, 1)
}

// bypassed returns p with the filter opened and both wet paths muted.
func (p EffectParams) bypassed() EffectParams {
	p.FilterType = Lowpass
	p.FilterFrequency = openFilterFrequency
	p.FilterQ = openFilterQ
	p.DelayMix = 0
	p.ReverbMix = 0
	return p
}

func checkRange(name string, v, lo, hi float64) error {
	if math.IsNaN(v) || v < lo || v > hi {
		return fmt.Errorf("%s must be in [%g,%g], got %g", name, lo, hi, v)
	}
	return nil
}
