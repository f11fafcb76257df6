package sampler

import (
	"math"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/cwbudde/algo-sampler/dsp"
)

const gainSmoothingS = 0.01

// EffectsGraph is the shared chain every pad plays through:
// filter -> delay -> reverb -> master gain. Parameter writes apply live to
// everything currently sounding.
//
// Bypass is a two-phase state. While bypassed the chain runs with an open
// filter and muted wet paths, and parameter writes only update the saved
// settings. Leaving bypass restores the saved settings exactly.
type EffectsGraph struct {
	mu         sync.Mutex
	sampleRate int

	params   EffectParams
	bypassed bool

	filterL *biquad.Section
	filterR *biquad.Section
	delayL  *dsp.FeedbackDelay
	delayR  *dsp.FeedbackDelay
	reverb  *Reverb

	delayMix  *dsp.Smoother
	reverbMix *dsp.Smoother
	master    *dsp.Smoother

	wetL []float32
	wetR []float32
}

// NewEffectsGraph builds the chain with default settings and bypass engaged.
func NewEffectsGraph(sampleRate int) (*EffectsGraph, error) {
	delayL, err := dsp.NewFeedbackDelay(sampleRate, MaxDelayTime)
	if err != nil {
		return nil, err
	}
	delayR, err := dsp.NewFeedbackDelay(sampleRate, MaxDelayTime)
	if err != nil {
		return nil, err
	}
	reverb, err := NewReverb(sampleRate)
	if err != nil {
		return nil, err
	}
	g := &EffectsGraph{
		sampleRate: sampleRate,
		params:     DefaultEffectParams(),
		bypassed:   true,
		filterL:    biquad.NewSection(biquad.Coefficients{B0: 1}),
		filterR:    biquad.NewSection(biquad.Coefficients{B0: 1}),
		delayL:     delayL,
		delayR:     delayR,
		reverb:     reverb,
		delayMix:   dsp.NewSmoother(sampleRate, gainSmoothingS, 0),
		reverbMix:  dsp.NewSmoother(sampleRate, gainSmoothingS, 0),
		master:     dsp.NewSmoother(sampleRate, gainSmoothingS, 0),
	}
	g.applyLocked()
	e := g.effectiveLocked()
	g.delayMix.Snap(float32(e.DelayMix))
	g.reverbMix.Snap(float32(e.ReverbMix))
	g.master.Snap(float32(e.MasterVolume))
	return g, nil
}

// SampleRate is the rate the chain was built for.
func (g *EffectsGraph) SampleRate() int { return g.sampleRate }

// Params returns the user-facing settings, including ones saved during bypass.
func (g *EffectsGraph) Params() EffectParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params
}

// Effective returns the settings the DSP is currently running with.
func (g *EffectsGraph) Effective() EffectParams {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.effectiveLocked()
}

// Bypassed reports whether bypass is engaged.
func (g *EffectsGraph) Bypassed() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.bypassed
}

// SetBypass engages or releases bypass.
func (g *EffectsGraph) SetBypass(on bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.bypassed == on {
		return
	}
	g.bypassed = on
	g.applyLocked()
}

// SetParams replaces every setting at once after validating them all.
func (g *EffectsGraph) SetParams(p EffectParams) error {
	if err := p.Validate(); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { *cur = p })
	return nil
}

// SetFilterType selects the filter response. The filter state is kept.
func (g *EffectsGraph) SetFilterType(t FilterType) error {
	p := g.Params()
	p.FilterType = t
	if err := p.Validate(); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { cur.FilterType = t })
	return nil
}

// SetFilterFrequency sets the cutoff or centre frequency in Hz.
func (g *EffectsGraph) SetFilterFrequency(hz float64) error {
	if err := checkRange("filter frequency", hz, MinFilterFrequency, MaxFilterFrequency); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { cur.FilterFrequency = hz })
	return nil
}

// SetFilterResonance sets the filter Q.
func (g *EffectsGraph) SetFilterResonance(q float64) error {
	if err := checkRange("filter Q", q, MinFilterQ, MaxFilterQ); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { cur.FilterQ = q })
	return nil
}

// SetDelayTime sets the echo spacing in seconds.
func (g *EffectsGraph) SetDelayTime(seconds float64) error {
	if err := checkRange("delay time", seconds, MinDelayTime, MaxDelayTime); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { cur.DelayTime = seconds })
	return nil
}

// SetDelayFeedback sets how much of the echo is fed back into the line.
func (g *EffectsGraph) SetDelayFeedback(fb float64) error {
	if err := checkRange("delay feedback", fb, 0, MaxDelayFeedback); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { cur.DelayFeedback = fb })
	return nil
}

// SetDelayMix sets the wet share of the delay stage.
func (g *EffectsGraph) SetDelayMix(mix float64) error {
	if err := checkRange("delay mix", mix, 0, 1); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { cur.DelayMix = mix })
	return nil
}

// SetReverbMix sets the wet share of the reverb stage.
func (g *EffectsGraph) SetReverbMix(mix float64) error {
	if err := checkRange("reverb mix", mix, 0, 1); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { cur.ReverbMix = mix })
	return nil
}

// SetMasterVolume sets the output gain in [0,1].
func (g *EffectsGraph) SetMasterVolume(v float64) error {
	if err := checkRange("master volume", v, 0, 1); err != nil {
		return err
	}
	g.update(func(cur *EffectParams) { cur.MasterVolume = v })
	return nil
}

// SetReverbIR swaps the reverb impulse response.
func (g *EffectsGraph) SetReverbIR(left, right []float32) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reverb.SetIR(left, right)
}

// SetReverbIRFromWAV loads the reverb impulse response from a file.
func (g *EffectsGraph) SetReverbIRFromWAV(path string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.reverb.SetIRFromWAV(path)
}

func (g *EffectsGraph) update(fn func(*EffectParams)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.params)
	g.applyLocked()
}

func (g *EffectsGraph) effectiveLocked() EffectParams {
	if g.bypassed {
		return g.params.bypassed()
	}
	return g.params
}

// applyLocked pushes the effective settings into the DSP. Filter state is
// kept across coefficient changes.
func (g *EffectsGraph) applyLocked() {
	e := g.effectiveLocked()
	c := g.designFilter(e)
	g.filterL.Coefficients = c
	g.filterR.Coefficients = c
	g.delayL.SetTime(e.DelayTime)
	g.delayR.SetTime(e.DelayTime)
	g.delayL.SetFeedback(e.DelayFeedback)
	g.delayR.SetFeedback(e.DelayFeedback)
	g.delayMix.SetTarget(float32(e.DelayMix))
	g.reverbMix.SetTarget(float32(e.ReverbMix))
	g.master.SetTarget(float32(e.MasterVolume))
}

func (g *EffectsGraph) designFilter(e EffectParams) biquad.Coefficients {
	sr := float64(g.sampleRate)
	freq := math.Min(e.FilterFrequency, 0.49*sr)
	switch e.FilterType {
	case Highpass:
		return design.Highpass(freq, e.FilterQ, sr)
	case Bandpass:
		return design.Bandpass(freq, e.FilterQ, sr)
	case Notch:
		return design.Notch(freq, e.FilterQ, sr)
	default:
		return design.Lowpass(freq, e.FilterQ, sr)
	}
}

// Process runs one block of stereo audio through the chain in place.
func (g *EffectsGraph) Process(left, right []float32) {
	n := min(len(left), len(right))
	if n == 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < n; i++ {
		fl := g.filterL.ProcessSample(float64(left[i]))
		fr := g.filterR.ProcessSample(float64(right[i]))
		dm := float64(g.delayMix.Next())
		wl := g.delayL.Process(fl)
		wr := g.delayR.Process(fr)
		left[i] = float32((1-dm)*fl + dm*wl)
		right[i] = float32((1-dm)*fr + dm*wr)
	}

	if cap(g.wetL) < n {
		g.wetL = make([]float32, n)
		g.wetR = make([]float32, n)
	}
	wetL := g.wetL[:n]
	wetR := g.wetR[:n]
	if err := g.reverb.Process(left[:n], right[:n], wetL, wetR); err != nil {
		clear(wetL)
		clear(wetR)
	}

	for i := 0; i < n; i++ {
		rm := g.reverbMix.Next()
		m := g.master.Next()
		left[i] = ((1-rm)*left[i] + rm*wetL[i]) * m
		right[i] = ((1-rm)*right[i] + rm*wetR[i]) * m
	}
}

// Reset clears filter, delay and reverb history.
func (g *EffectsGraph) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filterL = biquad.NewSection(g.filterL.Coefficients)
	g.filterR = biquad.NewSection(g.filterR.Coefficients)
	g.delayL.Reset()
	g.delayR.Reset()
	g.reverb.Reset()
}
