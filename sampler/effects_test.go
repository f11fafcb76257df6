package sampler

import (
	"math"
	"testing"
)

func newTestGraph(t *testing.T) *EffectsGraph {
	t.Helper()
	g, err := NewEffectsGraph(testRate)
	if err != nil {
		t.Fatalf("NewEffectsGraph failed: %v", err)
	}
	return g
}

func TestEffectsStartBypassed(t *testing.T) {
	g := newTestGraph(t)
	if !g.Bypassed() {
		t.Fatalf("expected bypass engaged at startup")
	}
	if g.Params() != DefaultEffectParams() {
		t.Fatalf("params = %+v, want defaults", g.Params())
	}
	e := g.Effective()
	if e.DelayMix != 0 || e.ReverbMix != 0 || e.FilterFrequency != openFilterFrequency {
		t.Fatalf("bypassed effective params = %+v", e)
	}
	if e.MasterVolume != 1 {
		t.Fatalf("bypass must keep master volume, got %f", e.MasterVolume)
	}
}

func TestEffectsWritesDuringBypassApplyOnRelease(t *testing.T) {
	g := newTestGraph(t)
	if err := g.SetDelayMix(0.8); err != nil {
		t.Fatalf("SetDelayMix failed: %v", err)
	}
	if err := g.SetFilterType(Highpass); err != nil {
		t.Fatalf("SetFilterType failed: %v", err)
	}
	if got := g.Effective().DelayMix; got != 0 {
		t.Fatalf("delay mix leaked through bypass: %f", got)
	}
	if got := g.Params().DelayMix; got != 0.8 {
		t.Fatalf("saved delay mix = %f, want 0.8", got)
	}

	g.SetBypass(false)
	if g.Effective() != g.Params() {
		t.Fatalf("effective %+v != saved %+v after release", g.Effective(), g.Params())
	}
	if g.Effective().FilterType != Highpass {
		t.Fatalf("filter type not restored")
	}

	g.SetBypass(true)
	if g.Params().DelayMix != 0.8 {
		t.Fatalf("re-engaging bypass lost saved settings")
	}
}

func TestEffectsBypassRoundTripRestoresMix(t *testing.T) {
	g := newTestGraph(t)
	g.SetBypass(false)
	steps := []struct {
		name string
		fn   func() error
	}{
		{"filter frequency", func() error { return g.SetFilterFrequency(1200) }},
		{"filter Q", func() error { return g.SetFilterResonance(4) }},
		{"delay feedback", func() error { return g.SetDelayFeedback(0.6) }},
		{"delay mix", func() error { return g.SetDelayMix(0.4) }},
		{"reverb mix", func() error { return g.SetReverbMix(0.7) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			t.Fatalf("%s: %v", s.name, err)
		}
	}
	before := g.Effective()

	g.SetBypass(true)
	dry := g.Effective()
	if dry.DelayMix != 0 || dry.ReverbMix != 0 || dry.FilterFrequency != openFilterFrequency {
		t.Fatalf("bypass did not force a dry chain: %+v", dry)
	}
	g.SetBypass(false)

	after := g.Effective()
	if after != before {
		t.Fatalf("round trip changed settings: before %+v after %+v", before, after)
	}
	if after.FilterFrequency != 1200 || after.FilterQ != 4 || after.DelayFeedback != 0.6 ||
		after.DelayMix != 0.4 || after.ReverbMix != 0.7 {
		t.Fatalf("restored settings = %+v", after)
	}
}

func TestEffectsRejectOutOfRange(t *testing.T) {
	g := newTestGraph(t)
	cases := []struct {
		name string
		fn   func() error
	}{
		{"freq low", func() error { return g.SetFilterFrequency(10) }},
		{"freq high", func() error { return g.SetFilterFrequency(30000) }},
		{"q", func() error { return g.SetFilterResonance(0) }},
		{"delay time", func() error { return g.SetDelayTime(3) }},
		{"feedback", func() error { return g.SetDelayFeedback(0.95) }},
		{"delay mix", func() error { return g.SetDelayMix(-0.1) }},
		{"reverb mix", func() error { return g.SetReverbMix(1.1) }},
		{"master", func() error { return g.SetMasterVolume(math.NaN()) }},
		{"filter type", func() error { return g.SetFilterType(FilterType(9)) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.fn(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
	if g.Params() != DefaultEffectParams() {
		t.Fatalf("rejected writes changed params: %+v", g.Params())
	}
}

func TestEffectsBypassPassesSignal(t *testing.T) {
	g := newTestGraph(t)
	n := 4096
	l := make([]float32, n)
	r := make([]float32, n)
	for i := range l {
		l[i] = 0.5
		r[i] = 0.5
	}
	g.Process(l, r)
	// Open lowpass passes DC at unity once settled.
	if d := math.Abs(float64(l[n-1]) - 0.5); d > 0.01 {
		t.Fatalf("bypassed DC level = %f, want 0.5", l[n-1])
	}
}

func TestEffectsMasterVolumeMutes(t *testing.T) {
	g := newTestGraph(t)
	if err := g.SetMasterVolume(0); err != nil {
		t.Fatalf("SetMasterVolume failed: %v", err)
	}
	n := testRate / 5
	l := make([]float32, n)
	r := make([]float32, n)
	for i := range l {
		l[i] = 0.5
		r[i] = -0.5
	}
	g.Process(l, r)
	if math.Abs(float64(l[n-1])) > 1e-4 || math.Abs(float64(r[n-1])) > 1e-4 {
		t.Fatalf("output not muted: %f %f", l[n-1], r[n-1])
	}
}

func TestEffectsDelayProducesEcho(t *testing.T) {
	g := newTestGraph(t)
	p := DefaultEffectParams()
	p.DelayTime = 0.1
	p.DelayMix = 1
	p.DelayFeedback = 0
	p.ReverbMix = 0
	if err := g.SetParams(p); err != nil {
		t.Fatalf("SetParams failed: %v", err)
	}
	g.SetBypass(false)
	// Let the mix smoothers settle on silence.
	silence := make([]float32, testRate/10)
	g.Process(silence, make([]float32, len(silence)))

	n := testRate / 5
	l := make([]float32, n)
	r := make([]float32, n)
	l[0] = 1
	r[0] = 1
	g.Process(l, r)

	echo := testRate / 10
	var peak float32
	for i := echo - 8; i < echo+8; i++ {
		if a := float32(math.Abs(float64(l[i]))); a > peak {
			peak = a
		}
	}
	if peak < 0.3 {
		t.Fatalf("no echo near sample %d (peak %f)", echo, peak)
	}
	if math.Abs(float64(l[0])) > 0.01 {
		t.Fatalf("fully wet delay passed dry impulse: %f", l[0])
	}
}

func TestParseFilterType(t *testing.T) {
	for _, ft := range []FilterType{Lowpass, Highpass, Bandpass, Notch} {
		got, err := ParseFilterType(ft.String())
		if err != nil || got != ft {
			t.Fatalf("ParseFilterType(%q) = %v, %v", ft.String(), got, err)
		}
	}
	if _, err := ParseFilterType("comb"); err == nil {
		t.Fatalf("expected error for unknown type")
	}
}
