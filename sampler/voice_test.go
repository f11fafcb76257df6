package sampler

import (
	"testing"
	"time"
)

func rampBuffer(n int) *Buffer {
	l := make([]float32, n)
	for i := range l {
		l[i] = float32(i)
	}
	return NewBuffer(testRate, l, nil)
}

func TestVoiceOneShotStopsAtEnd(t *testing.T) {
	v := newVoice(rampBuffer(10), false, time.Time{})
	l := make([]float32, 8)
	r := make([]float32, 8)
	if !v.mixInto(l, r, 1) {
		t.Fatalf("voice ended early")
	}
	if l[7] != 7 || r[7] != 7 {
		t.Fatalf("frame 7 = %f/%f, want 7", l[7], r[7])
	}
	clear(l)
	clear(r)
	if v.mixInto(l, r, 1) {
		t.Fatalf("one-shot voice should report end")
	}
	if l[0] != 8 || l[1] != 9 || l[2] != 0 {
		t.Fatalf("tail frames = %v", l[:3])
	}
}

func TestVoiceLoopWraps(t *testing.T) {
	v := newVoice(rampBuffer(4), true, time.Time{})
	l := make([]float32, 10)
	r := make([]float32, 10)
	if !v.mixInto(l, r, 1) {
		t.Fatalf("looping voice reported end")
	}
	want := []float32{0, 1, 2, 3, 0, 1, 2, 3, 0, 1}
	for i := range want {
		if l[i] != want[i] {
			t.Fatalf("frame %d = %f, want %f", i, l[i], want[i])
		}
	}
}

func TestVoiceRateInterpolates(t *testing.T) {
	v := newVoice(rampBuffer(16), false, time.Time{})
	l := make([]float32, 4)
	r := make([]float32, 4)
	v.mixInto(l, r, 0.5)
	want := []float32{0, 0.5, 1, 1.5}
	for i := range want {
		if l[i] != want[i] {
			t.Fatalf("frame %d = %f, want %f", i, l[i], want[i])
		}
	}
}
