package sampler

import "testing"

func TestMeterSilenceIsZero(t *testing.T) {
	m, err := NewMeter()
	if err != nil {
		t.Fatalf("NewMeter failed: %v", err)
	}
	m.Write(make([]float32, 512), make([]float32, 512))
	if lvl := m.Level(); lvl.Value != 0 || lvl.Peak {
		t.Fatalf("silence level = %+v", lvl)
	}
}

func TestMeterLoudNoisePeaks(t *testing.T) {
	m, err := NewMeter()
	if err != nil {
		t.Fatalf("NewMeter failed: %v", err)
	}
	state := uint32(1)
	block := make([]float32, MeterFFTSize)
	var lvl Level
	for n := 0; n < 40; n++ {
		for i := range block {
			state ^= state << 13
			state ^= state >> 17
			state ^= state << 5
			block[i] = float32(state)/float32(1<<31) - 1
		}
		m.Write(block, block)
		lvl = m.Level()
	}
	if lvl.Value < 0.5 {
		t.Fatalf("full-scale noise level = %f, want > 0.5", lvl.Value)
	}

	m.Reset()
	if lvl := m.Level(); lvl.Value != 0 {
		t.Fatalf("level after reset = %f", lvl.Value)
	}
}
