package sampler

import (
	"math"
	"math/cmplx"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

// Analyser constants for the level meter.
const (
	MeterFFTSize   = 256
	meterSmoothing = 0.8
	meterMinDB     = -100.0
	meterMaxDB     = -30.0

	// PeakThreshold is the level above which Level.Peak is set.
	PeakThreshold = 0.9
)

// Level is one meter reading in [0,1].
type Level struct {
	Value float64
	Peak  bool
}

// Meter estimates loudness from the average of a smoothed byte-scaled
// magnitude spectrum over the most recent MeterFFTSize samples.
type Meter struct {
	mu       sync.Mutex
	ring     []float64
	pos      int
	window   []float64
	buf      []float64
	spectrum []complex128
	smooth   []float64
	forward  func(dst []complex128, src []float64)
}

// NewMeter allocates the analyser.
func NewMeter() (*Meter, error) {
	plan, err := algofft.NewPlanReal64(MeterFFTSize)
	if err != nil {
		return nil, err
	}
	m := &Meter{
		ring:     make([]float64, MeterFFTSize),
		window:   make([]float64, MeterFFTSize),
		buf:      make([]float64, MeterFFTSize),
		spectrum: make([]complex128, MeterFFTSize/2+1),
		smooth:   make([]float64, MeterFFTSize/2),
		forward: func(dst []complex128, src []float64) {
			plan.Forward(dst, src)
		},
	}
	// Blackman window.
	for i := range m.window {
		x := 2 * math.Pi * float64(i) / float64(MeterFFTSize)
		m.window[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}
	return m, nil
}

// Write feeds one block of stereo audio, down-mixed to mono.
func (m *Meter) Write(left, right []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		m.ring[m.pos] = 0.5 * (float64(left[i]) + float64(right[i]))
		m.pos++
		if m.pos == len(m.ring) {
			m.pos = 0
		}
	}
}

// Level analyses the latest window and advances the spectral smoothing by one frame.
func (m *Meter) Level() Level {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.buf {
		m.buf[i] = m.ring[(m.pos+i)%len(m.ring)] * m.window[i]
	}
	m.forward(m.spectrum, m.buf)

	const scale = 255.0 / (meterMaxDB - meterMinDB)
	var sum float64
	for k := range m.smooth {
		mag := cmplx.Abs(m.spectrum[k]) / MeterFFTSize
		m.smooth[k] = meterSmoothing*m.smooth[k] + (1-meterSmoothing)*mag
		db := meterMinDB
		if m.smooth[k] > 0 {
			db = 20 * math.Log10(m.smooth[k])
		}
		v := math.Floor(scale * (db - meterMinDB))
		if v < 0 {
			v = 0
		}
		if v > 255 {
			v = 255
		}
		sum += v
	}
	value := sum / float64(len(m.smooth)) / 255
	return Level{Value: value, Peak: value > PeakThreshold}
}

// Reset clears history and smoothing.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.ring)
	clear(m.smooth)
	m.pos = 0
}
