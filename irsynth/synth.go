// Package irsynth generates the stereo impulse response used by the reverb stage.
package irsynth

import (
	"fmt"
	"math"
	"math/rand"
)

// Reference calibration for energy normalisation: -58 dB at 44.1 kHz.
const (
	calibrationGain       = 0.00125
	calibrationSampleRate = 44100.0
	minPower              = 0.000125
)

// RoomConfig controls the decaying-noise room response.
type RoomConfig struct {
	SampleRate int
	DurationS  float64
	Seed       int64

	// DecayPower shapes the envelope (1 - t/T)^DecayPower.
	DecayPower float64

	EarlyCount  int
	EarlyLevel  float64
	StereoWidth float64
	FadeOutS    float64 // Cosine fade-out at the end; 0 = no fade

	// Normalize scales the response to a fixed energy so wet level does not depend on length.
	Normalize bool
}

// DefaultRoomConfig returns the 2 s quadratic-decay noise room at 44.1 kHz.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		SampleRate:  44100,
		DurationS:   2.0,
		Seed:        1,
		DecayPower:  2.0,
		EarlyCount:  0,
		EarlyLevel:  0.5,
		StereoWidth: 0.6,
		FadeOutS:    0,
		Normalize:   true,
	}
}

func (c *RoomConfig) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if c.DecayPower <= 0 {
		return fmt.Errorf("decay power must be > 0")
	}
	if c.EarlyCount < 0 {
		return fmt.Errorf("early count must be >= 0")
	}
	if c.EarlyLevel < 0 {
		return fmt.Errorf("early level must be >= 0")
	}
	if c.StereoWidth < 0 || c.StereoWidth > 1 {
		return fmt.Errorf("stereo width must be in [0,1]")
	}
	if c.FadeOutS < 0 {
		return fmt.Errorf("fade-out must be >= 0")
	}
	return nil
}

// GenerateRoom synthesizes independent left/right decaying noise tails.
// The same config and seed always yield the same response.
func GenerateRoom(cfg RoomConfig) ([]float32, []float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	n := int(math.Round(cfg.DurationS * float64(cfg.SampleRate)))
	if n < 1 {
		n = 1
	}
	left := make([]float64, n)
	right := make([]float64, n)

	rng := rand.New(rand.NewSource(cfg.Seed))

	for i := 0; i < n; i++ {
		env := math.Pow(1.0-float64(i)/float64(n), cfg.DecayPower)
		left[i] = (rng.Float64()*2 - 1) * env
		right[i] = (rng.Float64()*2 - 1) * env
	}

	// Early reflections, 1-50 ms.
	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.001 + 0.049*rng.Float64()
		idx := int(t * float64(cfg.SampleRate))
		if idx <= 0 || idx >= n {
			continue
		}
		amp := cfg.EarlyLevel * (0.3 + 0.7*rng.Float64()) * math.Exp(-t*20.0)
		pan := (rng.Float64()*2.0 - 1.0) * cfg.StereoWidth
		left[idx] += amp * (1.0 - 0.5*pan)
		right[idx] += amp * (1.0 + 0.5*pan)
	}

	applyFadeOut(left, cfg.FadeOutS, cfg.SampleRate)
	applyFadeOut(right, cfg.FadeOutS, cfg.SampleRate)

	s := 1.0
	if cfg.Normalize {
		s = normalizationScale(left, right, cfg.SampleRate)
	}
	outL := make([]float32, n)
	outR := make([]float32, n)
	for i := 0; i < n; i++ {
		outL[i] = float32(left[i] * s)
		outR[i] = float32(right[i] * s)
	}
	return outL, outR, nil
}

// normalizationScale maps the mean power of both channels onto the calibration level.
func normalizationScale(left, right []float64, sampleRate int) float64 {
	var power float64
	for i := range left {
		power += left[i]*left[i] + right[i]*right[i]
	}
	power = math.Sqrt(power / float64(len(left)+len(right)))
	if math.IsNaN(power) || math.IsInf(power, 0) || power < minPower {
		power = minPower
	}
	return (1.0 / power) * calibrationGain * (calibrationSampleRate / float64(sampleRate))
}

// applyFadeOut applies a cosine fade-out to the last fadeS seconds of buf.
func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	if fadeS <= 0 || len(buf) == 0 {
		return
	}
	fadeSamples := int(math.Round(fadeS * float64(sampleRate)))
	if fadeSamples > len(buf) {
		fadeSamples = len(buf)
	}
	start := len(buf) - fadeSamples
	for i := 0; i < fadeSamples; i++ {
		t := float64(i) / float64(fadeSamples)
		gain := 0.5 * (1.0 + math.Cos(t*math.Pi))
		buf[start+i] *= gain
	}
}
