// Package dsp holds the small per-sample building blocks of the effects chain.
package dsp

import (
	"fmt"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/delay"
)

// FeedbackDelay is a single-tap echo: the line is fed input plus feedback times its own output.
type FeedbackDelay struct {
	sampleRate int
	line       *delay.Line
	maxDelay   float64
	delay      float64 // samples
	feedback   float64
}

// NewFeedbackDelay allocates a line long enough for maxSeconds of delay.
func NewFeedbackDelay(sampleRate int, maxSeconds float64) (*FeedbackDelay, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be > 0")
	}
	if maxSeconds <= 0 {
		return nil, fmt.Errorf("max delay must be > 0")
	}
	// Hermite reads need three samples of headroom past the requested delay.
	size := int(maxSeconds*float64(sampleRate)) + 4
	line, err := delay.New(size)
	if err != nil {
		return nil, err
	}
	return &FeedbackDelay{
		sampleRate: sampleRate,
		line:       line,
		maxDelay:   float64(size - 3),
	}, nil
}

// SetTime sets the delay in seconds, clamped to the allocated length.
func (d *FeedbackDelay) SetTime(seconds float64) {
	d.delay = dspcore.Clamp(seconds*float64(d.sampleRate), 1, d.maxDelay)
}

// Time returns the current delay in seconds.
func (d *FeedbackDelay) Time() float64 {
	return d.delay / float64(d.sampleRate)
}

// SetFeedback sets the loop gain. Values are clamped below 1 so the loop stays stable.
func (d *FeedbackDelay) SetFeedback(fb float64) {
	d.feedback = dspcore.Clamp(fb, 0, 0.99)
}

// Process pushes one input sample and returns the delayed (wet) sample.
func (d *FeedbackDelay) Process(x float64) float64 {
	wet := d.line.ReadFractional(d.delay)
	d.line.Write(dspcore.FlushDenormals(x + d.feedback*wet))
	return wet
}

// Reset clears the line.
func (d *FeedbackDelay) Reset() {
	d.line.Reset()
}
