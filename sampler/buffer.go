package sampler

import (
	"fmt"

	"github.com/cwbudde/algo-sampler/internal/audiofile"
)

// Buffer is decoded stereo PCM. It is never mutated after construction and
// may be shared by any number of voices and renders.
type Buffer struct {
	SampleRate int
	Left       []float32
	Right      []float32
}

// NewBuffer builds a buffer from one or two channels. A nil right channel
// duplicates left.
func NewBuffer(sampleRate int, left, right []float32) *Buffer {
	if right == nil {
		right = left
	}
	return &Buffer{SampleRate: sampleRate, Left: left, Right: right}
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	if b == nil {
		return 0
	}
	return len(b.Left)
}

// Duration returns the natural length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(len(b.Left)) / float64(b.SampleRate)
}

// DecodeBuffer decodes WAV or MP3 bytes and resamples them to sampleRate.
func DecodeBuffer(data []byte, sampleRate int) (*Buffer, error) {
	d, err := audiofile.Decode(data)
	if err != nil {
		return nil, err
	}
	if err := d.ResampleTo(sampleRate); err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	switch len(d.Channels) {
	case 1:
		return NewBuffer(sampleRate, d.Channels[0], nil), nil
	case 2:
		l, r := d.Channels[0], d.Channels[1]
		if len(r) != len(l) {
			n := min(len(l), len(r))
			l, r = l[:n], r[:n]
		}
		return NewBuffer(sampleRate, l, r), nil
	default:
		return nil, fmt.Errorf("unsupported channel count %d", len(d.Channels))
	}
}
