package sampler

import (
	"fmt"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"

	"github.com/cwbudde/algo-sampler/internal/audiofile"
	"github.com/cwbudde/algo-sampler/irsynth"
)

// Partition orders for the reverb convolver: 128-sample latency, 8192-sample largest block.
const (
	reverbMinBlockOrder = 7
	reverbMaxBlockOrder = 13
)

// Reverb is a true-stereo convolution reverb: left input through the left IR,
// right input through the right IR.
type Reverb struct {
	sampleRate int
	irLen      int

	left  *dspconv.PartitionedConvolution32
	right *dspconv.PartitionedConvolution32
}

// NewReverb creates a reverb loaded with the default synthetic room.
func NewReverb(sampleRate int) (*Reverb, error) {
	r := &Reverb{sampleRate: sampleRate}
	cfg := irsynth.DefaultRoomConfig()
	cfg.SampleRate = sampleRate
	left, right, err := irsynth.GenerateRoom(cfg)
	if err != nil {
		return nil, err
	}
	if err := r.SetIR(left, right); err != nil {
		return nil, err
	}
	return r, nil
}

// SetIR replaces the impulse responses. Empty channels become a unit impulse.
func (r *Reverb) SetIR(leftIR []float32, rightIR []float32) error {
	if len(leftIR) == 0 {
		leftIR = []float32{1.0}
	}
	if len(rightIR) == 0 {
		rightIR = leftIR
	}
	left, err := dspconv.NewPartitionedConvolution32(leftIR, reverbMinBlockOrder, reverbMaxBlockOrder)
	if err != nil {
		return fmt.Errorf("reverb left IR: %w", err)
	}
	right, err := dspconv.NewPartitionedConvolution32(rightIR, reverbMinBlockOrder, reverbMaxBlockOrder)
	if err != nil {
		return fmt.Errorf("reverb right IR: %w", err)
	}
	r.left = left
	r.right = right
	r.irLen = max(len(leftIR), len(rightIR))
	return nil
}

// SetIRFromWAV loads a mono or stereo IR file, resampling it to the engine rate.
func (r *Reverb) SetIRFromWAV(path string) error {
	d, err := audiofile.ReadFile(path)
	if err != nil {
		return err
	}
	if err := d.ResampleTo(r.sampleRate); err != nil {
		return err
	}
	if len(d.Channels) == 1 {
		return r.SetIR(d.Channels[0], d.Channels[0])
	}
	return r.SetIR(d.Channels[0], d.Channels[1])
}

// Process convolves inL/inR into outL/outR. All four slices must have equal length.
func (r *Reverb) Process(inL, inR, outL, outR []float32) error {
	if err := r.left.ProcessBlock(inL, outL); err != nil {
		return err
	}
	return r.right.ProcessBlock(inR, outR)
}

// Latency is the wet-path delay in samples.
func (r *Reverb) Latency() int { return r.left.Latency() }

// IRLength returns the longer of the two impulse responses in samples.
func (r *Reverb) IRLength() int { return r.irLen }

// Reset clears convolver history.
func (r *Reverb) Reset() {
	r.left.Reset()
	r.right.Reset()
}
