package render

import (
	"context"
	"fmt"
	"math"

	"github.com/cwbudde/algo-sampler/internal/audiofile"
	"github.com/cwbudde/algo-sampler/sampler"
)

func toFrame(seconds float64) int {
	return int(math.Round(seconds * SampleRate))
}

func stopFrame(n Note) int {
	return toFrame(n.Start + n.Duration)
}

// span returns the frame range a note sounds over. stop is the frame where a
// bounded note's fade reaches zero, or -1 for an unbounded note.
func span(n Note, buf *sampler.Buffer) (start, end, stop int) {
	start = toFrame(n.Start)
	natural := start + buf.Frames()
	if !n.Bounded {
		return start, natural, -1
	}
	stop = stopFrame(n)
	return start, min(stop, natural), stop
}

// Length returns the render length in frames: the latest note end plus the tail.
func Length(notes []Note, buffers map[int]*sampler.Buffer) int {
	last := 0
	for _, n := range notes {
		buf := buffers[n.Pad]
		if buf == nil {
			continue
		}
		if n.Bounded {
			// A bounded note reserves its full duration even if the buffer is shorter.
			last = max(last, stopFrame(n))
		} else {
			_, end, _ := span(n, buf)
			last = max(last, end)
		}
	}
	return last + int(math.Ceil(TailSeconds*SampleRate))
}

// Mixdown sums every note into a stereo buffer at SampleRate. A bounded note
// gets a linear fade reaching zero exactly at its stop frame and is silent
// from there on. Notes whose pad has no buffer are skipped.
func Mixdown(ctx context.Context, notes []Note, buffers map[int]*sampler.Buffer) (left, right []float32, err error) {
	total := Length(notes, buffers)
	left = make([]float32, total)
	right = make([]float32, total)

	fadeFrames := float64(toFrame(FadeSeconds))

	for _, n := range notes {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		buf := buffers[n.Pad]
		if buf == nil {
			continue
		}
		start, end, stop := span(n, buf)
		for k := start; k < end && k < total; k++ {
			src := k - start
			g := float32(1)
			if stop >= 0 {
				g = float32(math.Min(1, float64(stop-k)/fadeFrames))
			}
			left[k] += buf.Left[src] * g
			right[k] += buf.Right[src] * g
		}
	}
	return left, right, nil
}

// PCM16 clamps s to [-1,1] and scales negative values by 32768 and the rest by
// 32767, truncating toward zero.
func PCM16(s float32) int {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(1, v))
	if v < 0 {
		return int(v * 32768)
	}
	return int(v * 32767)
}

// EncodeWAV interleaves left and right into a 16-bit stereo PCM WAV at SampleRate.
func EncodeWAV(left, right []float32) ([]byte, error) {
	if len(left) != len(right) {
		return nil, fmt.Errorf("channel length mismatch: %d vs %d", len(left), len(right))
	}
	samples := make([]int, 2*len(left))
	for i := range left {
		samples[2*i] = PCM16(left[i])
		samples[2*i+1] = PCM16(right[i])
	}
	return audiofile.EncodePCM16(samples, Channels, SampleRate)
}
