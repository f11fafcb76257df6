// Package render turns a recorded performance into a quantized, mixed-down
// 16-bit stereo WAV file.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/cwbudde/algo-sampler/internal/audiofile"
	"github.com/cwbudde/algo-sampler/recorder"
	"github.com/cwbudde/algo-sampler/sampler"
)

// Output format and envelope constants.
const (
	SampleRate = 44100
	Channels   = 2

	TailSeconds = 2.0
	FadeSeconds = 0.05
)

// BufferSource resolves a pad assignment URL to decoded audio.
// *sampler.BufferCache satisfies it.
type BufferSource interface {
	Load(ctx context.Context, url string) (*sampler.Buffer, error)
}

// Renderer renders performances against a buffer source.
type Renderer struct {
	source BufferSource
	logger *slog.Logger
}

// New returns a renderer. A nil logger discards.
func New(source BufferSource, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Renderer{source: source, logger: logger}
}

// Render quantizes events at bpm, renders every note through the assigned
// pad's buffer without effects and returns the encoded WAV. It returns nil,
// nil when events contain no trigger. Pads whose audio cannot be loaded are
// left silent.
func (r *Renderer) Render(ctx context.Context, events []recorder.Event, assignments map[int]sampler.PadAssignment, bpm float64) ([]byte, error) {
	if err := checkBPM(bpm); err != nil {
		return nil, err
	}
	q, ok := Quantize(events, bpm)
	if !ok {
		return nil, nil
	}
	notes := BuildNotes(q)

	buffers, err := r.loadBuffers(ctx, notes, assignments)
	if err != nil {
		return nil, err
	}
	left, right, err := Mixdown(ctx, notes, buffers)
	if err != nil {
		return nil, err
	}
	r.logger.Info("performance rendered",
		"events", len(events), "notes", len(notes),
		"seconds", float64(len(left))/SampleRate)
	return EncodeWAV(left, right)
}

// Render is Renderer.Render with a discarding logger.
func Render(ctx context.Context, events []recorder.Event, assignments map[int]sampler.PadAssignment, bpm float64, source BufferSource) ([]byte, error) {
	return New(source, nil).Render(ctx, events, assignments, bpm)
}

func (r *Renderer) loadBuffers(ctx context.Context, notes []Note, assignments map[int]sampler.PadAssignment) (map[int]*sampler.Buffer, error) {
	var pads []int
	seen := make(map[int]bool)
	for _, n := range notes {
		if !seen[n.Pad] {
			seen[n.Pad] = true
			pads = append(pads, n.Pad)
		}
	}
	sort.Ints(pads)

	buffers := make(map[int]*sampler.Buffer, len(pads))
	for _, pad := range pads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, ok := assignments[pad]
		if !ok || a.URL == "" {
			r.logger.Warn("pad has no assignment, skipping", "pad", pad)
			continue
		}
		if r.source == nil {
			return nil, fmt.Errorf("render: no buffer source")
		}
		buf, err := r.source.Load(ctx, a.URL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("pad audio unavailable, skipping", "pad", pad, "url", a.URL, "err", err)
			continue
		}
		buf, err = toRenderRate(buf)
		if err != nil {
			r.logger.Warn("pad audio resample failed, skipping", "pad", pad, "err", err)
			continue
		}
		buffers[pad] = buf
	}
	return buffers, nil
}

func toRenderRate(b *sampler.Buffer) (*sampler.Buffer, error) {
	if b.SampleRate == SampleRate {
		return b, nil
	}
	l, err := audiofile.Resample(b.Left, b.SampleRate, SampleRate)
	if err != nil {
		return nil, err
	}
	r, err := audiofile.Resample(b.Right, b.SampleRate, SampleRate)
	if err != nil {
		return nil, err
	}
	n := min(len(l), len(r))
	return sampler.NewBuffer(SampleRate, l[:n], r[:n]), nil
}

func checkBPM(bpm float64) error {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) || bpm <= 0 {
		return fmt.Errorf("bpm must be > 0, got %g", bpm)
	}
	return nil
}
