package render

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-sampler/recorder"
)

// Quantized is an event snapped to the 16th-note grid, in seconds from the first trigger.
type Quantized struct {
	Type recorder.EventType
	Pad  int
	At   float64
}

// Note is one rendered use of a pad's buffer. An unbounded note plays to the
// end of the buffer.
type Note struct {
	Pad      int
	Start    float64 // seconds
	Duration float64 // seconds, meaningful only when Bounded
	Bounded  bool
}

// End returns the stop time of a bounded note.
func (n Note) End() float64 { return n.Start + n.Duration }

// GridMS is the length of a 16th note at bpm in milliseconds.
func GridMS(bpm float64) float64 {
	return (60000 / bpm) / 4
}

// Quantize sorts events by time, aligns them to the earliest trigger and snaps
// them to the nearest grid line. ok is false if there is no trigger.
func Quantize(events []recorder.Event, bpm float64) (q []Quantized, ok bool) {
	t0 := math.Inf(1)
	for _, e := range events {
		if e.Type == recorder.Trigger && e.Time < t0 {
			t0 = e.Time
		}
	}
	if math.IsInf(t0, 1) {
		return nil, false
	}

	sorted := append([]recorder.Event(nil), events...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time < sorted[j].Time })

	grid := GridMS(bpm)
	q = make([]Quantized, 0, len(sorted))
	for _, e := range sorted {
		rel := math.Max(0, e.Time-t0)
		q = append(q, Quantized{
			Type: e.Type,
			Pad:  e.Pad,
			At:   math.Round(rel/grid) * grid / 1000,
		})
	}
	return q, true
}

// BuildNotes pairs quantized events per pad. A trigger on a pad with an open
// note closes it at the new trigger's time; a stop closes the open note; a
// stop with nothing open is ignored. Notes still open at the end are
// unbounded and listed last in pad order.
func BuildNotes(q []Quantized) []Note {
	var notes []Note
	open := make(map[int]*Note)
	for _, e := range q {
		switch e.Type {
		case recorder.Trigger:
			if n := open[e.Pad]; n != nil {
				n.Duration = e.At - n.Start
				n.Bounded = true
				notes = append(notes, *n)
			}
			open[e.Pad] = &Note{Pad: e.Pad, Start: e.At}
		case recorder.Stop:
			if n := open[e.Pad]; n != nil {
				n.Duration = e.At - n.Start
				n.Bounded = true
				notes = append(notes, *n)
				delete(open, e.Pad)
			}
		}
	}

	pads := make([]int, 0, len(open))
	for pad := range open {
		pads = append(pads, pad)
	}
	sort.Ints(pads)
	for _, pad := range pads {
		notes = append(notes, *open[pad])
	}
	return notes
}
