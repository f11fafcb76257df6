package sampler

import "time"

// Voice is one playing instance of a pad's buffer. A pad owns at most one.
type Voice struct {
	buffer    *Buffer
	loop      bool
	startedAt time.Time
	pos       float64 // frames, fractional
	played    int     // output frames rendered
}

func newVoice(buf *Buffer, loop bool, now time.Time) *Voice {
	return &Voice{buffer: buf, loop: loop, startedAt: now}
}

// Loop reports whether the voice restarts at the end of its buffer.
func (v *Voice) Loop() bool { return v.loop }

// StartedAt is the wall-clock time the voice was started.
func (v *Voice) StartedAt() time.Time { return v.startedAt }

// endedAt is StartedAt plus the audio rendered so far at sampleRate.
func (v *Voice) endedAt(sampleRate int) time.Time {
	return v.startedAt.Add(time.Duration(v.played) * time.Second / time.Duration(sampleRate))
}

// mixInto adds the next len(left) frames at the given playback rate.
// It returns false once a non-looping voice has run past its last frame.
func (v *Voice) mixInto(left, right []float32, rate float64) bool {
	b := v.buffer
	n := b.Frames()
	if n == 0 {
		return false
	}
	end := float64(n)
	for i := range left {
		if v.pos >= end {
			if !v.loop {
				return false
			}
			for v.pos >= end {
				v.pos -= end
			}
		}
		idx := int(v.pos)
		frac := float32(v.pos - float64(idx))
		next := idx + 1
		if next >= n {
			if v.loop {
				next = 0
			} else {
				next = idx
			}
		}
		left[i] += b.Left[idx] + frac*(b.Left[next]-b.Left[idx])
		right[i] += b.Right[idx] + frac*(b.Right[next]-b.Right[idx])
		v.pos += rate
		v.played++
	}
	return v.loop || v.pos < end
}
