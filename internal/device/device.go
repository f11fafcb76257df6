// Package device streams a Source to the default audio output.
package device

import (
	"encoding/binary"
	"math"
)

// Source renders stereo interleaved float32 audio on demand.
type Source interface {
	Process(numFrames int) []float32
}

// reader adapts a Source to the float32 little-endian byte stream audio backends pull from.
type reader struct {
	src     Source
	partial []byte
}

func (r *reader) Read(p []byte) (int, error) {
	n := copy(p, r.partial)
	r.partial = r.partial[n:]
	if n == len(p) {
		return n, nil
	}
	// Whole stereo frames only; remainder bytes are kept for the next call.
	frames := (len(p) - n + 7) / 8
	samples := r.src.Process(frames)
	buf := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(s))
	}
	m := copy(p[n:], buf)
	r.partial = buf[m:]
	return n + m, nil
}
