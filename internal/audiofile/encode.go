package audiofile

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"
)

// HeaderSize is the canonical RIFF/WAVE header length for PCM output.
const HeaderSize = 44

// EncodePCM16 wraps interleaved 16-bit sample values in a PCM WAV container.
// Values are written as-is; callers own scaling and clipping.
func EncodePCM16(samples []int, channels int, sampleRate int) ([]byte, error) {
	if channels < 1 {
		return nil, fmt.Errorf("channels must be >= 1")
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("sample count %d not a multiple of %d channels", len(samples), channels)
	}
	ws := &memWriteSeeker{buf: make([]byte, 0, HeaderSize+len(samples)*2)}
	enc := gowav.NewEncoder(ws, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  sampleRate,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return ws.buf, nil
}

// memWriteSeeker is the in-memory io.WriteSeeker the encoder patches its size fields through.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, len(m.buf), 2*end)
			copy(grown, m.buf)
			m.buf = grown
		}
		m.buf = m.buf[:end]
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = int64(m.pos) + offset
	case io.SeekEnd:
		abs = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(abs)
	return abs, nil
}
