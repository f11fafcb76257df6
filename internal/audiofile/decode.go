// Package audiofile decodes sample slices and encodes rendered audio.
package audiofile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cwbudde/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Format identifies a container recognised by Sniff.
type Format int

const (
	FormatUnknown Format = iota
	FormatWAV
	FormatMP3
)

func (f Format) String() string {
	switch f {
	case FormatWAV:
		return "wav"
	case FormatMP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// ErrUnknownFormat is returned for byte streams that are neither RIFF/WAVE nor MP3.
var ErrUnknownFormat = errors.New("unrecognised audio format")

// Decoded is de-interleaved float PCM at its source sample rate.
type Decoded struct {
	SampleRate int
	Channels   [][]float32
}

// Frames returns the per-channel length.
func (d *Decoded) Frames() int {
	if d == nil || len(d.Channels) == 0 {
		return 0
	}
	return len(d.Channels[0])
}

// Sniff inspects the leading bytes of data.
func Sniff(data []byte) Format {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		return FormatWAV
	}
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return FormatMP3
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return FormatMP3
	}
	return FormatUnknown
}

// Decode decodes a complete WAV or MP3 file held in memory.
func Decode(data []byte) (*Decoded, error) {
	switch Sniff(data) {
	case FormatWAV:
		return decodeWAV(data)
	case FormatMP3:
		return decodeMP3(data)
	default:
		return nil, ErrUnknownFormat
	}
}

func decodeWAV(data []byte) (*Decoded, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("invalid wav data")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, fmt.Errorf("invalid wav buffer")
	}
	numCh := buf.Format.NumChannels
	if buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid wav sample-rate: %d", buf.Format.SampleRate)
	}
	frames := len(buf.Data) / numCh
	if frames == 0 {
		return nil, fmt.Errorf("empty wav data")
	}

	// Anything beyond stereo is folded to its first two channels.
	outCh := numCh
	if outCh > 2 {
		outCh = 2
	}
	d := &Decoded{SampleRate: buf.Format.SampleRate, Channels: make([][]float32, outCh)}
	for c := range d.Channels {
		d.Channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < outCh; c++ {
			d.Channels[c][i] = buf.Data[i*numCh+c]
		}
	}
	return d, nil
}

func decodeMP3(data []byte) (*Decoded, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}
	// go-mp3 always yields signed 16-bit little-endian stereo.
	frames := len(raw) / 4
	if frames == 0 {
		return nil, fmt.Errorf("empty mp3 data")
	}
	left := make([]float32, frames)
	right := make([]float32, frames)
	for i := 0; i < frames; i++ {
		l := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		r := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		left[i] = float32(l) / 32768
		right[i] = float32(r) / 32768
	}
	return &Decoded{SampleRate: dec.SampleRate(), Channels: [][]float32{left, right}}, nil
}
