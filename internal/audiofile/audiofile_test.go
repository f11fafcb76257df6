package audiofile

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestSniff(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Format
	}{
		{"riff", []byte("RIFF\x00\x00\x00\x00WAVEfmt "), FormatWAV},
		{"id3", []byte("ID3\x04\x00"), FormatMP3},
		{"frame-sync", []byte{0xFF, 0xFB, 0x90, 0x00}, FormatMP3},
		{"text", []byte("hello world"), FormatUnknown},
		{"short", []byte{0xFF}, FormatUnknown},
	}
	for _, tc := range cases {
		if got := Sniff(tc.data); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	if _, err := Decode([]byte("not audio at all")); err != ErrUnknownFormat {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestEncodePCM16Header(t *testing.T) {
	samples := []int{0, 0, 32767, -32768, 100, -100}
	b, err := EncodePCM16(samples, 2, 44100)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}
	if len(b) != HeaderSize+len(samples)*2 {
		t.Fatalf("unexpected length %d", len(b))
	}
	if string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" || string(b[12:16]) != "fmt " || string(b[36:40]) != "data" {
		t.Fatalf("unexpected chunk ids: %q", b[:40])
	}
	if got := binary.LittleEndian.Uint32(b[4:]); got != uint32(len(b)-8) {
		t.Fatalf("riff size: expected %d, got %d", len(b)-8, got)
	}
	if got := binary.LittleEndian.Uint16(b[20:]); got != 1 {
		t.Fatalf("expected PCM format tag, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(b[22:]); got != 2 {
		t.Fatalf("expected 2 channels, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[24:]); got != 44100 {
		t.Fatalf("expected 44100 Hz, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[28:]); got != 44100*4 {
		t.Fatalf("expected byte rate %d, got %d", 44100*4, got)
	}
	if got := binary.LittleEndian.Uint16(b[32:]); got != 4 {
		t.Fatalf("expected block align 4, got %d", got)
	}
	if got := binary.LittleEndian.Uint16(b[34:]); got != 16 {
		t.Fatalf("expected 16 bits, got %d", got)
	}
	if got := binary.LittleEndian.Uint32(b[40:]); got != uint32(len(samples)*2) {
		t.Fatalf("data size: expected %d, got %d", len(samples)*2, got)
	}
	for i, want := range samples {
		got := int16(binary.LittleEndian.Uint16(b[HeaderSize+i*2:]))
		if int(got) != want {
			t.Fatalf("sample %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestEncodePCM16RejectsRaggedFrames(t *testing.T) {
	if _, err := EncodePCM16([]int{1, 2, 3}, 2, 44100); err == nil {
		t.Fatalf("expected error for odd sample count")
	}
}

func TestDecodeRoundTripsEncodedWAV(t *testing.T) {
	samples := make([]int, 0, 200)
	for i := 0; i < 100; i++ {
		samples = append(samples, i*100, -i*100)
	}
	b, err := EncodePCM16(samples, 2, 22050)
	if err != nil {
		t.Fatalf("EncodePCM16 failed: %v", err)
	}
	d, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if d.SampleRate != 22050 || len(d.Channels) != 2 || d.Frames() != 100 {
		t.Fatalf("unexpected decode shape: rate=%d ch=%d frames=%d", d.SampleRate, len(d.Channels), d.Frames())
	}
	if d.Channels[0][50] <= 0 || d.Channels[1][50] >= 0 {
		t.Fatalf("channel order lost: l=%g r=%g", d.Channels[0][50], d.Channels[1][50])
	}
}

func TestWriteMonoWAVAndReadFileResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mono.wav")
	data := make([]float32, 4800)
	for i := range data {
		data[i] = 0.25
	}
	if err := WriteMonoWAV(path, data, 48000); err != nil {
		t.Fatalf("WriteMonoWAV failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file: %v", err)
	}
	d, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(d.Channels) != 1 {
		t.Fatalf("expected mono, got %d channels", len(d.Channels))
	}
	if err := d.ResampleTo(24000); err != nil {
		t.Fatalf("ResampleTo failed: %v", err)
	}
	if d.SampleRate != 24000 {
		t.Fatalf("expected 24000 Hz, got %d", d.SampleRate)
	}
	if n := d.Frames(); n < 2300 || n > 2500 {
		t.Fatalf("expected about 2400 frames after resampling, got %d", n)
	}
}
