// Package midictl maps MIDI note-on messages to pad triggers.
//
// A MIDI driver must be registered by the importing program, for example with
// a blank import of gitlab.com/gomidi/midi/v2/drivers/rtmididrv.
package midictl

import (
	"fmt"
	"strings"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/cwbudde/algo-sampler/sampler"
)

// DefaultBaseNote maps C3 to pad 1.
const DefaultBaseNote = 48

// Mapping translates notes into pad numbers.
type Mapping struct {
	BaseNote uint8
	// Channel filters input when >= 0. Channels are 0-based.
	Channel int
}

// DefaultMapping listens on every channel with pads starting at DefaultBaseNote.
func DefaultMapping() Mapping {
	return Mapping{BaseNote: DefaultBaseNote, Channel: -1}
}

// Pad returns the pad for a note, or false when the note is outside the bank.
func (m Mapping) Pad(channel, note uint8) (int, bool) {
	if m.Channel >= 0 && int(channel) != m.Channel {
		return 0, false
	}
	if note < m.BaseNote {
		return 0, false
	}
	pad := int(note-m.BaseNote) + 1
	if sampler.CheckPad(pad) != nil {
		return 0, false
	}
	return pad, true
}

// Handler receives mapped note-on and note-off messages.
type Handler struct {
	NoteOn  func(pad int)
	NoteOff func(pad int)
	Error   func(error)
}

// Message routes one MIDI message through m to h.
func (m Mapping) Message(msg gomidi.Message, h Handler) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		if pad, ok := m.Pad(ch, key); ok && h.NoteOn != nil {
			h.NoteOn(pad)
		}
	case msg.GetNoteEnd(&ch, &key):
		if pad, ok := m.Pad(ch, key); ok && h.NoteOff != nil {
			h.NoteOff(pad)
		}
	}
}

// Ports lists the names of the available input ports.
func Ports() []string {
	var names []string
	for _, in := range gomidi.GetInPorts() {
		names = append(names, in.String())
	}
	return names
}

// FindPort returns the first input port whose name contains name, ignoring case.
func FindPort(name string) (drivers.In, error) {
	needle := strings.ToLower(name)
	for _, in := range gomidi.GetInPorts() {
		if strings.Contains(strings.ToLower(in.String()), needle) {
			return in, nil
		}
	}
	return nil, fmt.Errorf("midi input %q not found", name)
}

// Listen opens in and routes its messages through m until the returned stop is called.
func Listen(in drivers.In, m Mapping, h Handler) (func(), error) {
	var opts []gomidi.Option
	if h.Error != nil {
		opts = append(opts, gomidi.HandleError(h.Error))
	}
	stop, err := gomidi.ListenTo(in, func(msg gomidi.Message, _ int32) {
		m.Message(msg, h)
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	return stop, nil
}
