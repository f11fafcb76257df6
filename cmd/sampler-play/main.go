package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"golang.org/x/term"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/internal/device"
	"github.com/cwbudde/algo-sampler/internal/midictl"
	"github.com/cwbudde/algo-sampler/preset"
	"github.com/cwbudde/algo-sampler/recorder"
	"github.com/cwbudde/algo-sampler/sampler"
	"github.com/cwbudde/algo-sampler/session"
)

const keyHelp = "keys: 1-9 pads | l loop | space sequencer | r record | b bypass | s stop all | +/- bpm | q quit"

func main() {
	presetPath := flag.String("preset", "", "Preset JSON file path (pads, patterns, effects)")
	assign := flag.String("assign", "", "Extra pad assignments, e.g. 1=kick.wav,2=http://host/download/job/slice_2.wav")
	midiPort := flag.String("midi", "", "MIDI input port name (substring match; \"list\" prints ports)")
	midiBase := flag.Int("midi-base", midictl.DefaultBaseNote, "MIDI note mapped to pad 1")
	recordOut := flag.String("record-out", "", "Write the recorded take as JSON on exit")
	renderOut := flag.String("render-out", "", "Render the recorded take to WAV on exit")
	bufferMS := flag.Int("buffer-ms", 0, "Output device buffer in milliseconds (0 = backend default)")
	meter := flag.Bool("meter", true, "Show the output level meter")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if *midiPort == "list" {
		for _, name := range midictl.Ports() {
			fmt.Println(name)
		}
		return
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := preset.NewDefaultConfig()
	if *presetPath != "" {
		var err error
		cfg, err = preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
	}
	if err := parseAssign(cfg, *assign); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	client := analysis.NewClient(cfg.BackendURL, nil)
	client.Logger = logger.With("component", "backend")
	scfg := cfg.SessionConfig()
	scfg.Fetcher = sampler.RouteFetcher{Remote: client}
	scfg.Logger = logger
	s, err := session.New(scfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	if err := cfg.Apply(ctx, s); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	s.WaitLoads()
	for n := 1; n <= sampler.NumPads; n++ {
		if err := s.Bank().Err(n); err != nil {
			fmt.Fprintf(os.Stderr, "pad %d: %v\n", n, err)
		}
	}

	player, err := device.Open(s, s.SampleRate(), time.Duration(*bufferMS)*time.Millisecond)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio device: %v\n", err)
		os.Exit(1)
	}
	defer player.Close()
	player.Start()

	if *midiPort != "" {
		in, err := midictl.FindPort(*midiPort)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		m := midictl.DefaultMapping()
		m.BaseNote = uint8(*midiBase)
		stopMIDI, err := midictl.Listen(in, m, midictl.Handler{
			NoteOn: func(pad int) { _ = s.Trigger(pad) },
			Error:  func(err error) { logger.Warn("midi", "err", err) },
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer stopMIDI()
	}

	if err := runKeys(ctx, s, *meter); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	s.StopSequencer()
	if err := saveTake(ctx, s, *recordOut, *renderOut); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// parseAssign adds comma-separated pad=url pairs to cfg.
func parseAssign(cfg *preset.Config, list string) error {
	if list == "" {
		return nil
	}
	for _, item := range strings.Split(list, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(item), "=")
		if !ok || v == "" {
			return fmt.Errorf("invalid -assign entry %q (want pad=url)", item)
		}
		n, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("invalid -assign pad %q", k)
		}
		if err := sampler.CheckPad(n); err != nil {
			return err
		}
		cfg.Pads[n] = sampler.PadAssignment{Pad: n, Slice: analysis.Slice{Measure: n}, URL: v}
	}
	return nil
}

func runKeys(ctx context.Context, s *session.Session, meter bool) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	status := func(msg string) {
		fmt.Printf("\r\033[K%s\r\n", msg)
	}
	status(keyHelp)

	if meter {
		s.StartMetering(func(l sampler.Level) {
			bar := strings.Repeat("#", int(l.Value*40))
			peak := ""
			if l.Peak {
				peak = " PEAK"
			}
			fmt.Printf("\r\033[K[%-40s]%s step %2d", bar, peak, s.Clock().Step()+1)
		})
		defer s.StopMetering()
	}

	keys := make(chan byte)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				close(keys)
				return
			}
			if n > 0 {
				keys <- buf[0]
			}
		}
	}()

	for {
		var k byte
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-keys:
			if !ok {
				return nil
			}
			k = b
		}
		switch {
		case k >= '1' && k <= '9':
			_ = s.Trigger(int(k - '0'))
		case k == 'l':
			s.SetLoopMode(!s.LoopMode())
			status(fmt.Sprintf("loop mode: %v", s.LoopMode()))
		case k == ' ':
			status(fmt.Sprintf("sequencer: %v", s.ToggleSequencer()))
		case k == 'r':
			status(fmt.Sprintf("recording: %v", s.ToggleRecord()))
		case k == 'b':
			status(fmt.Sprintf("bypass: %v", s.ToggleBypass()))
		case k == 's':
			s.StopAll()
		case k == '+' || k == '-':
			bpm := s.BPM() + 5
			if k == '-' {
				bpm = s.BPM() - 5
			}
			if err := s.SetBPM(bpm); err != nil {
				status(err.Error())
				continue
			}
			status(fmt.Sprintf("bpm: %.0f", s.BPM()))
		case k == 'q' || k == 3:
			return nil
		}
	}
}

func saveTake(ctx context.Context, s *session.Session, takePath, wavPath string) error {
	events := s.Events()
	if len(events) == 0 {
		return nil
	}
	if takePath != "" {
		take := &recorder.Take{BPM: s.BPM(), Pads: make(map[int]string), Events: events}
		for n, a := range s.Bank().Assignments() {
			take.Pads[n] = a.URL
		}
		if err := recorder.WriteTake(takePath, take); err != nil {
			return fmt.Errorf("write take: %w", err)
		}
		fmt.Printf("Wrote %s (%d events)\n", takePath, len(events))
	}
	if wavPath != "" {
		wav, err := s.RenderPerformance(ctx)
		if err != nil {
			return fmt.Errorf("render: %w", err)
		}
		if err := os.WriteFile(wavPath, wav, 0o644); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", wavPath)
	}
	return nil
}
