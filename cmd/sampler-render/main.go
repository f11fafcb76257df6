package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"time"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/preset"
	"github.com/cwbudde/algo-sampler/recorder"
	"github.com/cwbudde/algo-sampler/render"
	"github.com/cwbudde/algo-sampler/sampler"
	"github.com/cwbudde/algo-sampler/sched"
	"github.com/cwbudde/algo-sampler/sequencer"
	"github.com/cwbudde/algo-sampler/session"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

func main() {
	// Command-line flags
	takePath := flag.String("take", "", "Recorded take JSON to render (quantized, dry)")
	presetPath := flag.String("preset", "", "Preset JSON file path (pads, patterns, effects)")
	bpm := flag.Float64("bpm", 0, "Tempo override (0 = from take or preset)")
	bars := flag.Int("bars", 0, "Bounce this many bars of the step pattern through the live engine instead of rendering a take")
	decayDBFS := flag.Float64("decay-dbfs", -90, "Pattern bounce: stop the tail when stereo block RMS falls below this dBFS")
	maxTail := flag.Float64("max-tail", 10, "Pattern bounce: maximum tail in seconds after the last bar")
	output := flag.String("output", "output.wav", "Output WAV file path")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

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
	fetcher := sampler.RouteFetcher{Remote: analysis.NewClient(cfg.BackendURL, nil)}

	switch {
	case *takePath != "":
		if err := renderTake(ctx, *takePath, cfg, fetcher, *bpm, *output, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *bars > 0:
		if *bpm > 0 {
			cfg.BPM = *bpm
		}
		if err := bouncePattern(ctx, cfg, fetcher, *bars, *decayDBFS, *maxTail, *output, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "Error: one of -take or -bars is required")
		flag.Usage()
		os.Exit(2)
	}
}

func renderTake(ctx context.Context, path string, cfg *preset.Config, fetcher sampler.Fetcher, bpm float64, output string, logger *slog.Logger) error {
	take, err := recorder.ReadTake(path)
	if err != nil {
		return err
	}
	if bpm > 0 {
		take.BPM = bpm
	}

	assignments := make(map[int]sampler.PadAssignment)
	for n, a := range cfg.Pads {
		assignments[n] = a
	}
	for n, url := range take.Pads {
		assignments[n] = sampler.PadAssignment{Pad: n, URL: url}
	}

	fmt.Printf("Rendering %d events at %.1f BPM (grid %.1f ms)...\n", len(take.Events), take.BPM, render.GridMS(take.BPM))
	cache := sampler.NewBufferCache(fetcher, render.SampleRate, logger)
	b, err := render.New(cache, logger).Render(ctx, take.Events, assignments, take.BPM)
	if err != nil {
		return err
	}
	if b == nil {
		fmt.Println("Take contains no triggers, nothing written")
		return nil
	}
	if err := os.WriteFile(output, b, 0o644); err != nil {
		return err
	}
	frames := (len(b) - 44) / 4
	fmt.Printf("Successfully wrote %s (%d frames, %.2fs)\n", output, frames, float64(frames)/render.SampleRate)
	return nil
}

func bouncePattern(ctx context.Context, cfg *preset.Config, fetcher sampler.Fetcher, bars int, decayDBFS, maxTail float64, output string, logger *slog.Logger) error {
	clock := sched.NewManual()
	sc := cfg.SessionConfig()
	sc.Fetcher = fetcher
	sc.Scheduler = clock
	sc.Logger = logger
	s, err := session.New(sc)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := cfg.Apply(ctx, s); err != nil {
		return err
	}
	s.WaitLoads()
	for n := range cfg.Pads {
		if st, _ := s.Bank().State(n); st == sampler.PadFailed {
			fmt.Fprintf(os.Stderr, "Warning: pad %d failed to load: %v\n", n, s.Bank().Err(n))
		}
	}

	sampleRate := s.SampleRate()
	numChannels := 2
	blockSize := sampler.BlockSize
	step := sequencer.StepPeriod(s.BPM())
	// The first tick lands one period after start, so run one extra step.
	patternFrames := int(float64(sampleRate) * (time.Duration(bars*sequencer.Steps+1) * step).Seconds())
	maxFrames := patternFrames + int(float64(sampleRate)*maxTail)

	fmt.Printf("Bouncing %d bars at %.1f BPM, %d Hz...\n", bars, s.BPM(), sampleRate)
	s.PlaySequencer()

	thresholdLin := math.Pow(10.0, decayDBFS/20.0)
	samples := make([]float32, 0, patternFrames*numChannels)
	framesRendered := 0
	for framesRendered < maxFrames {
		if err := ctx.Err(); err != nil {
			return err
		}
		if framesRendered >= patternFrames && s.Clock().Playing() {
			s.StopSequencer()
		}
		target := time.Duration(float64(framesRendered+blockSize) / float64(sampleRate) * float64(time.Second))
		clock.Advance(target - clock.Now())

		block := s.Process(blockSize)
		samples = append(samples, block...)
		framesRendered += blockSize

		if framesRendered > patternFrames && len(s.Bank().Playing()) == 0 && stereoRMS(block) < thresholdLin {
			break
		}
	}

	// Write to WAV file
	file, err := os.Create(output)
	if err != nil {
		return err
	}
	defer file.Close()

	// Create encoder with 16-bit PCM (audioFormat = 1)
	encoder := wav.NewEncoder(file, sampleRate, 16, numChannels, 1)
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: numChannels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := encoder.Write(buf); err != nil {
		return fmt.Errorf("writing WAV file: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return err
	}

	fmt.Printf("Successfully wrote %s (%d frames)\n", output, framesRendered)
	return nil
}

func stereoRMS(interleaved []float32) float64 {
	if len(interleaved) == 0 {
		return 0
	}
	var sum float64
	for _, s := range interleaved {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(interleaved)))
}
