package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/preset"
	"github.com/cwbudde/algo-sampler/sampler"
)

func main() {
	input := flag.String("input", "", "Audio file to analyse and slice (WAV or MP3)")
	backend := flag.String("backend", "http://localhost:8000", "Analysis backend base URL")
	bpm := flag.Float64("bpm", 0, "Tempo override (0 = detected)")
	timeSig := flag.String("time-signature", "", "Time signature override (empty = detected)")
	measures := flag.Float64("measures", 1, "Measures per slice")
	kickOffset := flag.Float64("kick-offset", 0, "Kick offset in milliseconds")
	kicks := flag.Bool("kicks", false, "Extract kicks from each slice and assign those instead")
	enhancement := flag.Int("enhancement", 50, "Kick enhancement level [0,100]")
	download := flag.String("download", "", "Download slice audio into this directory and reference local files")
	output := flag.String("output", "", "Preset JSON output path (default stdout)")
	verbose := flag.Bool("v", false, "Verbose logging")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := analysis.NewClient(*backend, nil)
	client.Logger = logger

	f, err := os.Open(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	an, err := client.Analyze(ctx, filepath.Base(*input), f)
	f.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error analysing %q: %v\n", *input, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Detected %.1f BPM, %s, key %s, %.1f s\n", an.BPM, an.TimeSignature, an.Key, an.Duration)

	req := analysis.SliceRequest{
		Filename:         an.Filename,
		BPM:              an.BPM,
		TimeSignature:    an.TimeSignature,
		MeasuresPerSlice: *measures,
		KickOffsetMS:     *kickOffset,
	}
	if *bpm > 0 {
		req.BPM = *bpm
	}
	if *timeSig != "" {
		req.TimeSignature = *timeSig
	}
	res, err := client.Slice(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error slicing: %v\n", err)
		os.Exit(1)
	}
	if len(res.Slices) > sampler.NumPads {
		logger.Info("more slices than pads; extra slices are not assigned", "slices", len(res.Slices))
	}

	urls, err := padURLs(ctx, client, res, *kicks, *enhancement, *download)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	out := buildPreset(*backend, req.BPM, res, urls)
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	b = append(b, '\n')
	if *output == "" {
		os.Stdout.Write(b)
		return
	}
	if err := os.WriteFile(*output, b, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %q: %v\n", *output, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "Wrote %s (%d pads)\n", *output, len(out.Pads))
}

// padURLs resolves the audio URL of each of the first NumPads slices,
// running kick extraction and downloads concurrently.
func padURLs(ctx context.Context, c *analysis.Client, res *analysis.SliceResult, kicks bool, enhancement int, dir string) ([]string, error) {
	n := min(len(res.Slices), sampler.NumPads)
	urls := make([]string, n)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := 0; i < n; i++ {
		sl := res.Slices[i]
		g.Go(func() error {
			u := c.DownloadURL(res.JobID, sl.Filename)
			name := sl.Filename
			if kicks {
				kr, err := c.ExtractKicks(ctx, res.JobID, sl.Filename, enhancement)
				if err != nil {
					return fmt.Errorf("slice %d: %w", sl.Measure, err)
				}
				if !kr.Success {
					return fmt.Errorf("slice %d: kick extraction failed: %s", sl.Measure, kr.Message)
				}
				u = c.KicksURL(res.JobID, kr.KicksFilename)
				name = kr.KicksFilename
			}
			if dir != "" {
				data, err := c.Fetch(ctx, u)
				if err != nil {
					return err
				}
				u = filepath.Join(dir, name)
				if err := os.WriteFile(u, data, 0o644); err != nil {
					return err
				}
			}
			urls[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}

func buildPreset(backend string, bpm float64, res *analysis.SliceResult, urls []string) *preset.File {
	f := &preset.File{
		BPM:        &bpm,
		BackendURL: backend,
		Pads:       make(map[string]preset.PadSetting, len(urls)),
	}
	for i, u := range urls {
		sl := res.Slices[i]
		f.Pads[strconv.Itoa(i+1)] = preset.PadSetting{
			URL:       u,
			Measure:   &sl.Measure,
			StartTime: &sl.StartTime,
			EndTime:   &sl.EndTime,
		}
	}
	return f
}
