package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-sampler/internal/audiofile"
	"github.com/cwbudde/algo-sampler/irsynth"
)

func main() {
	cfg := irsynth.DefaultRoomConfig()

	output := flag.String("output", "assets/ir/room_44k.wav", "Output WAV path")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate")
	flag.Float64Var(&cfg.DurationS, "duration", cfg.DurationS, "IR length in seconds")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flag.Float64Var(&cfg.DecayPower, "decay-power", cfg.DecayPower, "Envelope exponent of (1 - t/T)")
	flag.IntVar(&cfg.EarlyCount, "early", cfg.EarlyCount, "Number of early reflections")
	flag.Float64Var(&cfg.EarlyLevel, "early-level", cfg.EarlyLevel, "Early reflection level")
	flag.Float64Var(&cfg.StereoWidth, "stereo-width", cfg.StereoWidth, "Stereo decorrelation width")
	flag.Float64Var(&cfg.FadeOutS, "fade", cfg.FadeOutS, "Cosine fade-out length in seconds")
	flag.BoolVar(&cfg.Normalize, "normalize", cfg.Normalize, "Scale to the reference wet energy")
	flag.Parse()

	left, right, err := irsynth.GenerateRoom(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ir-synth error: %v\n", err)
		os.Exit(1)
	}

	if err := audiofile.WriteStereoWAVLR(*output, left, right, cfg.SampleRate); err != nil {
		fmt.Fprintf(os.Stderr, "wav write error: %v\n", err)
		os.Exit(1)
	}

	peak, rms := stats(left, right)
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", cfg.SampleRate, cfg.DurationS, len(left))
	fmt.Printf("Peak: %.6f, RMS: %.6f\n", peak, rms)
}

func stats(left []float32, right []float32) (peak float64, rms float64) {
	if len(left) == 0 || len(right) == 0 {
		return 0, 0
	}
	var sum float64
	n := len(left) * 2
	for i := 0; i < len(left); i++ {
		lv := float64(left[i])
		rv := float64(right[i])
		peak = math.Max(peak, math.Max(math.Abs(lv), math.Abs(rv)))
		sum += lv*lv + rv*rv
	}
	return peak, math.Sqrt(sum / float64(n))
}
