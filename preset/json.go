package preset

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-sampler/analysis"
	"github.com/cwbudde/algo-sampler/sampler"
	"github.com/cwbudde/algo-sampler/sequencer"
	"github.com/cwbudde/algo-sampler/session"
)

// File is the JSON schema for sampler presets.
type File struct {
	SampleRate   *int                  `json:"sample_rate"`
	BPM          *float64              `json:"bpm"`
	LoopMode     *bool                 `json:"loop_mode"`
	PlaybackRate *float64              `json:"playback_rate"`
	Bypass       *bool                 `json:"bypass"`
	BackendURL   string                `json:"backend_url"`
	ReverbIRPath string                `json:"reverb_ir_path"`
	Effects      *EffectsSetting       `json:"effects"`
	Pads         map[string]PadSetting `json:"pads"`
	Patterns     map[string]string     `json:"patterns"`
}

// EffectsSetting is a partial effects chain override.
type EffectsSetting struct {
	FilterType      *string  `json:"filter_type"`
	FilterFrequency *float64 `json:"filter_frequency"`
	FilterQ         *float64 `json:"filter_q"`
	DelayTime       *float64 `json:"delay_time"`
	DelayFeedback   *float64 `json:"delay_feedback"`
	DelayMix        *float64 `json:"delay_mix"`
	ReverbMix       *float64 `json:"reverb_mix"`
	MasterVolume    *float64 `json:"master_volume"`
}

// PadSetting assigns audio to one pad.
type PadSetting struct {
	URL       string   `json:"url"`
	Measure   *int     `json:"measure"`
	StartTime *float64 `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
}

// Config is a fully resolved preset.
type Config struct {
	SampleRate   int
	BPM          float64
	LoopMode     bool
	PlaybackRate float64
	Bypass       bool
	BackendURL   string
	ReverbIRPath string
	Effects      sampler.EffectParams
	Pads         map[int]sampler.PadAssignment
	Patterns     map[int]sequencer.Pattern
}

// NewDefaultConfig returns the startup configuration of a session.
func NewDefaultConfig() *Config {
	return &Config{
		SampleRate:   44100,
		BPM:          sequencer.DefaultBPM,
		PlaybackRate: 1,
		Bypass:       true,
		Effects:      sampler.DefaultEffectParams(),
		Pads:         make(map[int]sampler.PadAssignment),
		Patterns:     make(map[int]sequencer.Pattern),
	}
}

// LoadJSON loads a preset JSON file and applies it on top of the defaults.
// Relative file paths resolve against the preset's directory.
func LoadJSON(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	c := NewDefaultConfig()
	if err := ApplyFile(c, &f); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	if c.ReverbIRPath != "" && !filepath.IsAbs(c.ReverbIRPath) {
		c.ReverbIRPath = filepath.Clean(filepath.Join(base, c.ReverbIRPath))
	}
	for n, a := range c.Pads {
		if isLocalPath(a.URL) && !filepath.IsAbs(a.URL) {
			a.URL = filepath.Clean(filepath.Join(base, a.URL))
			c.Pads[n] = a
		}
	}
	return c, nil
}

func isLocalPath(u string) bool {
	return !strings.Contains(u, "://")
}

// ApplyFile applies a parsed preset file onto an existing config.
func ApplyFile(dst *Config, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination config")
	}
	if f == nil {
		return nil
	}

	if f.SampleRate != nil {
		if *f.SampleRate < 8000 || *f.SampleRate > 192000 {
			return fmt.Errorf("sample_rate must be in [8000,192000]")
		}
		dst.SampleRate = *f.SampleRate
	}
	if f.BPM != nil {
		if *f.BPM <= 0 || *f.BPM > sequencer.MaxBPM {
			return fmt.Errorf("bpm must be in (0,%g]", sequencer.MaxBPM)
		}
		dst.BPM = *f.BPM
	}
	if f.LoopMode != nil {
		dst.LoopMode = *f.LoopMode
	}
	if f.PlaybackRate != nil {
		if *f.PlaybackRate < sampler.MinPlaybackRate || *f.PlaybackRate > sampler.MaxPlaybackRate {
			return fmt.Errorf("playback_rate must be in [%g,%g]", sampler.MinPlaybackRate, sampler.MaxPlaybackRate)
		}
		dst.PlaybackRate = *f.PlaybackRate
	}
	if f.Bypass != nil {
		dst.Bypass = *f.Bypass
	}
	if f.BackendURL != "" {
		dst.BackendURL = strings.TrimRight(strings.TrimSpace(f.BackendURL), "/")
	}
	if f.ReverbIRPath != "" {
		dst.ReverbIRPath = strings.TrimSpace(f.ReverbIRPath)
	}
	if f.Effects != nil {
		if err := applyEffects(&dst.Effects, f.Effects); err != nil {
			return err
		}
	}
	if err := applyPads(dst, f.Pads); err != nil {
		return err
	}
	return applyPatterns(dst, f.Patterns)
}

func applyEffects(dst *sampler.EffectParams, e *EffectsSetting) error {
	p := *dst
	if e.FilterType != nil {
		ft, err := sampler.ParseFilterType(*e.FilterType)
		if err != nil {
			return fmt.Errorf("effects.filter_type: %w", err)
		}
		p.FilterType = ft
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.FilterFrequency, e.FilterFrequency)
	set(&p.FilterQ, e.FilterQ)
	set(&p.DelayTime, e.DelayTime)
	set(&p.DelayFeedback, e.DelayFeedback)
	set(&p.DelayMix, e.DelayMix)
	set(&p.ReverbMix, e.ReverbMix)
	set(&p.MasterVolume, e.MasterVolume)
	if err := p.Validate(); err != nil {
		return fmt.Errorf("effects: %w", err)
	}
	*dst = p
	return nil
}

func sortedPadKeys[V any](m map[string]V) ([]int, error) {
	keys := make([]int, 0, len(m))
	for k := range m {
		n, err := strconv.Atoi(k)
		if err != nil || sampler.CheckPad(n) != nil {
			return nil, fmt.Errorf("invalid pad key %q (expected 1..%d)", k, sampler.NumPads)
		}
		keys = append(keys, n)
	}
	sort.Ints(keys)
	return keys, nil
}

func applyPads(dst *Config, pads map[string]PadSetting) error {
	if len(pads) == 0 {
		return nil
	}
	keys, err := sortedPadKeys(pads)
	if err != nil {
		return err
	}
	if dst.Pads == nil {
		dst.Pads = make(map[int]sampler.PadAssignment)
	}
	for _, n := range keys {
		ps := pads[strconv.Itoa(n)]
		url := strings.TrimSpace(ps.URL)
		if url == "" {
			return fmt.Errorf("pads[%d].url must not be empty", n)
		}
		slice := analysis.Slice{Measure: n, Filename: filepath.Base(url)}
		if ps.Measure != nil {
			slice.Measure = *ps.Measure
		}
		if ps.StartTime != nil {
			slice.StartTime = *ps.StartTime
		}
		if ps.EndTime != nil {
			if *ps.EndTime < slice.StartTime {
				return fmt.Errorf("pads[%d].end_time must be >= start_time", n)
			}
			slice.EndTime = *ps.EndTime
		}
		dst.Pads[n] = sampler.PadAssignment{Pad: n, Slice: slice, URL: url}
	}
	return nil
}

func applyPatterns(dst *Config, patterns map[string]string) error {
	if len(patterns) == 0 {
		return nil
	}
	keys, err := sortedPadKeys(patterns)
	if err != nil {
		return err
	}
	if dst.Patterns == nil {
		dst.Patterns = make(map[int]sequencer.Pattern)
	}
	for _, n := range keys {
		pat, err := ParsePattern(patterns[strconv.Itoa(n)])
		if err != nil {
			return fmt.Errorf("patterns[%d]: %w", n, err)
		}
		dst.Patterns[n] = pat
	}
	return nil
}

// ParsePattern reads a 16-character step string: 'x', 'X' or '1' arm a step,
// '-', '.' or '0' leave it off. Spaces and '|' are ignored.
func ParsePattern(s string) (sequencer.Pattern, error) {
	var pat sequencer.Pattern
	step := 0
	for _, r := range s {
		switch r {
		case ' ', '|':
			continue
		case 'x', 'X', '1':
			if step < sequencer.Steps {
				pat[step] = true
			}
		case '-', '.', '0':
		default:
			return pat, fmt.Errorf("invalid step character %q", r)
		}
		step++
	}
	if step != sequencer.Steps {
		return pat, fmt.Errorf("expected %d steps, got %d", sequencer.Steps, step)
	}
	return pat, nil
}

// FormatPattern is the inverse of ParsePattern.
func FormatPattern(p sequencer.Pattern) string {
	var sb strings.Builder
	for _, on := range p {
		if on {
			sb.WriteByte('x')
		} else {
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// SessionConfig returns the session construction options this preset describes.
func (c *Config) SessionConfig() session.Config {
	fx := c.Effects
	bypass := c.Bypass
	return session.Config{
		SampleRate: c.SampleRate,
		BPM:        c.BPM,
		Effects:    &fx,
		Bypass:     &bypass,
		ReverbIR:   c.ReverbIRPath,
	}
}

// Apply pushes the pad assignments, patterns and trigger settings into s.
func (c *Config) Apply(ctx context.Context, s *session.Session) error {
	s.SetLoopMode(c.LoopMode)
	if err := s.SetPlaybackRate(c.PlaybackRate); err != nil {
		return err
	}
	pads := make([]int, 0, len(c.Pads))
	for n := range c.Pads {
		pads = append(pads, n)
	}
	sort.Ints(pads)
	for _, n := range pads {
		a := c.Pads[n]
		if err := s.Assign(ctx, n, a.Slice, a.URL); err != nil {
			return fmt.Errorf("pad %d: %w", n, err)
		}
	}
	for n, pat := range c.Patterns {
		if err := s.Patterns().SetPattern(n, pat); err != nil {
			return err
		}
	}
	return nil
}
