package audiofile

import (
	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
)

// Resample converts in from fromRate to toRate. Equal rates return in unchanged.
func Resample(in []float32, fromRate int, toRate int) ([]float32, error) {
	if fromRate == toRate || len(in) == 0 {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}

	in64 := make([]float64, len(in))
	for i, v := range in {
		in64[i] = float64(v)
	}
	out64 := r.Process(in64)
	out := make([]float32, len(out64))
	for i, v := range out64 {
		out[i] = float32(v)
	}
	return out, nil
}

// ResampleTo converts every channel of d to sampleRate.
func (d *Decoded) ResampleTo(sampleRate int) error {
	if d.SampleRate == sampleRate {
		return nil
	}
	for c, ch := range d.Channels {
		out, err := Resample(ch, d.SampleRate, sampleRate)
		if err != nil {
			return err
		}
		d.Channels[c] = out
	}
	d.SampleRate = sampleRate
	return nil
}
