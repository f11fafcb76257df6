package sequencer

import (
	"context"
	"fmt"

	"github.com/cwbudde/algo-sampler/internal/audiofile"
	"github.com/cwbudde/algo-sampler/sampler"
)

// newBankWithPads returns a dry bank whose listed pads all play the same
// stereo interleaved PCM16 samples.
func newBankWithPads(samples []int, pads ...int) (*sampler.Bank, error) {
	data, err := audiofile.EncodePCM16(samples, 2, 44100)
	if err != nil {
		return nil, err
	}
	fetch := sampler.FetcherFunc(func(context.Context, string) ([]byte, error) { return data, nil })
	bank := sampler.NewBank(sampler.NewBufferCache(fetch, 44100, nil), nil, nil)
	for _, pad := range pads {
		url := fmt.Sprintf("mem://%d.wav", pad)
		if err := bank.Assign(context.Background(), sampler.PadAssignment{Pad: pad, URL: url}); err != nil {
			return nil, err
		}
	}
	bank.WaitLoads()
	return bank, nil
}
