package audioio

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/mewkiz/flac"
)

// decodeFLAC reads a FLAC file with mewkiz/flac and downmixes to mono,
// normalizing PCM samples to [-1.0, 1.0].
//
// Grounded on kshitijk4poor-shazam-golang/pkg/audio/flac_loader.go.
func decodeFLAC(path string) (Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signal{}, fmt.Errorf("opening flac file: %w", err)
	}
	defer f.Close()

	stream, err := flac.New(f)
	if err != nil {
		return Signal{}, fmt.Errorf("creating flac decoder: %w", err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	sampleRate := int(info.SampleRate)
	maxValue := math.Pow(2, float64(info.BitsPerSample-1)) - 1

	interleaved := make([]float64, 0, info.NSamples*uint64(channels))
	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Signal{}, fmt.Errorf("parsing flac frame: %w", err)
		}

		nSamples := len(frame.Subframes[0].Samples)
		for j := 0; j < nSamples; j++ {
			for i := 0; i < channels; i++ {
				interleaved = append(interleaved, float64(frame.Subframes[i].Samples[j])/maxValue)
			}
		}
	}

	return Signal{
		Samples:    downmixToMono(interleaved, channels),
		SampleRate: sampleRate,
	}, nil
}
