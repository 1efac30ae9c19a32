package audioio

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// decodeWAV reads a WAV file with go-audio/wav and downmixes to mono,
// normalizing integer PCM samples to [-1.0, 1.0].
//
// Grounded on kshitijk4poor-shazam-golang/pkg/audio/wav_loader.go.
func decodeWAV(path string) (Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signal{}, fmt.Errorf("opening wav file: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return Signal{}, fmt.Errorf("invalid WAV file")
	}

	format := decoder.Format()
	channels := format.NumChannels
	sampleRate := int(format.SampleRate)

	decoder.FwdToPCM()
	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Signal{}, fmt.Errorf("reading PCM data: %w", err)
	}

	maxValue := math.Pow(2, float64(decoder.BitDepth-1))
	interleaved := make([]float64, len(buf.Data))
	for i, s := range buf.Data {
		interleaved[i] = float64(s) / maxValue
	}

	return Signal{
		Samples:    downmixToMono(interleaved, channels),
		SampleRate: sampleRate,
	}, nil
}
