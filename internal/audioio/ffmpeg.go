package audioio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// decodeViaFFmpeg transcodes mp3/ogg/m4a (anything without a native decoder
// in this package) to a 16-bit PCM mono WAV at targetSampleRate, then
// decodes that WAV natively.
//
// Grounded on tefkah-seek-tune/server/wav/convert.go's ConvertToWAV.
func decodeViaFFmpeg(ctx context.Context, path string, targetSampleRate int) (Signal, error) {
	tmpDir := os.TempDir()
	outPath := filepath.Join(tmpDir, fmt.Sprintf("audiomark_%d%s.wav", time.Now().UnixNano(), filepath.Base(path)))
	defer os.Remove(outPath)

	rate := targetSampleRate
	if rate <= 0 {
		rate = 22050
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-i", path,
		"-c", "pcm_s16le",
		"-ar", strconv.Itoa(rate),
		"-ac", "1",
		outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return Signal{}, fmt.Errorf("ffmpeg transcode failed: %w, output: %s", err, strings.TrimSpace(string(output)))
	}

	return decodeWAV(outPath)
}

// Duration returns the duration in seconds of any audio file by calling
// ffprobe, without a full decode. Nothing in this module calls it; bulk
// registration sizes its progress bar by file count.
//
// Grounded on tefkah-seek-tune/server/wav/convert.go's GetAudioDuration.
func Duration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_entries", "format=duration",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration query failed: %w", err)
	}

	result := gjson.GetBytes(out, "format.duration")
	if !result.Exists() {
		return 0, fmt.Errorf("ffprobe output missing format.duration: %s", strings.TrimSpace(string(out)))
	}
	return result.Float(), nil
}
