package whisperx

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// buildClipArgs returns ffmpeg arguments that write the first audio stream of
// source, from startSec for durationSec, as mono 16 kHz PCM WAV.
func buildClipArgs(source string, startSec, durationSec int, dest string) []string {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-nostdin"}
	if startSec > 0 {
		args = append(args, "-ss", strconv.Itoa(startSec))
	}
	if durationSec > 0 {
		args = append(args, "-t", strconv.Itoa(durationSec))
	}
	return append(args,
		"-i", source,
		"-map", "0:a:0",
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	)
}

// ExtractClip writes a WhisperX-ready clip of source to dest.
func ExtractClip(ctx context.Context, ffmpegBinary, source string, startSec, durationSec int, dest string) error {
	if startSec < 0 {
		return fmt.Errorf("extract clip: invalid start %d", startSec)
	}
	cmd := exec.CommandContext(ctx, ffmpegBinary, buildClipArgs(source, startSec, durationSec, dest)...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract clip: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
