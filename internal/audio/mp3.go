package audio

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"trackmeta/internal/services"
)

// go-mp3 always yields interleaved 16-bit little-endian stereo.
const mp3FrameBytes = 4

func mp3Duration(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, services.Wrap(services.ErrDecode, "audio", "mp3", path, err)
	}
	defer f.Close()
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, services.Wrap(services.ErrDecode, "audio", "mp3", "open decoder", err)
	}
	if decoder.SampleRate() <= 0 || decoder.Length() <= 0 {
		return 0, services.Wrap(services.ErrDecode, "audio", "mp3", "unknown length", nil)
	}
	return float64(decoder.Length()/mp3FrameBytes) / float64(decoder.SampleRate()), nil
}

func decodeMP3(ctx context.Context, path string, sampleRate int, span Span) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "audio", "mp3", path, err)
	}
	defer f.Close()
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, services.Wrap(services.ErrDecode, "audio", "mp3", "open decoder", err)
	}
	native := decoder.SampleRate()
	if native <= 0 {
		return nil, services.Wrap(services.ErrDecode, "audio", "mp3", "invalid sample rate", nil)
	}

	startFrame := int64(span.Offset * float64(native))
	if startFrame > 0 {
		if _, err := decoder.Seek(startFrame*mp3FrameBytes, io.SeekStart); err != nil {
			return nil, services.Wrap(services.ErrDecode, "audio", "mp3", "seek", err)
		}
	}
	maxFrames := int64(-1)
	if span.Length > 0 {
		maxFrames = int64(span.Length * float64(native))
	}

	mono := make([]float64, 0, native*30)
	buf := make([]byte, 16*1024)
	var carry []byte
	for maxFrames < 0 || int64(len(mono)) < maxFrames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, readErr := decoder.Read(buf)
		chunk := append(carry, buf[:n]...)
		whole := len(chunk) - len(chunk)%mp3FrameBytes
		for i := 0; i < whole; i += mp3FrameBytes {
			left := int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8)
			right := int16(uint16(chunk[i+2]) | uint16(chunk[i+3])<<8)
			mono = append(mono, (float64(left)+float64(right))/2/32768.0)
		}
		carry = append(carry[:0], chunk[whole:]...)
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, services.Wrap(services.ErrDecode, "audio", "mp3", "read", readErr)
		}
	}
	if maxFrames >= 0 && int64(len(mono)) > maxFrames {
		mono = mono[:maxFrames]
	}
	if len(mono) == 0 {
		return nil, services.Wrap(services.ErrDecode, "audio", "mp3", "decoder produced no samples", nil)
	}
	return Resample(mono, native, sampleRate), nil
}
