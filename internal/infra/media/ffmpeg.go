// Package media converts audio files with the ffmpeg binary.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

var ErrNotFound = errors.New("ffmpeg not found")

// ConversionError describes an input ffmpeg could not convert.
type ConversionError struct {
	Input  string
	Reason string
	Stderr string
}

func (e *ConversionError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("converting %s: %s: %s", e.Input, e.Reason, e.Stderr)
	}
	return fmt.Sprintf("converting %s: %s", e.Input, e.Reason)
}

type FFmpeg struct {
	path string
}

func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path}
}

// Check verifies the binary can be executed.
func (f *FFmpeg) Check(ctx context.Context) error {
	if _, err := exec.LookPath(f.path); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, f.path)
	}
	if err := exec.CommandContext(ctx, f.path, "-hide_banner", "-version").Run(); err != nil {
		return fmt.Errorf("running %s: %w", f.path, err)
	}
	return nil
}

// ToWAV decodes any clip into 16 kHz mono 16-bit PCM.
func (f *FFmpeg) ToWAV(ctx context.Context, src, dst string) error {
	return f.convert(ctx, src, dst, "-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le", "-f", "wav")
}

// ToVoice encodes audio as OGG/Opus, the format chat clients play as a voice note.
func (f *FFmpeg) ToVoice(ctx context.Context, src, dst string) error {
	return f.convert(ctx, src, dst, "-c:a", "libopus", "-b:a", "32k", "-vbr", "on", "-f", "ogg")
}

func (f *FFmpeg) convert(ctx context.Context, src, dst string, outputArgs ...string) error {
	info, err := os.Stat(src)
	if err != nil {
		return &ConversionError{Input: src, Reason: "input missing"}
	}
	if info.Size() == 0 {
		return &ConversionError{Input: src, Reason: "input is empty"}
	}

	if _, err := exec.LookPath(f.path); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, f.path)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-y", "-i", src, "-vn"}
	args = append(args, outputArgs...)
	args = append(args, dst)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, f.path, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("converting %s: %w", src, ctx.Err())
		}
		return &ConversionError{
			Input:  src,
			Reason: err.Error(),
			Stderr: strings.TrimSpace(stderr.String()),
		}
	}

	if info, err := os.Stat(dst); err != nil || info.Size() == 0 {
		return &ConversionError{Input: src, Reason: "ffmpeg produced no output"}
	}
	return nil
}
