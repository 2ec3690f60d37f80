package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/mattn/go-shellwords"
)

// TargetSampleRate is the sample rate every recording is normalized to.
const TargetSampleRate = 16000

// Converter turns an arbitrary audio or video file into mono 16 kHz PCM WAV.
type Converter interface {
	Convert(ctx context.Context, input, output string) error
}

type ffmpegConverter struct {
	cmd []string
}

// NewFFmpegConverter parses command (usually just "ffmpeg") into argv.
func NewFFmpegConverter(command string) (Converter, error) {
	args, err := shellwords.NewParser().Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse converter command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("converter command is empty")
	}
	return &ffmpegConverter{cmd: args}, nil
}

func (c *ffmpegConverter) Convert(ctx context.Context, input, output string) error {
	if filepath.Clean(input) == filepath.Clean(output) {
		return fmt.Errorf("converter output %s would overwrite its input", output)
	}
	base, err := exec.LookPath(c.cmd[0])
	if err != nil {
		return fmt.Errorf("%s not found on PATH; install FFmpeg and make sure it is available: %w", c.cmd[0], err)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	args := append([]string{}, c.cmd[1:]...)
	args = append(args,
		"-y",
		"-i", input,
		"-vn",
		"-ac", "1",
		"-ar", fmt.Sprint(TargetSampleRate),
		"-c:a", "pcm_s16le",
		output,
	)
	command := exec.CommandContext(ctx, base, args...)
	var stderr bytes.Buffer
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	info, err := Probe(output)
	if err != nil {
		return fmt.Errorf("ffmpeg output unreadable: %w", err)
	}
	if info.Channels != 1 || info.SampleRate != TargetSampleRate || info.BitDepth != 16 {
		return fmt.Errorf("ffmpeg output has unexpected format %d ch / %d Hz / %d bit",
			info.Channels, info.SampleRate, info.BitDepth)
	}
	return nil
}
