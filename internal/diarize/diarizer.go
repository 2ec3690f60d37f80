package diarize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/media"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
	"github.com/mattn/go-shellwords"
)

// Diarizer reports speaker turns for a normalized WAV file, sorted by start.
type Diarizer interface {
	Diarize(ctx context.Context, audioPath string) ([]protocol.DiarizationSegment, error)
}

// New builds the diarizer selected by cfg.Mode.
func New(cfg config.DiarizationConfig) (Diarizer, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecDiarizer(cfg)
	case "mock", "":
		return NewMockDiarizer(), nil
	default:
		return nil, fmt.Errorf("unknown diarization mode %q", cfg.Mode)
	}
}

type execDiarizer struct {
	cmd       []string
	pipeline  string
	authToken string
}

// NewExecDiarizer runs an external pyannote helper that prints speaker turns
// as a JSON array (or an object with a "segments" array) on stdout.
func NewExecDiarizer(cfg config.DiarizationConfig) (Diarizer, error) {
	args, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse diarization command: %w", err)
	}
	if len(args) == 0 {
		return nil, errors.New("diarization command is empty")
	}
	return &execDiarizer{cmd: args, pipeline: cfg.Pipeline, authToken: cfg.AuthToken}, nil
}

func (d *execDiarizer) Diarize(ctx context.Context, audioPath string) ([]protocol.DiarizationSegment, error) {
	args := append([]string{}, d.cmd[1:]...)
	args = append(args, "--audio", audioPath)
	if d.pipeline != "" {
		args = append(args, "--pipeline", d.pipeline)
	}

	command := exec.CommandContext(ctx, d.cmd[0], args...)
	command.Env = os.Environ()
	if d.authToken != "" {
		command.Env = append(command.Env, "PYANNOTE_AUTH_TOKEN="+d.authToken)
	}
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	if err := command.Run(); err != nil {
		return nil, fmt.Errorf("diarization command failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return Decode(stdout.Bytes())
}

// Decode parses helper output and sorts turns by start.
func Decode(data []byte) ([]protocol.DiarizationSegment, error) {
	data = bytes.TrimSpace(data)
	var turns []protocol.DiarizationSegment
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Segments []protocol.DiarizationSegment `json:"segments"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("decode diarization response: %w", err)
		}
		turns = wrapped.Segments
	} else if err := json.Unmarshal(data, &turns); err != nil {
		return nil, fmt.Errorf("decode diarization response: %w", err)
	}

	out := make([]protocol.DiarizationSegment, 0, len(turns))
	for _, t := range turns {
		t.Speaker = strings.TrimSpace(t.Speaker)
		if t.End < t.Start {
			t.Start, t.End = t.End, t.Start
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

const (
	mockFrameSeconds = 0.25
	mockPeakFloor    = 500
	mockGapSeconds   = 1.5
)

type mockDiarizer struct{}

// NewMockDiarizer alternates between two speakers whenever a pause longer
// than 1.5s separates runs of non-silent audio.
func NewMockDiarizer() Diarizer { return mockDiarizer{} }

func (mockDiarizer) Diarize(ctx context.Context, audioPath string) ([]protocol.DiarizationSegment, error) {
	buf, err := media.ReadSamples(audioPath)
	if err != nil {
		return nil, fmt.Errorf("mock diarization: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spans := media.VoicedSpans(buf, mockFrameSeconds, mockPeakFloor)
	turns := make([]protocol.DiarizationSegment, 0, len(spans))
	speaker := 1
	for i, s := range spans {
		if i > 0 && s.Start-spans[i-1].End > mockGapSeconds {
			speaker = 3 - speaker
		}
		turns = append(turns, protocol.DiarizationSegment{
			Start:   s.Start,
			End:     s.End,
			Speaker: fmt.Sprintf("SPEAKER_%02d", speaker-1),
		})
	}
	return turns, nil
}
