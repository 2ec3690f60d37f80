package stt

import (
	"context"
	"fmt"

	"github.com/loqalabs/loqa-minutes/internal/config"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

// Request identifies the audio to transcribe and how.
type Request struct {
	AudioPath string
	Model     string
	Language  string
}

// Recognizer abstracts STT backends. Implementations return normalized
// transcripts: trimmed text and chronologically sorted segments.
type Recognizer interface {
	Transcribe(ctx context.Context, req Request) (protocol.Transcript, error)
}

// New builds the recognizer selected by cfg.Mode.
func New(cfg config.STTConfig) (Recognizer, error) {
	switch cfg.Mode {
	case "exec":
		return NewExecRecognizer(cfg)
	case "mock", "":
		return NewMockRecognizer(), nil
	default:
		return nil, fmt.Errorf("unknown stt mode %q", cfg.Mode)
	}
}
