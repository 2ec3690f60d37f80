package stt

import (
	"context"
	"fmt"

	"github.com/loqalabs/loqa-minutes/internal/media"
	"github.com/loqalabs/loqa-minutes/internal/protocol"
)

const (
	mockFrameSeconds = 0.5
	mockPeakFloor    = 500
)

type mockRecognizer struct{}

// NewMockRecognizer reports one segment per run of non-silent audio.
// Silent input yields an empty transcript.
func NewMockRecognizer() Recognizer {
	return &mockRecognizer{}
}

func (m *mockRecognizer) Transcribe(ctx context.Context, req Request) (protocol.Transcript, error) {
	buf, err := media.ReadSamples(req.AudioPath)
	if err != nil {
		return protocol.Transcript{}, fmt.Errorf("mock stt: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return protocol.Transcript{}, err
	}

	var raw rawTranscript
	for i, span := range media.VoicedSpans(buf, mockFrameSeconds, mockPeakFloor) {
		text := fmt.Sprintf("[speech %d]", i+1)
		raw.Segments = append(raw.Segments, rawSegment{
			Start: seconds(span.Start),
			End:   seconds(span.End),
			Text:  &text,
		})
	}
	return normalize(raw, req.Language), nil
}
