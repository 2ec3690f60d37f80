package pipeline

import (
	"context"
	"errors"
)

// Engine failure classes. They are configuration or dependency problems the
// user can correct, so callers report them instead of retrying.
var (
	ErrConversionFailed         = errors.New("conversion failed")
	ErrTranscriptionUnavailable = errors.New("transcription unavailable")
	ErrDiarizationUnavailable   = errors.New("diarization unavailable")
)

// Error is a classified pipeline failure. errors.Is matches both Kind and
// the underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify wraps an engine failure in kind. Cancellation is returned as is
// since it says nothing about the engine.
func classify(kind error, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}
