package playback

import (
	"errors"
	"fmt"
)

var (
	ErrClosed             = errors.New("playback controller is closed")
	ErrQualityUnavailable = errors.New("quality is not available for this source")
)

type MediaErrorKind string

const (
	MediaFormatUnsupported MediaErrorKind = "FORMAT_UNSUPPORTED"
	MediaNetwork           MediaErrorKind = "NETWORK"
	MediaAborted           MediaErrorKind = "ABORTED"
	MediaNotFound          MediaErrorKind = "NOT_FOUND"
	MediaTimeout           MediaErrorKind = "TIMEOUT"
)

// MediaError is recorded in State.Error when a load fails; it is never
// returned from transport operations.
type MediaError struct {
	Kind   MediaErrorKind `json:"kind"`
	Source string         `json:"source,omitempty"`
	Err    error          `json:"-"`
}

func (e *MediaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("media error %s: %v", e.Kind, e.Err)
	}
	return "media error " + string(e.Kind)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// Is matches any MediaError of the same kind.
func (e *MediaError) Is(target error) bool {
	t, ok := target.(*MediaError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether showing a retry action makes sense.
func (e *MediaError) Retryable() bool {
	return e.Kind != MediaFormatUnsupported && e.Kind != MediaNotFound
}

func newMediaError(kind MediaErrorKind, source string, err error) *MediaError {
	return &MediaError{Kind: kind, Source: source, Err: err}
}

type ValidationErrorKind string

const (
	InvalidSeekTarget ValidationErrorKind = "INVALID_SEEK_TARGET"
	InvalidRate       ValidationErrorKind = "INVALID_RATE"
)

type ValidationError struct {
	Kind  ValidationErrorKind
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error %s: %v", e.Kind, e.Value)
}

func (e *ValidationError) Is(target error) bool {
	t, ok := target.(*ValidationError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}
