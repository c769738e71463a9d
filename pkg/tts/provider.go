// Package tts defines the synthesis backends that turn narration lines into
// audio files.
package tts

import (
	"context"
	"errors"
	"fmt"

	"authflow/pkg/voice"
)

// MinAudioSize is the smallest output file accepted as real audio. Anything
// shorter is a truncated or empty response.
const MinAudioSize = 1024

// Request is one line to synthesize.
type Request struct {
	Text   string
	Voice  string // provider voice ID; empty selects the provider default
	Locale string
	Rate   float64 // multiplier, 1.0 is the provider's normal pace
	Pitch  float64 // multiplier, 1.0 is the voice's normal pitch
	Volume float64 // 0..1
}

// Provider is a speech backend.
type Provider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Synthesize writes audio for req to outputPath and returns its format
	// ("mp3" or "wav").
	Synthesize(ctx context.Context, req Request, outputPath string) (string, error)

	// Voices returns the voices the provider currently offers.
	Voices(ctx context.Context) ([]voice.Descriptor, error)
}

// FatalError is a failure of the backend itself rather than of one line:
// rejected credentials, quota, an unreachable endpoint. Failover moves to the
// next provider when it sees one anywhere in the chain.
type FatalError struct {
	StatusCode int // HTTP status, 0 when no response was received
	Message    string
	Err        error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *FatalError) Unwrap() error { return e.Err }

// NewFatalError returns a FatalError without an underlying cause.
func NewFatalError(statusCode int, message string) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: message}
}

// Fatalf wraps err as a FatalError with a formatted message.
func Fatalf(statusCode int, err error, format string, args ...any) *FatalError {
	return &FatalError{StatusCode: statusCode, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsFatalError reports whether err's chain holds a FatalError.
func IsFatalError(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// StatusOf returns the status code of the first FatalError in err's chain,
// or 0.
func StatusOf(err error) int {
	var fe *FatalError
	if errors.As(err, &fe) {
		return fe.StatusCode
	}
	return 0
}
