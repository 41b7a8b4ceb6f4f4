package playback

import (
	"context"
	"errors"
	"fmt"
)

// Voice is a synthesis voice offered by an Engine.
type Voice struct {
	Name    string
	Lang    string
	Default bool
}

// Utterance is one request to speak a text.
type Utterance struct {
	Trigger TriggerID
	Text    string
	// Voice is nil when no Spanish voice is available; Lang then carries the
	// default locale tag.
	Voice  *Voice
	Lang   string
	Rate   float64
	Pitch  float64
	Volume float64
}

// Engine is a text-to-speech backend.
type Engine interface {
	// Voices lists the voices the engine can use.
	Voices(ctx context.Context) ([]Voice, error)
	// Speak starts speaking u and returns once playback has started.
	// Cancelling ctx stops playback; the handle then finishes with a
	// canceled EngineError.
	Speak(ctx context.Context, u Utterance) (Playback, error)
}

// Playback is a handle on one started utterance.
type Playback interface {
	Pause() error
	Resume() error
	// Done is closed when playback has ended for any reason. It doubles as
	// the acknowledgment that a cancellation took effect.
	Done() <-chan struct{}
	// Err reports why playback ended; nil means it finished normally.
	Err() error
}

// ErrorCode classifies engine failures.
type ErrorCode string

const (
	ErrorCanceled             ErrorCode = "canceled"
	ErrorInterrupted          ErrorCode = "interrupted"
	ErrorAudioBusy            ErrorCode = "audio-busy"
	ErrorNetwork              ErrorCode = "network"
	ErrorSynthesisUnavailable ErrorCode = "synthesis-unavailable"
	ErrorSynthesisFailed      ErrorCode = "synthesis-failed"
	ErrorVoiceUnavailable     ErrorCode = "voice-unavailable"
	ErrorTextTooLong          ErrorCode = "text-too-long"
	ErrorInvalidArgument      ErrorCode = "invalid-argument"
)

// EngineError is the error type engines report.
type EngineError struct {
	Code ErrorCode
	Err  error
}

func (e *EngineError) Error() string {
	if e.Err == nil {
		return "speech engine: " + string(e.Code)
	}
	return fmt.Sprintf("speech engine: %s: %v", e.Code, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// Code extracts the engine error code from err. Context cancellation maps
// to ErrorCanceled; anything else unknown to ErrorSynthesisFailed.
func Code(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return ErrorCanceled
	}
	return ErrorSynthesisFailed
}

// IsCancellation reports whether err only says playback was cut short.
func IsCancellation(err error) bool {
	switch Code(err) {
	case ErrorCanceled, ErrorInterrupted:
		return true
	default:
		return false
	}
}
