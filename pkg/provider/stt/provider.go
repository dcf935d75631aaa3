// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a remote transcription service (e.g., the OpenAI
// Whisper API or Deepgram) and exposes a uniform single-shot interface: one
// finalized recording in, one transcript out. Any provider-side upload or
// polling cycle is internal to the implementation — from the caller's
// perspective Transcribe is one opaque blocking call that either yields text
// or fails.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"

	"github.com/cadenza-ai/cadenza/pkg/types"
)

// ErrEmptyClip is returned when a zero-length recording is submitted.
var ErrEmptyClip = errors.New("stt: clip contains no audio data")

// Provider is the abstraction over any speech-to-text backend.
//
// Implementations must be safe for concurrent use and must propagate context
// cancellation promptly: when ctx is cancelled the method must return as
// quickly as possible with ctx.Err() (possibly wrapped).
type Provider interface {
	// Transcribe submits one complete recording and returns the recognised
	// text. An empty or whitespace-only result is a valid transcription, not
	// an error — the caller decides whether to discard it.
	//
	// No retries are performed; a failed request surfaces as a single error.
	Transcribe(ctx context.Context, clip types.Clip) (string, error)
}
