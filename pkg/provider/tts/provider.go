// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs or the
// OpenAI speech API) and presents a uniform single-shot interface: one text in,
// one complete audio clip out. Each request is individually cancellable via its
// context — the speech player relies on this to abort a superseded request in
// flight.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/cadenza-ai/cadenza/pkg/types"
)

// ErrEmptyText is returned when synthesis is requested for empty text.
var ErrEmptyText = errors.New("tts: text must not be empty")

// Audio is one complete synthesized clip.
type Audio struct {
	// Data is the encoded audio payload.
	Data []byte

	// MIMEType describes the payload (e.g., "audio/mpeg", "audio/wav").
	MIMEType string
}

// Provider is the abstraction over any TTS backend.
//
// Implementations must be safe for concurrent use; multiple synthesis requests
// may run in parallel. Cancelling ctx must abort the in-flight request and
// return promptly with ctx.Err() (possibly wrapped) — callers depend on this
// to supersede stale requests.
type Provider interface {
	// Synthesize converts text into one complete audio clip using the given
	// voice. Providers should return an error if the requested voice is not
	// available.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) (*Audio, error)
}
