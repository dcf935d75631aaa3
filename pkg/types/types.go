// Package types defines the shared types used across all Cadenza packages.
//
// These types form the lingua franca between providers, the turn controller,
// and the gateway. They are intentionally minimal — each package defines its
// own domain types, but cross-cutting data structures live here to avoid
// circular imports.
package types

import "time"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks a message typed or spoken by the learner.
	RoleUser Role = "user"

	// RoleAssistant marks a message produced by the tutor.
	RoleAssistant Role = "assistant"
)

// IsValid reports whether r is a recognised role.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Message is a single entry in the conversation transcript. Messages are
// immutable once appended; the transcript is an ordered, append-only sequence
// that is replayed verbatim to the completion service as dialogue history.
type Message struct {
	// Role is the author of the message.
	Role Role

	// Text is the full message content. A Message is only created once its
	// text is completely known — partial messages never enter a transcript.
	Text string
}

// MaterialDescriptor identifies one study material attached to a conversation.
// Descriptors are supplied by the upload subsystem and are opaque to the core:
// it references them in prompts but never dereferences or mutates them.
type MaterialDescriptor struct {
	// Name is the display file name (e.g., "photosynthesis-notes.pdf").
	Name string

	// Size is the file size in bytes as reported by the upload subsystem.
	Size int64

	// ID is the upload subsystem's identifier for the material.
	ID string
}

// Clip is one finalized microphone recording, handed from the capture session
// to the transcription client.
type Clip struct {
	// Data is the encoded audio payload. The container/codec is whatever the
	// capture source produced; transcription providers accept it opaquely.
	Data []byte

	// MIMEType describes the payload (e.g., "audio/webm", "audio/wav").
	// May be empty when the source does not know.
	MIMEType string

	// Duration is the length of the recording, when known.
	Duration time.Duration
}

// VoiceProfile describes a synthesis voice configuration.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 0 = provider default).
	SpeedFactor float64
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}
