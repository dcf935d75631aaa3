package turn

import "github.com/cadenza-ai/cadenza/pkg/types"

// State is the turn controller's lifecycle state. Exactly one State is
// current per controller; it is Idle whenever no transcription or generation
// call is outstanding.
type State int

const (
	// StateIdle means no turn pipeline is outstanding. New input is accepted.
	StateIdle State = iota

	// StateAwaitingTranscription means a captured clip has been handed to the
	// transcription service and the controller is waiting for text.
	StateAwaitingTranscription

	// StateAwaitingResponse means a user utterance has been handed to the
	// response generator and the controller is waiting for assistant text.
	StateAwaitingResponse
)

// String returns the wire-format name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingTranscription:
		return "awaiting_transcription"
	case StateAwaitingResponse:
		return "awaiting_response"
	default:
		return "unknown"
	}
}

// NoticeLevel classifies a user-visible notice.
type NoticeLevel string

const (
	// NoticeError marks a recoverable failure the user should see inline.
	NoticeError NoticeLevel = "error"

	// NoticeInfo marks an informational notice (e.g., no speech detected).
	NoticeInfo NoticeLevel = "info"
)

// EventKind discriminates the variants of [Event].
type EventKind int

const (
	// EventState signals a turn-state transition; Event.State is set.
	EventState EventKind = iota

	// EventMessage signals a message appended to the transcript;
	// Event.Message is set.
	EventMessage

	// EventNotice signals a recoverable error or informational notice;
	// Event.Level and Event.Text are set.
	EventNotice
)

// Event is one item on the controller's event stream. The presentation layer
// subscribes to these to render state, transcript updates, and notices; the
// controller never calls back into the presentation layer directly.
type Event struct {
	Kind EventKind

	// State is set when Kind is EventState.
	State State

	// Message is set when Kind is EventMessage.
	Message types.Message

	// Level and Text are set when Kind is EventNotice.
	Level NoticeLevel
	Text  string
}
