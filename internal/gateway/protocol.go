package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/cadenza-ai/cadenza/pkg/types"
)

// Client → server message types.
const (
	msgSubmitText       = "submit_text"
	msgStartRecording   = "start_recording"
	msgStopRecording    = "stop_recording"
	msgStopSpeaking     = "stop_speaking"
	msgSetAutoSpeak     = "set_auto_speak"
	msgSetMaterials     = "set_materials"
	msgPlaybackFinished = "playback_finished"
)

// Server → client message types.
const (
	msgState      = "state"
	msgMessage    = "message"
	msgNotice     = "notice"
	msgSpeech     = "speech"
	msgSpeechStop = "speech_stop"
)

// material is the wire form of a study-material descriptor supplied by the
// upload collaborator. The gateway passes these through untouched.
type material struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	ID   string `json:"id"`
}

// clientMessage is the envelope for all client → server control frames.
// Binary frames (microphone audio) bypass this envelope entirely.
type clientMessage struct {
	Type string `json:"type"`

	// Text carries the utterance for submit_text.
	Text string `json:"text,omitempty"`

	// Enabled carries the flag for set_auto_speak.
	Enabled bool `json:"enabled,omitempty"`

	// Materials carries the replacement descriptor set for set_materials.
	Materials []material `json:"materials,omitempty"`

	// PlaybackID identifies the finished clip for playback_finished.
	PlaybackID string `json:"playback_id,omitempty"`
}

// serverMessage is the envelope for all server → client frames. A speech
// message is immediately followed by one binary frame carrying the clip.
type serverMessage struct {
	Type string `json:"type"`

	// State carries the turn state for state messages.
	State string `json:"state,omitempty"`

	// Role and Text carry a transcript entry for message messages; Text also
	// carries the body of notice messages.
	Role string `json:"role,omitempty"`
	Text string `json:"text,omitempty"`

	// Level carries the severity for notice messages.
	Level string `json:"level,omitempty"`

	// PlaybackID and Format describe the clip announced by a speech message;
	// PlaybackID alone identifies the clip for speech_stop.
	PlaybackID string `json:"playback_id,omitempty"`
	Format     string `json:"format,omitempty"`
}

// parseClientMessage decodes one text frame into a clientMessage.
func parseClientMessage(data []byte) (*clientMessage, error) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("gateway: decode client message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("gateway: client message missing type")
	}
	return &msg, nil
}

// toDescriptors converts wire materials into domain descriptors.
func toDescriptors(ms []material) []types.MaterialDescriptor {
	out := make([]types.MaterialDescriptor, len(ms))
	for i, m := range ms {
		out[i] = types.MaterialDescriptor{Name: m.Name, Size: m.Size, ID: m.ID}
	}
	return out
}
