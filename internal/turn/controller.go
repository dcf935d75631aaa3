// Package turn implements the voice-conversation turn controller: a re-entrant
// state machine that sequences audio capture, transcription, response
// generation, and speech playback into conversational turns.
//
// The controller receives events (SubmitText, StartRecording, StopRecording)
// and emits commands as an event stream (state transitions, transcript
// appends, recoverable-error notices) that the presentation layer subscribes
// to. No failure in this package is fatal: every error path returns the
// controller to Idle with the transcript in a consistent state.
package turn

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cadenza-ai/cadenza/internal/capture"
	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

const (
	// fallbackResponse is appended as the assistant message when response
	// generation fails, so the transcript never shows an unanswered user turn.
	fallbackResponse = "I apologize, but I encountered an error while processing your request. Please try again."

	// defaultEventBuf is the default buffer depth of the event channel.
	defaultEventBuf = 64
)

var (
	// ErrBusy is returned when input arrives while a turn pipeline or a
	// recording session is already outstanding.
	ErrBusy = errors.New("turn: a turn is already in progress")

	// ErrEmptyInput is returned by SubmitText for empty or whitespace-only text.
	ErrEmptyInput = errors.New("turn: empty input")

	// ErrNotRecording is returned by StopRecording when no recording session
	// is active.
	ErrNotRecording = errors.New("turn: no active recording")

	// ErrVoiceUnavailable is returned by StartRecording when no transcription
	// provider is configured.
	ErrVoiceUnavailable = errors.New("turn: voice input is not configured")
)

// Speaker is the speech-playback collaborator. Speak supersedes any prior
// request; Stop is idempotent. The controller issues exactly one Speak per
// appended assistant message while auto-speak is enabled.
type Speaker interface {
	Speak(text string)
	Stop()
}

// Controller sequences conversational turns over one conversation.
//
// At most one transcription-or-generation pipeline is outstanding at a time,
// enforced by the Idle re-entrancy guard: SubmitText and StartRecording are
// rejected with [ErrBusy] whenever the state is not Idle or a recording
// session is active. Speech playback is independent of the turn pipeline and
// may overlap with it.
//
// All exported methods are safe for concurrent use.
type Controller struct {
	sttP    stt.Provider
	gen     *Generator
	speaker Speaker // nil = speech disabled
	source  capture.Source
	conv    *Conversation

	transcribeTimeout time.Duration
	generateTimeout   time.Duration
	metrics           *observe.Metrics
	eventBuf          int

	mu        sync.Mutex
	state     State
	autoSpeak bool
	recording *capture.Session

	events chan Event

	// wg tracks background goroutines spawned by turn pipelines so callers
	// (and tests) can synchronise with the end of a turn.
	wg sync.WaitGroup
}

// ControllerOption is a functional option for configuring a Controller.
type ControllerOption func(*Controller)

// WithAutoSpeak sets the initial auto-speak mode. Default is off.
func WithAutoSpeak(enabled bool) ControllerOption {
	return func(c *Controller) { c.autoSpeak = enabled }
}

// WithTranscribeTimeout bounds each transcription call. Zero (the default)
// means no timeout: a hung call holds the turn in AwaitingTranscription.
func WithTranscribeTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.transcribeTimeout = d }
}

// WithGenerateTimeout bounds each generation call. Zero (the default) means
// no timeout: a hung call holds the turn in AwaitingResponse.
func WithGenerateTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) { c.generateTimeout = d }
}

// WithMetrics routes stage latencies and turn counters to m.
func WithMetrics(m *observe.Metrics) ControllerOption {
	return func(c *Controller) { c.metrics = m }
}

// WithEventBuffer sets the buffer capacity of the channel returned by
// [Controller.Events]. Default is 64.
func WithEventBuffer(n int) ControllerOption {
	return func(c *Controller) { c.eventBuf = n }
}

// NewController constructs a Controller over the given collaborators.
// speaker may be nil, in which case auto-speak and StopSpeaking are no-ops.
func NewController(sttP stt.Provider, gen *Generator, speaker Speaker, source capture.Source, conv *Conversation, opts ...ControllerOption) *Controller {
	c := &Controller{
		sttP:     sttP,
		gen:      gen,
		speaker:  speaker,
		source:   source,
		conv:     conv,
		eventBuf: defaultEventBuf,
	}
	for _, o := range opts {
		o(c)
	}
	// Create the event channel after options so WithEventBuffer takes effect.
	c.events = make(chan Event, c.eventBuf)
	return c
}

// Events returns the controller's event stream. The channel is buffered;
// events are dropped (with a debug log) rather than blocking the pipeline
// when the subscriber falls behind.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// State returns the current turn state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Recording reports whether a recording session is active.
func (c *Controller) Recording() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recording != nil
}

// Conversation returns the transcript this controller appends to.
func (c *Controller) Conversation() *Conversation {
	return c.conv
}

// SetAutoSpeak toggles auto-speak mode for subsequent assistant messages.
func (c *Controller) SetAutoSpeak(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoSpeak = enabled
}

// AutoSpeak reports whether auto-speak is enabled.
func (c *Controller) AutoSpeak() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.autoSpeak
}

// StopSpeaking aborts any current speech synthesis or playback. Idempotent
// and safe to call when nothing is playing.
func (c *Controller) StopSpeaking() {
	if c.speaker != nil {
		c.speaker.Stop()
	}
}

// Wait blocks until all background turn pipelines have finished. Primarily
// useful in tests and during shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// ─── Turn operations ──────────────────────────────────────────────────────────

// SubmitText starts a text turn: it appends text as a user message, moves to
// AwaitingResponse, and requests an assistant response in the background.
//
// Returns [ErrEmptyInput] for whitespace-only text and [ErrBusy] when a turn
// or recording session is already outstanding; in both cases nothing is
// appended and the state is unchanged. ctx governs the turn's network calls.
func (c *Controller) SubmitText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}

	c.mu.Lock()
	if c.state != StateIdle || c.recording != nil {
		c.mu.Unlock()
		return ErrBusy
	}
	// Snapshot the history before appending: the generation request is built
	// from the transcript as it stood at turn start, with the new utterance
	// last. Messages from any later activity never leak into this request.
	history := c.conv.Messages()
	c.state = StateAwaitingResponse
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, State: StateAwaitingResponse})
	c.appendMessage(types.Message{Role: types.RoleUser, Text: text})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.generateAndAppend(ctx, history, text, "text")
	}()
	return nil
}

// StartRecording acquires the microphone and begins buffering audio.
//
// Allowed only from Idle with no active recording; otherwise returns
// [ErrBusy]. Device acquisition failure is recoverable: a notice is emitted,
// no session is created, and the state stays Idle.
func (c *Controller) StartRecording(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sttP == nil {
		// Configuration state, not a turn failure: surface it as info.
		c.emit(Event{Kind: EventNotice, Level: NoticeInfo, Text: "Voice input is not available."})
		return ErrVoiceUnavailable
	}
	if c.state != StateIdle || c.recording != nil {
		return ErrBusy
	}

	sess, err := capture.Start(ctx, c.source)
	if err != nil {
		c.recordTurnError(ctx, "device")
		c.emit(Event{Kind: EventNotice, Level: NoticeError, Text: "Microphone unavailable. Check your audio device and try again."})
		slog.Warn("microphone acquisition failed", "err", err)
		return fmt.Errorf("turn: start recording: %w", err)
	}
	c.recording = sess
	return nil
}

// StopRecording finalises the captured clip, releases the device, and hands
// the clip to the transcription service. On transcription success the text is
// treated exactly like SubmitText; on failure a notice is emitted, no message
// is appended, and the state returns to Idle. An empty transcription is
// discarded the same way, with an informational notice.
//
// Returns [ErrNotRecording] when no recording session is active.
func (c *Controller) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	sess := c.recording
	if sess == nil {
		c.mu.Unlock()
		return ErrNotRecording
	}
	c.recording = nil
	c.state = StateAwaitingTranscription
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, State: StateAwaitingTranscription})

	// Stop releases the device on every path, including stream failures.
	clip, err := sess.Stop()
	if err != nil {
		c.recordTurnError(ctx, "device")
		c.emit(Event{Kind: EventNotice, Level: NoticeError, Text: "Recording failed. Please try again."})
		slog.Warn("recording finalisation failed", "err", err)
		c.setIdle()
		return fmt.Errorf("turn: stop recording: %w", err)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.transcribeAndRespond(ctx, clip)
	}()
	return nil
}

// ─── Pipeline stages ──────────────────────────────────────────────────────────

// transcribeAndRespond runs the voice pipeline tail: transcribe the clip,
// then respond to the resulting text as if it had been typed.
func (c *Controller) transcribeAndRespond(ctx context.Context, clip types.Clip) {
	tctx := ctx
	if c.transcribeTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, c.transcribeTimeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.sttP.Transcribe(tctx, clip)
	if c.metrics != nil {
		c.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		c.recordTurnError(ctx, "transcription")
		c.emit(Event{Kind: EventNotice, Level: NoticeError, Text: "Transcription failed. Please try again."})
		slog.Warn("transcription failed", "err", err)
		c.setIdle()
		return
	}

	text = strings.TrimSpace(text)
	if text == "" {
		// A valid empty transcription; the clip contained no usable speech.
		c.emit(Event{Kind: EventNotice, Level: NoticeInfo, Text: "No speech detected."})
		c.setIdle()
		return
	}

	c.mu.Lock()
	history := c.conv.Messages()
	c.state = StateAwaitingResponse
	c.mu.Unlock()

	c.emit(Event{Kind: EventState, State: StateAwaitingResponse})
	c.appendMessage(types.Message{Role: types.RoleUser, Text: text})

	c.generateAndAppend(ctx, history, text, "voice")
}

// generateAndAppend requests an assistant response for utterance given the
// pre-utterance history, appends exactly one assistant message (the response
// or the fallback), dispatches auto-speak, and returns the state to Idle.
func (c *Controller) generateAndAppend(ctx context.Context, history []types.Message, utterance, input string) {
	gctx := ctx
	if c.generateTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, c.generateTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := c.gen.Generate(gctx, history, utterance, c.conv.Materials())
	if c.metrics != nil {
		c.metrics.GenerationDuration.Record(ctx, time.Since(start).Seconds())
	}
	if err != nil {
		// The turn still completes: the fallback message keeps the user's
		// utterance answered in the transcript.
		c.recordTurnError(ctx, "generation")
		slog.Warn("response generation failed", "err", err)
		reply = fallbackResponse
		if c.metrics != nil {
			c.metrics.RecordTurn(ctx, input, "fallback")
		}
	} else if c.metrics != nil {
		c.metrics.RecordTurn(ctx, input, "ok")
	}

	c.appendMessage(types.Message{Role: types.RoleAssistant, Text: reply})

	// The single auto-speak dispatch site: one Speak per appended assistant
	// message, superseding any still-playing request.
	c.mu.Lock()
	speak := c.autoSpeak && c.speaker != nil
	c.mu.Unlock()
	if speak {
		c.speaker.Speak(reply)
	}

	c.setIdle()
}

// ─── Internal helpers ─────────────────────────────────────────────────────────

// appendMessage appends msg to the transcript and emits the matching event.
// The message carries its full text; partial appends never happen.
func (c *Controller) appendMessage(msg types.Message) {
	c.conv.Append(msg)
	c.emit(Event{Kind: EventMessage, Message: msg})
}

// setIdle transitions back to Idle and emits the state event.
func (c *Controller) setIdle() {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	c.emit(Event{Kind: EventState, State: StateIdle})
}

// emit delivers ev to the event channel without blocking the pipeline.
// A full channel drops the event; subscribers that care keep up.
func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Debug("event dropped, subscriber behind", "kind", ev.Kind)
	}
}

func (c *Controller) recordTurnError(ctx context.Context, stage string) {
	if c.metrics != nil {
		c.metrics.RecordTurnError(ctx, stage)
	}
}
