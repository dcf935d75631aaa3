package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/cadenza-ai/cadenza/internal/capture"
	"github.com/cadenza-ai/cadenza/internal/turn"
	"github.com/cadenza-ai/cadenza/pkg/audio"
)

// defaultMicMIME is the MIME type assumed for browser microphone frames when
// the client does not negotiate one. MediaRecorder produces WebM/Opus in
// every mainstream browser.
const defaultMicMIME = "audio/webm"

// Client owns one websocket connection and its conversation session: the turn
// controller, the microphone source fed by binary frames, and the speech sink
// that delivers synthesized clips back over the socket.
type Client struct {
	id   string
	conn *websocket.Conn
	ctrl *turn.Controller
	mic  *micSource
	sink *wsSink
	log  *slog.Logger

	// writeMu serialises all writes to conn; speech messages and their binary
	// payload must not interleave with event frames.
	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn, log *slog.Logger) *Client {
	c := &Client{
		id:   uuid.NewString(),
		conn: conn,
		mic:  &micSource{mime: defaultMicMIME},
	}
	c.sink = &wsSink{client: c, active: make(map[string]*wsPlayback)}
	c.log = log.With("session_id", c.id)
	return c
}

// ID returns the session identifier assigned to this connection.
func (c *Client) ID() string {
	return c.id
}

// run processes the connection until the client disconnects or ctx ends.
func (c *Client) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.pumpEvents(ctx)

	for {
		typ, data, err := c.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				c.log.Info("client disconnected")
			} else {
				c.log.Warn("connection read failed", "err", err)
			}
			break
		}

		switch typ {
		case websocket.MessageBinary:
			// Microphone audio; meaningful only while recording, otherwise
			// dropped by the source.
			c.mic.feed(data)
		case websocket.MessageText:
			c.handleControl(ctx, data)
		}
	}

	// Release per-connection resources. A recording in progress loses its
	// audio: there is no client left to show a transcription to.
	c.ctrl.StopSpeaking()
	c.mic.shutdown()
}

// pumpEvents forwards controller events to the client until ctx ends.
func (c *Client) pumpEvents(ctx context.Context) {
	events := c.ctrl.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			var msg serverMessage
			switch ev.Kind {
			case turn.EventState:
				msg = serverMessage{Type: msgState, State: ev.State.String()}
			case turn.EventMessage:
				msg = serverMessage{Type: msgMessage, Role: string(ev.Message.Role), Text: ev.Message.Text}
			case turn.EventNotice:
				msg = serverMessage{Type: msgNotice, Level: string(ev.Level), Text: ev.Text}
			default:
				continue
			}
			if err := c.send(ctx, msg); err != nil {
				return
			}
		}
	}
}

// handleControl dispatches one decoded control frame to the controller.
func (c *Client) handleControl(ctx context.Context, data []byte) {
	msg, err := parseClientMessage(data)
	if err != nil {
		c.log.Warn("malformed control frame", "err", err)
		c.notice(ctx, turn.NoticeError, "Malformed message.")
		return
	}

	switch msg.Type {
	case msgSubmitText:
		c.reportInputErr(ctx, c.ctrl.SubmitText(ctx, msg.Text))
	case msgStartRecording:
		c.reportInputErr(ctx, c.ctrl.StartRecording(ctx))
	case msgStopRecording:
		c.reportInputErr(ctx, c.ctrl.StopRecording(ctx))
	case msgStopSpeaking:
		c.ctrl.StopSpeaking()
	case msgSetAutoSpeak:
		c.ctrl.SetAutoSpeak(msg.Enabled)
	case msgSetMaterials:
		c.ctrl.Conversation().SetMaterials(toDescriptors(msg.Materials))
	case msgPlaybackFinished:
		c.sink.finish(msg.PlaybackID)
	default:
		c.log.Warn("unknown control message", "type", msg.Type)
		c.notice(ctx, turn.NoticeError, "Unknown message type.")
	}
}

// reportInputErr translates controller input rejections into client notices.
// Pipeline failures surface through the controller's own event stream, so
// only the synchronous rejections are handled here.
func (c *Client) reportInputErr(ctx context.Context, err error) {
	switch {
	case err == nil:
	case errors.Is(err, turn.ErrBusy):
		c.notice(ctx, turn.NoticeInfo, "Please wait for the current turn to finish.")
	case errors.Is(err, turn.ErrEmptyInput):
		c.notice(ctx, turn.NoticeInfo, "Nothing to send.")
	case errors.Is(err, turn.ErrNotRecording):
		c.notice(ctx, turn.NoticeInfo, "Not recording.")
	default:
		// Device and finalisation failures already produced their own notice
		// via the event stream; just log here.
		c.log.Warn("turn input failed", "err", err)
	}
}

func (c *Client) notice(ctx context.Context, level turn.NoticeLevel, text string) {
	_ = c.send(ctx, serverMessage{Type: msgNotice, Level: string(level), Text: text})
}

// send marshals msg and writes it as one text frame.
func (c *Client) send(ctx context.Context, msg serverMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return wsjson.Write(ctx, c.conn, msg)
}

// sendSpeech writes the speech announcement followed by its binary clip as
// one uninterrupted pair.
func (c *Client) sendSpeech(ctx context.Context, msg serverMessage, clip []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageBinary, clip)
}

// ─── Microphone source ────────────────────────────────────────────────────────

// micSource adapts binary websocket frames into a [capture.Stream]. At most
// one stream is open at a time; frames arriving while no stream is open are
// dropped.
type micSource struct {
	mime string

	mu  sync.Mutex
	cur *micStream
}

// Compile-time assertion that micSource satisfies capture.Source.
var _ capture.Source = (*micSource)(nil)

// Open implements capture.Source.
func (s *micSource) Open(_ context.Context) (capture.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		return nil, errors.New("gateway: microphone stream already open")
	}
	pr, pw := io.Pipe()
	s.cur = &micStream{src: s, r: pr, w: pw, mime: s.mime}
	return s.cur, nil
}

// feed relays one audio frame to the open stream, if any.
func (s *micSource) feed(frame []byte) {
	s.mu.Lock()
	st := s.cur
	s.mu.Unlock()
	if st == nil {
		return
	}
	// A write racing the stream's Close fails with ErrClosedPipe; the frame
	// is simply lost, same as if it had arrived after stop.
	_, _ = st.w.Write(frame)
}

// shutdown closes any open stream so its capture session drains cleanly.
func (s *micSource) shutdown() {
	s.mu.Lock()
	st := s.cur
	s.mu.Unlock()
	if st != nil {
		_ = st.Close()
	}
}

// micStream is one exclusive microphone stream backed by an in-process pipe.
type micStream struct {
	src  *micSource
	r    *io.PipeReader
	w    *io.PipeWriter
	mime string

	closeOnce sync.Once
}

var _ capture.Stream = (*micStream)(nil)

// Read implements io.Reader.
func (st *micStream) Read(p []byte) (int, error) {
	return st.r.Read(p)
}

// Close releases the stream: buffered frames drain, then the reader sees EOF.
func (st *micStream) Close() error {
	st.closeOnce.Do(func() {
		st.src.mu.Lock()
		if st.src.cur == st {
			st.src.cur = nil
		}
		st.src.mu.Unlock()
		_ = st.w.Close()
	})
	return nil
}

// MIMEType implements capture.Stream.
func (st *micStream) MIMEType() string {
	return st.mime
}

// ─── Speech sink ──────────────────────────────────────────────────────────────

// wsSink implements [audio.Sink] by delivering synthesized clips to the
// browser: a speech announcement frame, then one binary frame with the clip.
// The natural-end completion signal is the client's playback_finished message.
type wsSink struct {
	client *Client

	mu     sync.Mutex
	active map[string]*wsPlayback
}

var _ audio.Sink = (*wsSink)(nil)

// Play implements audio.Sink.
func (s *wsSink) Play(ctx context.Context, data []byte, mimeType string) (audio.Playback, error) {
	pb := &wsPlayback{
		id:   uuid.NewString(),
		sink: s,
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.active[pb.id] = pb
	s.mu.Unlock()

	msg := serverMessage{Type: msgSpeech, PlaybackID: pb.id, Format: mimeType}
	if err := s.client.sendSpeech(ctx, msg, data); err != nil {
		s.remove(pb.id)
		return nil, err
	}
	return pb, nil
}

// finish completes the playback identified by id, if it is still active.
func (s *wsSink) finish(id string) {
	s.mu.Lock()
	pb := s.active[id]
	delete(s.active, id)
	s.mu.Unlock()
	if pb != nil {
		pb.complete()
	}
}

func (s *wsSink) remove(id string) {
	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// wsPlayback is one in-flight clip on the client's speaker.
type wsPlayback struct {
	id   string
	sink *wsSink

	once sync.Once
	done chan struct{}
}

var _ audio.Playback = (*wsPlayback)(nil)

// Done implements audio.Playback.
func (p *wsPlayback) Done() <-chan struct{} {
	return p.done
}

// Stop implements audio.Playback: it tells the client to stop playing this
// clip and completes the handle. Idempotent.
func (p *wsPlayback) Stop() {
	p.once.Do(func() {
		p.sink.remove(p.id)
		// Best effort; a disconnected client has already stopped playing.
		_ = p.sink.client.send(context.Background(), serverMessage{Type: msgSpeechStop, PlaybackID: p.id})
		close(p.done)
	})
}

func (p *wsPlayback) complete() {
	p.once.Do(func() {
		close(p.done)
	})
}
