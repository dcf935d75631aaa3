// Package capture owns one microphone recording session at a time.
//
// A [Session] is created by [Start], which acquires an exclusive stream from a
// [Source], and ended only by [Session.Stop], which releases the stream and
// yields the buffered clip. The stream is a scoped resource: every exit path
// out of a session, including error paths, releases it — a leaked microphone
// handle is a correctness bug, not cosmetic.
//
// The Source indirection keeps the session decoupled from where the audio
// actually comes from: in production the websocket gateway feeds it frames
// relayed from the browser's microphone, and tests substitute a mock.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/types"
)

// ErrNotActive is returned by Stop when the session has already been stopped.
var ErrNotActive = errors.New("capture: session is not active")

// Stream is one exclusive, open microphone stream.
//
// Close releases the underlying device and unblocks any pending Read. A Read
// that was interrupted by Close may return [fs.ErrClosed] or
// [io.ErrClosedPipe]; both are treated as a clean end of stream.
type Stream interface {
	io.ReadCloser

	// MIMEType describes the encoded audio this stream produces
	// (e.g., "audio/webm"). May be empty when unknown.
	MIMEType() string
}

// Source acquires microphone streams. Opening may fail (device busy, access
// denied); such failures happen before any resource is held.
type Source interface {
	// Open acquires an exclusive stream. The ctx governs the acquisition
	// only; an opened Stream stays valid until its Close.
	Open(ctx context.Context) (Stream, error)
}

// Session buffers audio from an open Stream until Stop is called.
// At most one Session per controller is alive at a time; the turn controller
// enforces this.
type Session struct {
	mu      sync.Mutex
	stream  Stream
	stopped bool

	buf     bytes.Buffer
	readErr error
	done    chan struct{}
}

// Start acquires a stream from src and begins buffering in the background.
// On acquisition failure no Session is created and no resource is held.
func Start(ctx context.Context, src Source) (*Session, error) {
	stream, err := src.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: open device: %w", err)
	}

	s := &Session{
		stream: stream,
		done:   make(chan struct{}),
	}
	go s.read()
	return s, nil
}

// read drains the stream into the session buffer until EOF or Close.
// Only this goroutine touches buf until done is closed.
func (s *Session) read() {
	defer close(s.done)
	_, err := io.Copy(&s.buf, s.stream)
	if err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, fs.ErrClosed) {
		s.readErr = err
	}
}

// Active reports whether the session is still recording.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.stopped
}

// Stop finalizes the recording: it releases the device, waits for buffering
// to settle, and returns the captured clip. Stop is the only way to end a
// session; calling it twice returns ErrNotActive.
//
// The device is released even when the stream failed mid-recording — the
// error propagates after the Close.
func (s *Session) Stop() (types.Clip, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return types.Clip{}, ErrNotActive
	}
	s.stopped = true
	stream := s.stream
	s.mu.Unlock()

	closeErr := stream.Close()
	<-s.done

	if s.readErr != nil {
		return types.Clip{}, fmt.Errorf("capture: stream failed: %w", s.readErr)
	}
	if closeErr != nil {
		return types.Clip{}, fmt.Errorf("capture: release device: %w", closeErr)
	}

	return types.Clip{
		Data:     s.buf.Bytes(),
		MIMEType: stream.MIMEType(),
	}, nil
}
