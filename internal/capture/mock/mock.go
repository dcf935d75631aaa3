// Package mock provides test doubles for the capture.Source and
// capture.Stream interfaces.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/cadenza-ai/cadenza/internal/capture"
)

// Compile-time assertions.
var (
	_ capture.Source = (*Source)(nil)
	_ capture.Stream = (*Stream)(nil)
)

// Source is a mock implementation of capture.Source.
type Source struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned as the error from Open — simulating a
	// busy or denied microphone.
	OpenErr error

	// MIME is the MIME type reported by opened streams.
	MIME string

	// OpenCount counts Open invocations.
	OpenCount int

	// Streams records every stream handed out, in order.
	Streams []*Stream
}

// Open implements capture.Source.
func (s *Source) Open(ctx context.Context) (capture.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.OpenCount++
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}

	st := &Stream{mime: s.MIME, frames: make(chan []byte, 16)}
	s.Streams = append(s.Streams, st)
	return st, nil
}

// Stream is a mock implementation of capture.Stream. Tests push audio frames
// with Feed; Close (or the session stopping) ends the stream.
type Stream struct {
	mime string

	mu      sync.Mutex
	frames  chan []byte
	pending []byte
	closed  bool
}

// Feed appends one audio frame to the stream. Feeding a closed stream is a
// no-op so tests don't race the session's Stop.
func (s *Stream) Feed(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.frames <- frame
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		frame, ok := <-s.frames
		if !ok {
			return 0, io.EOF
		}
		s.pending = frame
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

// Close implements io.Closer, releasing the mock device.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.frames)
	}
	return nil
}

// Closed reports whether the stream was released.
func (s *Stream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MIMEType implements capture.Stream.
func (s *Stream) MIMEType() string {
	return s.mime
}
