// Package mock provides test doubles for the audio.Sink and audio.Playback
// interfaces.
//
// Playbacks returned by Sink stay open until the test calls Finish or the
// player calls Stop, so completion ordering can be driven deterministically.
package mock

import (
	"context"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/audio"
)

// Compile-time assertions.
var (
	_ audio.Sink     = (*Sink)(nil)
	_ audio.Playback = (*Playback)(nil)
)

// PlayCall records a single invocation of Play.
type PlayCall struct {
	// Ctx is the context passed to Play.
	Ctx context.Context
	// Data is the clip payload passed to Play.
	Data []byte
	// MIMEType is the MIME type passed to Play.
	MIMEType string
	// Playback is the playback handle returned for this call.
	Playback *Playback
}

// Sink is a mock implementation of audio.Sink.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned as the error from Play.
	PlayErr error

	// AutoFinish, when true, completes each playback immediately.
	AutoFinish bool

	// PlayCalls records every Play invocation in order.
	PlayCalls []PlayCall
}

// Play implements audio.Sink.
func (s *Sink) Play(ctx context.Context, data []byte, mimeType string) (audio.Playback, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.PlayErr != nil {
		return nil, s.PlayErr
	}

	pb := &Playback{done: make(chan struct{})}
	s.PlayCalls = append(s.PlayCalls, PlayCall{Ctx: ctx, Data: data, MIMEType: mimeType, Playback: pb})
	if s.AutoFinish {
		pb.Finish()
	}
	return pb, nil
}

// Calls returns a snapshot of the recorded Play invocations.
func (s *Sink) Calls() []PlayCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PlayCall, len(s.PlayCalls))
	copy(out, s.PlayCalls)
	return out
}

// Playback is a mock implementation of audio.Playback.
type Playback struct {
	mu      sync.Mutex
	done    chan struct{}
	closed  bool
	stopped bool
}

// Done implements audio.Playback.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

// Stop implements audio.Playback.
func (p *Playback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

// Finish simulates the clip playing to its natural end.
func (p *Playback) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.done)
	}
}

// Stopped reports whether Stop was called on this playback.
func (p *Playback) Stopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}
