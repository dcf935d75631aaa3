// Package mock provides a test double for the stt.Provider interface.
//
// Use Provider to return controlled transcripts and to verify that the right
// clips were submitted:
//
//	p := &mock.Provider{TranscribeText: "hello"}
//	text, err := p.Transcribe(ctx, clip)
package mock

import (
	"context"
	"sync"

	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Clip is the clip passed to Transcribe.
	Clip types.Clip
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// TranscribeText is the text returned by Transcribe.
	TranscribeText string

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeFn, if non-nil, is invoked instead of the canned response.
	// Useful for blocking a transcription until the test releases it.
	TranscribeFn func(ctx context.Context, clip types.Clip) (string, error)

	// --- Call records ---

	// TranscribeCalls records every Transcribe invocation in order.
	TranscribeCalls []TranscribeCall
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip types.Clip) (string, error) {
	p.mu.Lock()
	p.TranscribeCalls = append(p.TranscribeCalls, TranscribeCall{Ctx: ctx, Clip: clip})
	fn := p.TranscribeFn
	text, err := p.TranscribeText, p.TranscribeErr
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, clip)
	}
	return text, err
}

// Calls returns a snapshot of the recorded Transcribe invocations.
func (p *Provider) Calls() []TranscribeCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]TranscribeCall, len(p.TranscribeCalls))
	copy(out, p.TranscribeCalls)
	return out
}
