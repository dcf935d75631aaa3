// Package speak owns at most one active speech-synthesis playback.
//
// Each call to [Player.Speak] supersedes the previous one: the prior request's
// context is cancelled, its playback (if any) is stopped, and its request token
// is invalidated so a late-arriving synthesis response is discarded instead of
// starting playback. Cancellation is tracked with an explicit monotonically
// increasing token rather than a shared abort handle — a response is applied
// only if its token still matches the current one.
package speak

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/pkg/audio"
	"github.com/cadenza-ai/cadenza/pkg/provider/tts"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

// Player sequences synthesis requests and playback on a single audio sink.
// All exported methods are safe for concurrent use.
type Player struct {
	ttsP    tts.Provider
	sink    audio.Sink
	voice   types.VoiceProfile
	timeout time.Duration
	metrics *observe.Metrics

	mu       sync.Mutex
	token    uint64
	cancel   context.CancelFunc
	playback audio.Playback

	// wg tracks background goroutines spawned by Speak so callers (and tests)
	// can synchronise with the end of the synthesis stage.
	wg sync.WaitGroup
}

// Option is a functional option for configuring a Player.
type Option func(*Player)

// WithTimeout bounds each synthesis request. Zero (the default) means no
// timeout — a hung request is only ended by a superseding Speak or Stop.
func WithTimeout(d time.Duration) Option {
	return func(p *Player) { p.timeout = d }
}

// WithMetrics routes synthesis latency and error counts to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Player) { p.metrics = m }
}

// New constructs a Player speaking through ttsP and playing through sink with
// the given voice.
func New(ttsP tts.Provider, sink audio.Sink, voice types.VoiceProfile, opts ...Option) *Player {
	p := &Player{
		ttsP:  ttsP,
		sink:  sink,
		voice: voice,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Speak requests synthesis and playback of text, superseding any in-flight or
// playing request. Fire-and-forget from the caller's perspective: synthesis
// and playback proceed in the background, and failures are recoverable (logged,
// never surfaced to the transcript).
func (p *Player) Speak(text string) {
	if text == "" {
		return
	}

	p.mu.Lock()
	p.token++
	tok := p.token
	p.supersedeLocked()

	ctx := context.Background()
	var cancel context.CancelFunc
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	p.cancel = cancel
	p.mu.Unlock()

	p.wg.Add(1)
	go p.run(ctx, tok, text)
}

// Stop aborts the current synthesis request and playback, if any. Idempotent
// and safe to call when nothing is playing.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	// Invalidate any in-flight request so its result is discarded on arrival.
	p.token++
	p.supersedeLocked()
}

// Wait blocks until all background goroutines spawned by Speak have finished.
// Primarily useful in tests to synchronise before inspecting mocks.
func (p *Player) Wait() {
	p.wg.Wait()
}

// supersedeLocked cancels the in-flight request and stops active playback.
// Callers must hold p.mu.
func (p *Player) supersedeLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	if p.playback != nil {
		p.playback.Stop()
		p.playback = nil
	}
}

// run performs one synthesis + playback cycle for the request identified by tok.
func (p *Player) run(ctx context.Context, tok uint64, text string) {
	defer p.wg.Done()

	start := time.Now()
	clip, err := p.ttsP.Synthesize(ctx, text, p.voice)
	if p.metrics != nil {
		p.metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	}

	p.mu.Lock()
	if tok != p.token {
		// Superseded while in flight: even a successful response must not
		// start playback.
		p.mu.Unlock()
		return
	}

	if err != nil {
		p.cancel = nil
		p.mu.Unlock()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Aborted by a newer request or Stop; not a user-facing failure.
			return
		}
		if p.metrics != nil {
			p.metrics.RecordSpeechError(context.Background())
		}
		slog.Warn("speech synthesis failed", "err", err)
		return
	}

	p.mu.Unlock()

	// Play outside the mutex: a stalled sink must not serialise Stop or a
	// superseding Speak behind playback I/O. ctx cancellation is the only way
	// to unblock a stuck write.
	pb, err := p.sink.Play(ctx, clip.Data, clip.MIMEType)
	if err != nil {
		p.mu.Lock()
		if tok == p.token {
			p.cancel = nil
		}
		p.mu.Unlock()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		if p.metrics != nil {
			p.metrics.RecordSpeechError(context.Background())
		}
		slog.Warn("speech playback failed", "err", err)
		return
	}

	p.mu.Lock()
	if tok != p.token {
		// Superseded while Play was in flight; the resource is ours to release.
		p.mu.Unlock()
		pb.Stop()
		return
	}
	p.playback = pb
	p.mu.Unlock()

	select {
	case <-pb.Done():
		// Natural end: clear the current handle and release the resource.
	case <-ctx.Done():
		pb.Stop()
	}

	p.mu.Lock()
	if tok == p.token {
		p.playback = nil
		p.cancel = nil
	}
	p.mu.Unlock()
}
