// Package audio defines the playback-output abstraction used by the speech
// player.
//
// The two abstractions are:
//
//   - [Sink] — the single audio output for a session; accepts one clip at a
//     time and returns a [Playback].
//   - [Playback] — one in-progress clip, with an awaited completion signal
//     instead of an on-end callback, so the caller's control flow reads as a
//     linear sequence.
//
// Concrete sinks are provided by the presentation layer (the websocket
// gateway delivers clips to the browser and resolves completion from the
// client's playback acknowledgement) and by the mock subpackage for tests.
package audio

import "context"

// Playback represents one clip currently held by the output.
//
// Exactly one of natural completion or Stop ends a playback; in both cases
// Done is closed and the underlying output resource is released.
type Playback interface {
	// Done returns a channel that is closed when the clip finishes playing or
	// is stopped. The same channel is returned on every call.
	Done() <-chan struct{}

	// Stop aborts playback and releases the output resource. It is idempotent
	// and safe to call after natural completion.
	Stop()
}

// Sink is the abstraction over a session's audio output.
//
// A Sink does not queue: the caller (the speech player) guarantees that at
// most one playback is active at a time by stopping the previous one first.
// Implementations must be safe for concurrent use.
type Sink interface {
	// Play starts playing one complete encoded clip and returns its Playback.
	// The ctx governs starting the playback only; an established playback is
	// ended via [Playback.Stop] or by playing to completion.
	Play(ctx context.Context, data []byte, mimeType string) (Playback, error)
}
