// Package tts defines the Provider interface for Text-to-Speech backends and
// the SentencePipeline that turns incrementally arriving LLM text into an
// ordered stream of synthesized audio chunks.
//
// The central abstraction is Channel: an open synthesis connection that can be
// reused across many conversational turns within one session, amortizing
// connection setup so the first sentence of each response does not pay a dial
// round-trip. A session opens one Channel up front and constructs a fresh
// SentencePipeline over it per turn.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/haulvox/haulvox/pkg/types"
)

// Channel is an open, reusable synthesis connection.
//
// Synthesize requests are issued one at a time by the pipeline; implementations
// may assume no two Synthesize calls for the same Channel overlap, but Close
// may race with an in-flight Synthesize and must be safe.
type Channel interface {
	// Synthesize submits one sentence for synthesis and returns a channel that
	// emits raw PCM16 audio chunks in order. The channel is closed when the
	// sentence has been fully synthesized, when ctx is cancelled, or when the
	// Channel itself is closed.
	//
	// Returns a non-nil error only if the request cannot be submitted.
	Synthesize(ctx context.Context, text string) (<-chan []byte, error)

	// Close terminates the synthesis connection. Only the owner of the Channel
	// may call Close; a pipeline handed a shared Channel never closes it.
	// Calling Close more than once is safe.
	Close() error
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// OpenChannel dials a new synthesis connection for the given voice. The
	// returned Channel is ready for Synthesize calls once OpenChannel returns.
	OpenChannel(ctx context.Context, voice types.VoiceProfile) (Channel, error)

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}
