// Package stt defines the Provider interface for Speech-to-Text backends and
// the two pipeline modes built on top of it: UtterancePipeline for the
// browser-facing push-to-talk loop (one transcription channel per utterance)
// and ContinuousPipeline for the telephone leg (silence-timer turn detection).
//
// The central abstraction is SessionHandle: once opened, a session accepts raw
// PCM16 audio frames and emits two streams of Transcript values —
// low-latency partials for live captions and authoritative finals for the
// conversation log.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"

	"github.com/haulvox/haulvox/pkg/types"
)

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. The pipeline always feeds
	// 16000 Hz mono PCM16.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider auto-detect, if supported.
	Language string

	// Keywords is a list of vocabulary hints that increase recognition
	// probability for uncommon words such as city and broker names.
	Keywords []string
}

// SessionHandle represents an open STT streaming session. It is an interface
// so that test code can provide mock implementations without a live provider
// connection.
//
// Callers must call Close when the session is no longer needed. All methods
// must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM16 audio bytes to the provider for
	// transcription. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel that emits low-latency interim
	// Transcript values. These drive live caption display but must not be
	// written to the authoritative conversation log. The channel is closed
	// when the session ends.
	Partials() <-chan types.Transcript

	// Finals returns a read-only channel that emits authoritative Transcript
	// values once the provider has committed to a recognition result.
	// The channel is closed when the session ends.
	Finals() <-chan types.Transcript

	// EndOfSpeech signals that no further audio belongs to the current
	// utterance, asking the provider to flush pending recognition results.
	EndOfSpeech() error

	// Close terminates the session, flushes any pending audio, and releases
	// all associated resources. After Close returns, the Partials and Finals
	// channels will be closed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously (one per live voice session or call).
type Provider interface {
	// StartStream opens a new streaming transcription session with the given
	// audio format and recognition configuration. The returned SessionHandle
	// is ready to accept audio once StartStream returns; implementations must
	// not return before the channel handshake has completed.
	//
	// The caller owns the SessionHandle and must call Close when done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
