// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// StreamConfig. Use Session to feed controlled Transcript values and inspect
// which audio chunks were delivered.
//
// Example:
//
//	sess := mock.NewSession()
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartStream(ctx, cfg)
//	sess.EmitFinal("book it")
//	sess.CloseChannels()
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/haulvox/haulvox/pkg/stt"
	"github.com/haulvox/haulvox/pkg/types"
)

// StartStreamCall records a single invocation of Provider.StartStream.
type StartStreamCall struct {
	// Ctx is the context passed to StartStream.
	Ctx context.Context
	// Cfg is the StreamConfig passed to StartStream.
	Cfg stt.StreamConfig
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by StartStream. If nil, StartStream
	// returns a fresh default Session.
	Session stt.SessionHandle

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamBlock, if non-nil, makes StartStream wait until the channel
	// yields or ctx expires. Useful for connect-timeout tests.
	StartStreamBlock <-chan struct{}

	// StartStreamCalls records every call to StartStream.
	StartStreamCalls []StartStreamCall
}

// StartStream records the call and returns Session, StartStreamErr.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	p.StartStreamCalls = append(p.StartStreamCalls, StartStreamCall{Ctx: ctx, Cfg: cfg})
	block := p.StartStreamBlock
	err := p.StartStreamErr
	sess := p.Session
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if sess != nil {
		return sess, nil
	}
	return NewSession(), nil
}

// StartStreamCallCount returns the number of recorded StartStream calls.
func (p *Provider) StartStreamCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Chunk is a copy of the audio bytes that were passed to SendAudio.
	Chunk []byte
}

// Session is a mock implementation of stt.SessionHandle.
// Feed transcripts with EmitPartial/EmitFinal and finish with CloseChannels.
type Session struct {
	mu sync.Mutex

	// PartialsCh is the channel returned by Partials(). Owned by the test.
	PartialsCh chan types.Transcript

	// FinalsCh is the channel returned by Finals(). Owned by the test.
	FinalsCh chan types.Transcript

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// EndOfSpeechErr, if non-nil, is returned by EndOfSpeech.
	EndOfSpeechErr error

	// CloseErr, if non-nil, is returned by the first Close.
	CloseErr error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// EndOfSpeechCallCount is the number of times EndOfSpeech was called.
	EndOfSpeechCallCount int

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	channelsClosed bool
}

// NewSession returns a Session with buffered transcript channels ready for use.
func NewSession() *Session {
	return &Session{
		PartialsCh: make(chan types.Transcript, 16),
		FinalsCh:   make(chan types.Transcript, 16),
	}
}

// EmitPartial sends an interim transcript on the partials channel.
func (s *Session) EmitPartial(text string) {
	s.PartialsCh <- types.Transcript{Text: text, Timestamp: time.Now()}
}

// EmitFinal sends a final transcript on the finals channel.
func (s *Session) EmitFinal(text string) {
	s.FinalsCh <- types.Transcript{Text: text, IsFinal: true, Confidence: 0.9, Timestamp: time.Now()}
}

// CloseChannels closes both transcript channels, signalling end of session to
// the consumer. Idempotent.
func (s *Session) CloseChannels() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.channelsClosed {
		return
	}
	s.channelsClosed = true
	close(s.PartialsCh)
	close(s.FinalsCh)
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Chunk: cp})
	return s.SendAudioErr
}

// Partials returns PartialsCh.
func (s *Session) Partials() <-chan types.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PartialsCh
}

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan types.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.FinalsCh
}

// EndOfSpeech records the call and returns EndOfSpeechErr.
func (s *Session) EndOfSpeech() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EndOfSpeechCallCount++
	return s.EndOfSpeechErr
}

// SendAudioCallCount returns the number of SendAudio calls. Thread-safe.
func (s *Session) SendAudioCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// CloseCount returns the number of Close calls. Thread-safe.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// Close records the call, closes the transcript channels, and returns CloseErr.
// Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	s.CloseCallCount++
	first := s.CloseCallCount == 1
	err := s.CloseErr
	s.mu.Unlock()
	s.CloseChannels()
	if first {
		return err
	}
	return nil
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.EndOfSpeechCallCount = 0
	s.CloseCallCount = 0
}

// Ensure Session implements stt.SessionHandle at compile time.
var _ stt.SessionHandle = (*Session)(nil)
