package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Pipeline state values.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
)

// Default timing values, overridable via PipelineConfig.
const (
	defaultConnectTimeout = 5 * time.Second
	defaultFinalGrace     = 100 * time.Millisecond
)

// ErrNotConnected is returned by SendAudio when no transcription channel is
// open. The caller is responsible for buffering pre-connection audio and
// flushing it after Connect returns.
var ErrNotConnected = errors.New("stt: pipeline is not connected")

// PipelineConfig configures an UtterancePipeline.
type PipelineConfig struct {
	// Stream is the audio format and recognition configuration passed to the
	// provider on every Connect.
	Stream StreamConfig

	// ConnectTimeout bounds how long Connect waits for the provider channel
	// to confirm ready. Default 5s.
	ConnectTimeout time.Duration

	// FinalGrace is how long EndUtterance waits for trailing final results
	// after signalling end-of-speech. Default 100ms.
	FinalGrace time.Duration

	// OnPartial, when set, is invoked for every interim transcript as it
	// arrives. Must not block; it runs on the pipeline's reader goroutine.
	OnPartial func(text string)

	// OnError, when set, receives channel errors. Errors never crash the
	// pipeline; a failed connect leaves it disconnected so Connect can retry.
	OnError func(err error)
}

// UtterancePipeline owns one transcription-channel lifecycle per utterance:
// disconnected → connecting → connected → disconnected. It accumulates final
// segments in arrival order and keeps the last interim text as a fallback for
// utterances where no final ever arrives.
//
// All exported methods are safe for concurrent use.
type UtterancePipeline struct {
	provider Provider
	cfg      PipelineConfig

	mu          sync.Mutex
	state       string
	handle      SessionHandle
	finals      []string
	lastPartial string
	readerDone  chan struct{}
}

// NewUtterancePipeline creates a pipeline over provider. Zero config fields
// take the package defaults.
func NewUtterancePipeline(provider Provider, cfg PipelineConfig) *UtterancePipeline {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.FinalGrace <= 0 {
		cfg.FinalGrace = defaultFinalGrace
	}
	return &UtterancePipeline{
		provider: provider,
		cfg:      cfg,
		state:    StateDisconnected,
	}
}

// State returns the current pipeline state.
func (p *UtterancePipeline) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Connect opens exactly one transcription channel. It returns only after the
// channel confirms ready, or fails with a timeout error after ConnectTimeout.
// Connecting while already connected first tears down the previous channel,
// so Connect is an idempotent reconnect. A failed connect leaves the pipeline
// disconnected so a subsequent Connect can retry.
func (p *UtterancePipeline) Connect(ctx context.Context) error {
	p.mu.Lock()
	if p.handle != nil {
		// Idempotent reconnect: silently drop the previous channel.
		prev, prevDone := p.handle, p.readerDone
		p.handle = nil
		p.mu.Unlock()
		_ = prev.Close()
		<-prevDone
		p.mu.Lock()
	}
	p.state = StateConnecting
	p.finals = nil
	p.lastPartial = ""
	p.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	handle, err := p.provider.StartStream(dialCtx, p.cfg.Stream)
	if err != nil {
		p.mu.Lock()
		p.state = StateDisconnected
		p.mu.Unlock()
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("stt: connect timed out after %s: %w", p.cfg.ConnectTimeout, err)
		}
		return fmt.Errorf("stt: connect: %w", err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.handle = handle
	p.readerDone = done
	p.state = StateConnected
	p.mu.Unlock()

	go p.readLoop(handle, done)
	return nil
}

// readLoop consumes partial and final transcripts until the handle's channels
// close. It runs once per Connect.
func (p *UtterancePipeline) readLoop(handle SessionHandle, done chan struct{}) {
	defer close(done)
	partials := handle.Partials()
	finals := handle.Finals()
	for partials != nil || finals != nil {
		select {
		case t, ok := <-partials:
			if !ok {
				partials = nil
				continue
			}
			if t.Text == "" {
				continue
			}
			p.mu.Lock()
			p.lastPartial = t.Text
			p.mu.Unlock()
			if p.cfg.OnPartial != nil {
				p.cfg.OnPartial(t.Text)
			}
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			if t.Text == "" {
				continue
			}
			p.mu.Lock()
			p.finals = append(p.finals, t.Text)
			p.mu.Unlock()
		}
	}
}

// SendAudio forwards a PCM16 chunk to the open channel. Frames sent while the
// pipeline is not connected are rejected with ErrNotConnected; the caller
// buffers those and flushes them in order after Connect.
func (p *UtterancePipeline) SendAudio(chunk []byte) error {
	p.mu.Lock()
	handle := p.handle
	connected := p.state == StateConnected
	p.mu.Unlock()
	if !connected || handle == nil {
		return ErrNotConnected
	}
	if err := handle.SendAudio(chunk); err != nil {
		p.reportError(fmt.Errorf("stt: send audio: %w", err))
		return err
	}
	return nil
}

// EndUtterance signals end-of-speech, waits a short grace period for trailing
// final results, tears the channel down, and returns the best available text:
// accumulated finals joined in arrival order, falling back to the last interim
// text if no final arrived. Returns an empty string for a silent utterance.
func (p *UtterancePipeline) EndUtterance(ctx context.Context) (string, error) {
	p.mu.Lock()
	handle := p.handle
	done := p.readerDone
	p.mu.Unlock()
	if handle == nil {
		return "", ErrNotConnected
	}

	if err := handle.EndOfSpeech(); err != nil {
		p.reportError(fmt.Errorf("stt: end of speech: %w", err))
	}

	// Grace period for trailing finals; the reader finishing early (provider
	// closed its channels) short-circuits the wait.
	grace := time.NewTimer(p.cfg.FinalGrace)
	defer grace.Stop()
	select {
	case <-grace.C:
	case <-done:
	case <-ctx.Done():
	}

	_ = handle.Close()
	<-done

	p.mu.Lock()
	text := joinFinals(p.finals, p.lastPartial)
	p.handle = nil
	p.readerDone = nil
	p.state = StateDisconnected
	p.finals = nil
	p.lastPartial = ""
	p.mu.Unlock()
	return text, nil
}

// Flush force-returns whatever text is currently held, without waiting for
// trailing results. For teardown paths; the connection is left untouched.
func (p *UtterancePipeline) Flush() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return joinFinals(p.finals, p.lastPartial)
}

// Close tears down any open channel without collecting text. Safe to call in
// any state.
func (p *UtterancePipeline) Close() error {
	p.mu.Lock()
	handle := p.handle
	done := p.readerDone
	p.handle = nil
	p.readerDone = nil
	p.state = StateDisconnected
	p.mu.Unlock()
	if handle == nil {
		return nil
	}
	err := handle.Close()
	<-done
	return err
}

func (p *UtterancePipeline) reportError(err error) {
	if p.cfg.OnError != nil {
		p.cfg.OnError(err)
	}
}

// joinFinals concatenates final segments with single spaces, falling back to
// the last partial when no final arrived.
func joinFinals(finals []string, lastPartial string) string {
	if len(finals) > 0 {
		return strings.Join(finals, " ")
	}
	return lastPartial
}
