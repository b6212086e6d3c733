// Package mock provides test doubles for the tts package interfaces.
//
// Use Channel to script per-sentence audio output and inspect the exact
// sequence of Synthesize calls. By default each sentence yields a single audio
// chunk containing the sentence's bytes, which makes ordering assertions easy.
package mock

import (
	"context"
	"sync"

	"github.com/haulvox/haulvox/pkg/tts"
	"github.com/haulvox/haulvox/pkg/types"
)

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Channel is returned by OpenChannel. If nil, a fresh default Channel is
	// returned per call.
	Channel tts.Channel

	// OpenChannelErr, if non-nil, is returned by OpenChannel.
	OpenChannelErr error

	// Voices is returned by ListVoices.
	Voices []types.VoiceProfile

	// OpenChannelCalls records the voice passed to each OpenChannel call.
	OpenChannelCalls []types.VoiceProfile
}

// OpenChannel records the call and returns Channel, OpenChannelErr.
func (p *Provider) OpenChannel(_ context.Context, voice types.VoiceProfile) (tts.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.OpenChannelCalls = append(p.OpenChannelCalls, voice)
	if p.OpenChannelErr != nil {
		return nil, p.OpenChannelErr
	}
	if p.Channel != nil {
		return p.Channel, nil
	}
	return &Channel{}, nil
}

// ListVoices returns Voices.
func (p *Provider) ListVoices(context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, nil
}

var _ tts.Provider = (*Provider)(nil)

// Channel is a mock implementation of tts.Channel.
type Channel struct {
	mu sync.Mutex

	// ChunksFor, when set, maps a sentence to the audio chunks emitted for it.
	// When nil, each sentence yields one chunk containing the sentence bytes.
	ChunksFor func(text string) [][]byte

	// Gate, if non-nil, is received from before each chunk is emitted, letting
	// tests pace synthesis and test mid-synthesis aborts.
	Gate <-chan struct{}

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// SynthesizeCalls records every synthesized sentence in order.
	SynthesizeCalls []string

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Synthesize records the sentence and emits its scripted chunks on the
// returned channel, respecting Gate and ctx cancellation.
func (c *Channel) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	c.mu.Lock()
	c.SynthesizeCalls = append(c.SynthesizeCalls, text)
	err := c.SynthesizeErr
	chunksFor := c.ChunksFor
	gate := c.Gate
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var chunks [][]byte
	if chunksFor != nil {
		chunks = chunksFor(text)
	} else {
		chunks = [][]byte{[]byte(text)}
	}

	out := make(chan []byte, len(chunks))
	go func() {
		defer close(out)
		for _, chunk := range chunks {
			if gate != nil {
				select {
				case <-gate:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close records the call.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCallCount++
	return nil
}

// Calls returns a copy of the recorded Synthesize calls. Thread-safe.
func (c *Channel) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.SynthesizeCalls))
	copy(out, c.SynthesizeCalls)
	return out
}

// CloseCount returns the number of Close calls. Thread-safe.
func (c *Channel) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CloseCallCount
}

var _ tts.Channel = (*Channel)(nil)
