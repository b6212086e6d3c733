// Package elevenlabs provides an ElevenLabs-backed TTS provider using the
// ElevenLabs multi-context streaming WebSocket API. It implements the
// tts.Provider interface.
//
// One WebSocket connection is opened per tts.Channel and reused across turns;
// each Synthesize call runs in its own ElevenLabs context so audio for
// consecutive sentences never interleaves.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/haulvox/haulvox/pkg/tts"
	"github.com/haulvox/haulvox/pkg/types"
)

const (
	wsEndpointFmt  = "wss://api.elevenlabs.io/v1/text-to-speech/%s/multi-stream-input?model_id=%s&output_format=%s"
	voicesEndpoint = "https://api.elevenlabs.io/v1/voices"
	defaultModel   = "eleven_flash_v2_5"
	defaultOutput  = "pcm_24000"
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format (e.g., "pcm_16000", "pcm_24000").
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// Provider implements tts.Provider backed by the ElevenLabs streaming API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	httpClient   *http.Client
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultOutput,
		httpClient:   &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// ---- WebSocket message types ----

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// contextMessage is the JSON payload sent per synthesis context.
type contextMessage struct {
	Text          string         `json:"text,omitempty"`
	ContextID     string         `json:"context_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	Flush         bool           `json:"flush,omitempty"`
	CloseContext  bool           `json:"close_context,omitempty"`
}

// audioResponse is a JSON message received from ElevenLabs over the WebSocket.
type audioResponse struct {
	Audio     string `json:"audio"` // base64-encoded PCM
	ContextID string `json:"contextId"`
	IsFinal   bool   `json:"isFinal"`
}

// OpenChannel dials a multi-context synthesis WebSocket for the given voice.
func (p *Provider) OpenChannel(ctx context.Context, voice types.VoiceProfile) (tts.Channel, error) {
	if voice.ID == "" {
		return nil, errors.New("elevenlabs: voice.ID must not be empty")
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, voice.ID, p.model, p.outputFormat)
	headers := http.Header{}
	headers.Set("xi-api-key", p.apiKey)

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: headers,
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	ch := &channel{
		conn:     conn,
		contexts: make(map[string]chan []byte),
		done:     make(chan struct{}),
	}
	go ch.readLoop()
	return ch, nil
}

// channel is a live multi-context synthesis connection. It implements
// tts.Channel.
type channel struct {
	conn *websocket.Conn

	mu       sync.Mutex
	contexts map[string]chan []byte
	closed   bool

	done chan struct{}
	once sync.Once
}

// Synthesize submits one sentence in a fresh ElevenLabs context and returns
// the channel its audio chunks arrive on.
func (c *channel) Synthesize(ctx context.Context, text string) (<-chan []byte, error) {
	if text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}

	id := uuid.NewString()
	audio := make(chan []byte, 64)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, errors.New("elevenlabs: channel is closed")
	}
	c.contexts[id] = audio
	c.mu.Unlock()

	// ElevenLabs wants trailing whitespace on streamed text, and a flush to
	// force synthesis of a short sentence without waiting for more input.
	open := contextMessage{
		Text:      text + " ",
		ContextID: id,
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	if err := c.write(ctx, open); err != nil {
		c.dropContext(id)
		return nil, fmt.Errorf("elevenlabs: send text: %w", err)
	}
	if err := c.write(ctx, contextMessage{ContextID: id, Flush: true, CloseContext: true}); err != nil {
		c.dropContext(id)
		return nil, fmt.Errorf("elevenlabs: flush: %w", err)
	}

	return audio, nil
}

func (c *channel) write(ctx context.Context, msg contextMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, b)
}

// dropContext unregisters a context and closes its audio channel.
func (c *channel) dropContext(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if audio, ok := c.contexts[id]; ok {
		delete(c.contexts, id)
		close(audio)
	}
}

// readLoop receives audio messages and dispatches them to the owning context.
func (c *channel) readLoop() {
	defer func() {
		c.mu.Lock()
		for id, audio := range c.contexts {
			delete(c.contexts, id)
			close(audio)
		}
		c.mu.Unlock()
	}()

	for {
		_, msg, err := c.conn.Read(context.Background())
		if err != nil {
			return
		}

		var resp audioResponse
		if err := json.Unmarshal(msg, &resp); err != nil {
			continue
		}

		c.mu.Lock()
		audio, ok := c.contexts[resp.ContextID]
		c.mu.Unlock()
		if !ok {
			continue
		}

		if resp.Audio != "" {
			pcm, err := base64.StdEncoding.DecodeString(resp.Audio)
			if err == nil && len(pcm) > 0 {
				select {
				case audio <- pcm:
				case <-c.done:
					return
				}
			}
		}
		if resp.IsFinal {
			c.dropContext(resp.ContextID)
		}
	}
}

// Close terminates the synthesis connection. Safe to call more than once.
func (c *channel) Close() error {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
		c.conn.Close(websocket.StatusNormalClosure, "channel closed")
	})
	return nil
}

var _ tts.Channel = (*channel)(nil)

// ---- ListVoices ----

// voicesResponse is the top-level response from GET /v1/voices.
type voicesResponse struct {
	Voices []elevenLabsVoice `json:"voices"`
}

// elevenLabsVoice is a single voice entry from the ElevenLabs API.
type elevenLabsVoice struct {
	VoiceID  string            `json:"voice_id"`
	Name     string            `json:"name"`
	Category string            `json:"category"`
	Labels   map[string]string `json:"labels"`
}

// ListVoices returns all voices available from ElevenLabs for the configured API key.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, voicesEndpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs: list voices: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices read: %w", err)
	}
	profiles, err := parseVoicesResponse(body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: list voices decode: %w", err)
	}
	return profiles, nil
}

// parseVoicesResponse parses a raw JSON byte slice (matching the ElevenLabs
// /v1/voices response) into a slice of VoiceProfile values.
func parseVoicesResponse(data []byte) ([]types.VoiceProfile, error) {
	var vr voicesResponse
	if err := json.Unmarshal(data, &vr); err != nil {
		return nil, err
	}
	profiles := make([]types.VoiceProfile, 0, len(vr.Voices))
	for _, v := range vr.Voices {
		meta := make(map[string]string, len(v.Labels)+1)
		for k, val := range v.Labels {
			meta[k] = val
		}
		if v.Category != "" {
			meta["category"] = v.Category
		}
		profiles = append(profiles, types.VoiceProfile{
			ID:       v.VoiceID,
			Name:     v.Name,
			Provider: "elevenlabs",
			Metadata: meta,
		})
	}
	return profiles, nil
}

var _ tts.Provider = (*Provider)(nil)
