// Package call implements the outbound telephone negotiation session: one
// Call per dialed broker, bridging the carrier media stream to the STT, LLM
// and TTS pipelines and producing a NegotiationResult when the call ends.
//
// States move idle → ringing → connected → negotiating → (completed | failed).
// The terminal states are final; ending an ended call is a no-op.
package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haulvox/haulvox/internal/config"
	"github.com/haulvox/haulvox/internal/observe"
	"github.com/haulvox/haulvox/pkg/audio"
	"github.com/haulvox/haulvox/pkg/llm"
	"github.com/haulvox/haulvox/pkg/stt"
	"github.com/haulvox/haulvox/pkg/telephony"
	"github.com/haulvox/haulvox/pkg/tts"
	"github.com/haulvox/haulvox/pkg/types"
)

// State is the call session state.
type State string

const (
	StateIdle        State = "idle"
	StateRinging     State = "ringing"
	StateConnected   State = "connected"
	StateNegotiating State = "negotiating"
	StateCompleted   State = "completed"
	StateFailed      State = "failed"
)

// fallbackGreeting is spoken when greeting generation fails or returns empty.
const fallbackGreeting = "Hi, this is the dispatch assistant calling about one of your posted loads. Do you have a minute?"

// Carrier is the slice of the carrier REST API the call needs.
type Carrier interface {
	Originate(ctx context.Context, req telephony.OriginateRequest) (string, error)
	Hangup(ctx context.Context, callSID string) error
}

// MediaStream is the outbound half of the carrier media socket: synthesized
// audio out, plus the clear signal that flushes queued-but-unplayed audio on
// barge-in.
type MediaStream interface {
	SendAudio(mulaw []byte) error
	Clear() error
}

// Request describes the negotiation to run.
type Request struct {
	// To is the broker's number in E.164 form. Required.
	To string

	// BrokerName and LoadID give the model its context.
	BrokerName string
	LoadID     string

	// TargetRate is the per-mile rate the driver wants, in dollars.
	TargetRate float64

	// Notes carries extra instructions from the driver.
	Notes string
}

// Config assembles a Call's collaborators.
type Config struct {
	Carrier Carrier
	STT     stt.Provider
	TTS     tts.Provider

	// LLM generates the negotiation turns. Wrap it in resilience.LLMFallback
	// to get the one-time rate-limit model switch.
	LLM llm.Provider

	Voice  types.VoiceProfile
	Stream stt.StreamConfig

	// PublicBaseURL is the externally reachable base for the media-stream
	// socket and status webhook, e.g. "https://dispatch.example.com".
	PublicBaseURL string

	Timings config.Timings
	Metrics *observe.Metrics

	// OnCompleted fires exactly once with the initial NegotiationResult. The
	// stored result may still be superseded afterwards; poll Result for the
	// finalized value.
	OnCompleted func(types.NegotiationResult)

	// OnStateChange and OnError observe the session. Optional.
	OnStateChange func(State)
	OnError       func(error)
}

// Call is one outbound telephone negotiation session.
type Call struct {
	cfg Config
	req Request
	id  string
	log *slog.Logger

	mu          sync.Mutex
	state       State
	carrierSID  string
	streamSID   string
	media       MediaStream
	preLink     []telephony.Envelope
	preSTT      [][]byte
	contin      *stt.ContinuousPipeline
	ttsCh       tts.Channel
	pipe        *tts.SentencePipeline
	speaking    bool
	detector    *bargeInDetector
	turnActive  bool
	pendingText []string
	turnCancel  context.CancelFunc
	history     []types.Message
	entries     []types.TranscriptEntry
	marker      *markerPayload
	markerSeen  bool
	endTimer    *time.Timer
	connectedAt time.Time
	result      types.NegotiationResult
	hasResult   bool

	greetOnce    sync.Once
	completeOnce sync.Once
}

// New validates the request and configuration and returns a Call in the idle
// state. Missing destination, credentials, callback base, or providers are
// fatal precondition errors raised here, before any network activity.
func New(req Request, cfg Config) (*Call, error) {
	if req.To == "" {
		return nil, errors.New("call: destination number is required")
	}
	if cfg.Carrier == nil {
		return nil, errors.New("call: carrier client is required")
	}
	if cfg.STT == nil || cfg.TTS == nil || cfg.LLM == nil {
		return nil, errors.New("call: STT, TTS and LLM providers are all required")
	}
	if cfg.PublicBaseURL == "" {
		return nil, errors.New("call: public base URL is required")
	}
	cfg.Timings = cfg.Timings.WithDefaults()
	id := uuid.NewString()
	return &Call{
		cfg:      cfg,
		req:      req,
		id:       id,
		log:      slog.Default().With("component", "call", "call_id", id),
		state:    StateIdle,
		detector: newBargeInDetector(cfg.Timings.BargeInThreshold, cfg.Timings.BargeInWindow, cfg.Timings.BargeInCount),
	}, nil
}

// ID returns the internally generated call identifier.
func (c *Call) ID() string { return c.id }

// CarrierSID returns the carrier-assigned call identifier, empty until the
// call has been originated.
func (c *Call) CarrierSID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.carrierSID
}

// State returns the current call state.
func (c *Call) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns the current negotiation result. Valid once the call has
// ended; until Finalized is true the stored value may still be superseded by
// the asynchronous transcript analysis.
func (c *Call) Result() (types.NegotiationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.hasResult
}

// Start places the outbound call and transitions to ringing.
func (c *Call) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fmt.Errorf("call: start in state %q", c.state)
	}
	c.mu.Unlock()

	base := strings.TrimRight(c.cfg.PublicBaseURL, "/")
	sid, err := c.cfg.Carrier.Originate(ctx, telephony.OriginateRequest{
		To:                c.req.To,
		StreamURL:         wsBase(base) + "/calls/media",
		StatusCallbackURL: base + "/calls/status",
		CallID:            c.id,
	})
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("call: originate: %w", err)
	}

	c.mu.Lock()
	c.carrierSID = sid
	c.mu.Unlock()
	c.setState(StateRinging)
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ActiveCalls.Add(ctx, 1)
	}
	c.log.Info("call originated", "to", c.req.To, "carrier_sid", sid)
	return nil
}

// AttachMedia links the carrier media socket to the session and replays, in
// order, any envelopes that arrived before the linkage completed. No inbound
// audio is lost to the race between socket-accept and session lookup.
func (c *Call) AttachMedia(ms MediaStream) {
	c.mu.Lock()
	c.media = ms
	buffered := c.preLink
	c.preLink = nil
	c.mu.Unlock()
	for _, env := range buffered {
		c.dispatchEnvelope(env)
	}
}

// HandleEnvelope processes one inbound media-stream message. Envelopes
// arriving before AttachMedia are buffered and replayed on linkage.
func (c *Call) HandleEnvelope(env telephony.Envelope) {
	c.mu.Lock()
	if c.media == nil {
		c.preLink = append(c.preLink, env)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	c.dispatchEnvelope(env)
}

func (c *Call) dispatchEnvelope(env telephony.Envelope) {
	switch env.Event {
	case telephony.EventStart:
		if env.Start != nil {
			c.mu.Lock()
			c.streamSID = env.Start.StreamSID
			c.mu.Unlock()
		}
		c.onStreamStart()
	case telephony.EventMedia:
		frame, err := telephony.DecodeMediaFrame(env)
		if err != nil {
			c.emitError(err)
			return
		}
		c.handleFrame(frame)
	case telephony.EventStop:
		c.End("media stream stopped")
	}
}

// HandleStatus applies one carrier status webhook.
func (c *Call) HandleStatus(upd telephony.StatusUpdate) {
	switch {
	case upd.Status == telephony.CallStatusInProgress:
		c.mu.Lock()
		ringing := c.state == StateRinging
		c.mu.Unlock()
		if ringing {
			c.setState(StateConnected)
		}
	case upd.Status == telephony.CallStatusCompleted:
		c.End("carrier reported completed")
	case telephony.IsTerminalStatus(upd.Status):
		c.Fail("carrier reported " + upd.Status)
	}
}

// onStreamStart opens the synthesis channel and speaks the greeting. Runs its
// body once; duplicate start events are ignored.
func (c *Call) onStreamStart() {
	c.greetOnce.Do(func() {
		c.mu.Lock()
		if c.terminalLocked() {
			c.mu.Unlock()
			return
		}
		c.connectedAt = time.Now()
		c.mu.Unlock()
		c.setState(StateConnected)

		ch, err := c.cfg.TTS.OpenChannel(context.Background(), c.cfg.Voice)
		if err != nil {
			c.emitError(fmt.Errorf("call: open synthesis channel: %w", err))
			c.Fail("synthesis channel failed")
			return
		}
		c.mu.Lock()
		c.ttsCh = &segmentedChannel{inner: ch, limit: tts.DefaultTransportLimit}
		c.mu.Unlock()

		go c.sendGreeting()
	})
}

// sendGreeting generates and speaks the opening line, then starts continuous
// transcription and the silence timers.
func (c *Call) sendGreeting() {
	greeting := fallbackGreeting
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	resp, err := c.cfg.LLM.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{
			{Role: "system", Content: c.greetingPrompt()},
			{Role: "user", Content: "Generate the opening line now."},
		},
		MaxTokens: 100,
	})
	cancel()
	if err != nil {
		c.log.Warn("greeting generation failed, using fallback", "error", err)
	} else if resp != nil && strings.TrimSpace(resp.Content) != "" {
		greeting = strings.TrimSpace(resp.Content)
	}

	c.mu.Lock()
	c.history = append(c.history, types.Message{Role: "assistant", Content: greeting})
	c.mu.Unlock()
	c.appendTranscript("assistant", greeting)

	c.speak(context.Background(), greeting, c.startListening)
}

// startListening opens the continuous STT session, flushes any buffered
// inbound audio into it, and moves to negotiating.
func (c *Call) startListening() {
	c.mu.Lock()
	if c.terminalLocked() || c.contin != nil {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	contin, err := stt.NewContinuousPipeline(c.cfg.STT, stt.ContinuousConfig{
		Stream:         c.cfg.Stream,
		SilenceTimeout: c.cfg.Timings.SilenceTimeout,
		MaxSilence:     c.cfg.Timings.MaxSilence,
		OnTurn:         c.onTurn,
		OnMaxSilence:   c.onMaxSilence,
		OnError:        c.emitError,
	})
	if err != nil {
		c.emitError(err)
		return
	}
	if err := contin.Start(context.Background()); err != nil {
		c.emitError(err)
		c.Fail("transcription failed to start")
		return
	}

	c.mu.Lock()
	c.contin = contin
	frames := c.preSTT
	c.preSTT = nil
	c.mu.Unlock()
	for _, f := range frames {
		_ = contin.SendAudio(audio.TelephoneToSTT(f))
	}
	c.setState(StateNegotiating)
}

// handleFrame routes one inbound mu-law frame. While the system is speaking,
// frames feed the energy detector instead of STT; a barge-in trigger aborts
// synthesis, clears carrier-side playback, and replays the trigger window
// into STT so the interruption's speech is kept.
func (c *Call) handleFrame(mulaw []byte) {
	c.mu.Lock()
	if c.terminalLocked() {
		c.mu.Unlock()
		return
	}
	speaking := c.speaking
	contin := c.contin
	if !speaking && contin == nil {
		// Audio before transcription is up; flushed by startListening.
		buf := make([]byte, len(mulaw))
		copy(buf, mulaw)
		c.preSTT = append(c.preSTT, buf)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	if speaking {
		if c.detector.Feed(mulaw) {
			c.bargeIn()
		}
		return
	}
	if err := contin.SendAudio(audio.TelephoneToSTT(mulaw)); err != nil && !errors.Is(err, stt.ErrNotConnected) {
		c.emitError(err)
	}
}

// bargeIn aborts in-flight synthesis, flushes carrier-side queued playback,
// and redirects the detector's frame window into STT.
func (c *Call) bargeIn() {
	c.mu.Lock()
	pipe := c.pipe
	media := c.media
	streamClear := c.speaking
	c.speaking = false
	contin := c.contin
	c.mu.Unlock()
	if !streamClear {
		return
	}

	c.log.Debug("barge-in detected")
	window := c.detector.Window()
	if contin == nil {
		// Interruption during the greeting: transcription is not up yet, so
		// the trigger window joins the pre-listen buffer. Buffered before the
		// abort, whose completion hands over to startListening.
		c.mu.Lock()
		c.preSTT = append(c.preSTT, window...)
		c.mu.Unlock()
	}
	if pipe != nil {
		pipe.Abort()
	}
	if media != nil {
		if err := media.Clear(); err != nil {
			c.emitError(err)
		}
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordBargeIn(context.Background(), "phone")
	}
	if contin != nil {
		for _, f := range window {
			_ = contin.SendAudio(audio.TelephoneToSTT(f))
		}
	}
}

// onTurn receives one committed remote-party turn from the silence timer.
// Trivial fragments are ignored; text arriving while a turn is in flight is
// held and picked up at the next gap instead of running concurrently.
func (c *Call) onTurn(text string) {
	text = strings.TrimSpace(text)
	if len(text) < 2 {
		return
	}
	c.mu.Lock()
	if c.terminalLocked() {
		c.mu.Unlock()
		return
	}
	if c.turnActive {
		c.pendingText = append(c.pendingText, text)
		c.mu.Unlock()
		return
	}
	c.turnActive = true
	c.mu.Unlock()
	go c.runTurn(text, "user")
}

// onMaxSilence fires when the remote party has produced nothing for the
// configured window; the call proactively prompts rather than hanging
// silently forever.
func (c *Call) onMaxSilence() {
	c.mu.Lock()
	if c.terminalLocked() || c.turnActive {
		c.mu.Unlock()
		return
	}
	c.turnActive = true
	c.mu.Unlock()
	c.log.Debug("max silence reached, prompting remote party")
	go c.runTurn("The other party has gone quiet. Briefly and politely prompt them for a response.", "system")
}

// runTurn drives one negotiation exchange: stream the LLM response, screen
// every delta for the end-of-negotiation marker, and speak the marker-free
// text sentence by sentence.
func (c *Call) runTurn(text, role string) {
	if role == "user" {
		c.appendTranscript("user", text)
	}
	c.mu.Lock()
	c.history = append(c.history, types.Message{Role: role, Content: text})
	messages := append([]types.Message{{Role: "system", Content: c.negotiationPrompt()}}, c.history...)
	ctx, cancel := context.WithCancel(context.Background())
	c.turnCancel = cancel
	c.mu.Unlock()

	start := time.Now()
	stream, err := c.cfg.LLM.StreamCompletion(ctx, llm.CompletionRequest{Messages: messages})
	if err != nil {
		// All models failed; end the turn unspoken and resume listening.
		if ctx.Err() == nil {
			c.emitError(err)
		}
		c.finishTurn()
		return
	}

	pipe := c.newSpeakingPipeline(ctx, nil)
	filter := &markerFilter{}
	var full strings.Builder
	for chunk := range stream {
		if chunk.Text == "" {
			continue
		}
		full.WriteString(chunk.Text)
		if safe := filter.Feed(chunk.Text); safe != "" {
			pipe.FeedText(safe)
		}
	}
	if tail := filter.Flush(); tail != "" {
		pipe.FeedText(tail)
	}
	pipe.Finish()

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.LLMDuration.Record(ctx, time.Since(start).Seconds())
	}
	if ctx.Err() != nil {
		c.finishTurn()
		return
	}

	spoken := stripMarker(full.String())
	if spoken != "" {
		c.mu.Lock()
		c.history = append(c.history, types.Message{Role: "assistant", Content: spoken})
		c.mu.Unlock()
		c.appendTranscript("assistant", spoken)
	}
	if payload, found := filter.Marker(); found {
		c.scheduleEnd(payload)
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordTurn(context.Background(), "phone")
	}
	c.finishTurn()
}

// finishTurn releases the single-flight guard, or chains straight into the
// next turn when text accumulated meanwhile.
func (c *Call) finishTurn() {
	c.mu.Lock()
	c.turnCancel = nil
	if len(c.pendingText) > 0 && !c.terminalLocked() {
		next := strings.Join(c.pendingText, " ")
		c.pendingText = nil
		c.mu.Unlock()
		go c.runTurn(next, "user")
		return
	}
	c.turnActive = false
	c.mu.Unlock()
}

// scheduleEnd records the structured outcome and arranges call termination
// after the grace delay, so the closing line finishes playing first.
func (c *Call) scheduleEnd(payload *markerPayload) {
	c.mu.Lock()
	if c.terminalLocked() || c.markerSeen {
		c.mu.Unlock()
		return
	}
	c.markerSeen = true
	c.marker = payload
	c.endTimer = time.AfterFunc(c.cfg.Timings.EndGrace, func() {
		c.End("negotiation concluded")
	})
	c.mu.Unlock()
	c.log.Info("end-of-negotiation marker detected")
}

// newSpeakingPipeline builds a synthesis pipeline wiring audio out to the
// carrier in mu-law and tracking the speaking flag for barge-in. onDone, if
// set, runs after all audio has been delivered or the pipeline was aborted.
func (c *Call) newSpeakingPipeline(ctx context.Context, onDone func()) *tts.SentencePipeline {
	c.mu.Lock()
	ch := c.ttsCh
	media := c.media
	c.mu.Unlock()
	if ch == nil {
		ch = noopChannel{}
	}

	pipe := tts.NewSentencePipeline(ctx, ch, tts.PipelineConfig{
		OnAudioChunk: func(buf []byte, _ string) {
			if media == nil {
				return
			}
			if err := media.SendAudio(audio.SynthesisToTelephone(buf)); err != nil {
				c.emitError(err)
			}
		},
		OnDone: func() {
			c.mu.Lock()
			c.speaking = false
			c.pipe = nil
			c.mu.Unlock()
			c.detector.Reset()
			if onDone != nil {
				onDone()
			}
		},
	})
	c.mu.Lock()
	c.pipe = pipe
	c.speaking = true
	c.mu.Unlock()
	return pipe
}

// speak synthesizes one standalone line (outside the LLM turn path) and runs
// onDone after the audio has been fully delivered.
func (c *Call) speak(ctx context.Context, text string, onDone func()) {
	pipe := c.newSpeakingPipeline(ctx, onDone)
	pipe.FeedText(text)
	pipe.Finish()
}

// End terminates the call as completed. Idempotent.
func (c *Call) End(reason string) { c.finish(StateCompleted, reason) }

// Fail terminates the call as failed. Idempotent.
func (c *Call) Fail(reason string) { c.finish(StateFailed, reason) }

// finish is the single teardown path: stops timers and pipelines, computes
// the initial NegotiationResult, notifies the completion callback exactly
// once, and requests carrier-side termination.
func (c *Call) finish(final State, reason string) {
	c.mu.Lock()
	if c.terminalLocked() {
		c.mu.Unlock()
		return
	}
	if c.endTimer != nil {
		c.endTimer.Stop()
		c.endTimer = nil
	}
	cancel := c.turnCancel
	c.turnCancel = nil
	pipe := c.pipe
	c.pipe = nil
	c.speaking = false
	contin := c.contin
	ch := c.ttsCh
	c.ttsCh = nil
	sid := c.carrierSID
	connectedAt := c.connectedAt
	marker := c.marker
	markerSeen := c.markerSeen
	transcript := append([]types.TranscriptEntry(nil), c.entries...)
	// Committing the terminal state inside this critical section is what makes
	// racing End and Fail callers settle on one winner: the loser sees
	// terminalLocked above and returns without tearing down again.
	c.state = final
	c.mu.Unlock()

	c.log.Info("call ending", "state", final, "reason", reason)
	if cancel != nil {
		cancel()
	}
	if pipe != nil {
		pipe.Abort()
	}
	if contin != nil {
		_ = contin.Stop()
	}
	if ch != nil {
		_ = ch.Close()
	}

	var duration time.Duration
	if !connectedAt.IsZero() {
		duration = time.Since(connectedAt)
	}

	result := types.NegotiationResult{
		Transcript:   transcript,
		CallDuration: duration,
		Generation:   1,
	}
	analyze := false
	switch {
	case markerSeen && marker != nil:
		result.Agreed = marker.Agreed
		result.NegotiatedRate = marker.Rate
		result.NegotiatedRatePerMile = marker.RatePerMile
		result.Finalized = true
	case len(transcript) > 0:
		result.Notes = "no structured outcome signal; analyzing transcript"
		analyze = true
	default:
		result.Notes = "call ended before any conversation: " + reason
		result.Finalized = true
	}

	c.mu.Lock()
	c.result = result
	c.hasResult = true
	c.mu.Unlock()
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(final)
	}

	c.completeOnce.Do(func() {
		if c.cfg.OnCompleted != nil {
			c.cfg.OnCompleted(result)
		}
	})
	if analyze {
		go c.analyzeTranscript(transcript, duration)
	}

	if sid != "" {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := c.cfg.Carrier.Hangup(ctx, sid); err != nil {
				c.log.Warn("carrier hangup failed", "error", err)
			}
		}()
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.ActiveCalls.Add(context.Background(), -1)
	}
}

// analysisOutcome is the JSON shape the secondary analysis pass must return.
type analysisOutcome struct {
	Agreed      bool    `json:"agreed"`
	Rate        float64 `json:"rate"`
	RatePerMile float64 `json:"rate_per_mile"`
}

// analyzeTranscript is the fallback outcome detection for calls that ended
// without a structured marker: one non-streaming completion over the full
// transcript. Its verdict supersedes the placeholder result; any failure
// leaves the placeholder in place, finalized, as "outcome unknown".
func (c *Call) analyzeTranscript(transcript []types.TranscriptEntry, duration time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var b strings.Builder
	for _, e := range transcript {
		b.WriteString(e.Role + ": " + e.Text + "\n")
	}
	resp, err := c.cfg.LLM.Complete(ctx, llm.CompletionRequest{
		Messages: []types.Message{
			{Role: "system", Content: "You analyze a freight rate negotiation transcript. Respond with only a JSON object: {\"agreed\": bool, \"rate\": total dollars or 0, \"rate_per_mile\": dollars per mile or 0}. No prose."},
			{Role: "user", Content: b.String()},
		},
	})

	outcome, perr := parseAnalysis(resp, err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result.Finalized {
		return
	}
	if perr != nil {
		c.log.Warn("transcript analysis failed", "error", perr)
		c.result.Notes = "no structured outcome signal; analysis failed, outcome unknown"
		c.result.Finalized = true
		return
	}
	c.result = types.NegotiationResult{
		Agreed:                outcome.Agreed,
		NegotiatedRate:        outcome.Rate,
		NegotiatedRatePerMile: outcome.RatePerMile,
		Transcript:            transcript,
		CallDuration:          duration,
		Notes:                 "outcome derived from transcript analysis",
		Generation:            c.result.Generation + 1,
		Finalized:             true,
	}
}

// terminalLocked reports whether the call is in a final state. Callers hold mu.
func (c *Call) terminalLocked() bool {
	return c.state == StateCompleted || c.state == StateFailed
}

func (c *Call) setState(next State) {
	c.mu.Lock()
	if c.state == next {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()
	if c.cfg.OnStateChange != nil {
		c.cfg.OnStateChange(next)
	}
}

func (c *Call) appendTranscript(role, text string) {
	c.mu.Lock()
	c.entries = append(c.entries, types.TranscriptEntry{Role: role, Text: text, Timestamp: time.Now()})
	c.mu.Unlock()
}

func (c *Call) emitError(err error) {
	c.log.Warn("call error", "error", err)
	if c.cfg.OnError != nil {
		c.cfg.OnError(err)
	}
}

// wsBase rewrites an http(s) base URL to its websocket scheme.
func wsBase(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}
