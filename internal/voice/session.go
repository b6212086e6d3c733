// Package voice implements the browser-facing conversation session: the
// state machine that wires microphone audio through speech recognition into
// the LLM and streams the response back out through sentence-level synthesis.
//
// States move idle → listening → thinking → speaking → listening, with
// interruption and teardown paths back to listening and idle. Every
// transition fires the OnStateChange event, so clients can mirror the session
// state without polling.
package voice

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/haulvox/haulvox/internal/observe"
	"github.com/haulvox/haulvox/internal/prefetch"
	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/internal/transcript"
	"github.com/haulvox/haulvox/pkg/llm"
	"github.com/haulvox/haulvox/pkg/stt"
	"github.com/haulvox/haulvox/pkg/tts"
	"github.com/haulvox/haulvox/pkg/types"
)

// State is the browser session state.
type State string

const (
	StateIdle      State = "idle"
	StateListening State = "listening"
	StateThinking  State = "thinking"
	StateSpeaking  State = "speaking"
)

// Events carries the session's outbound callbacks. All fields are optional;
// nil callbacks are skipped. Callbacks must not block: they run on session
// goroutines in the real-time audio path.
type Events struct {
	// OnStateChange fires on every state transition.
	OnStateChange func(State)

	// OnPartial fires for every interim transcript, for live captions.
	OnPartial func(text string)

	// OnTranscript fires once per committed transcript entry (user and
	// assistant).
	OnTranscript func(types.TranscriptEntry)

	// OnActionItem fires once per action item extracted from a tool result.
	OnActionItem func(types.ActionItem)

	// OnAudioChunk delivers synthesized audio for playback.
	OnAudioChunk func(buf []byte, sourceText string)

	// OnError surfaces non-fatal pipeline errors. The session always recovers
	// to listening.
	OnError func(error)

	// OnSummary fires exactly once, at End, with the finished session record.
	OnSummary func(types.SessionSummary)
}

// Config assembles a Session's collaborators.
type Config struct {
	// SessionID identifies the session in logs and the summary.
	SessionID string

	// STT, TTS and LLM are the provider backends.
	STT stt.Provider
	TTS tts.Provider
	LLM llm.Provider

	// Stream is the recognition configuration for every STT connect.
	Stream stt.StreamConfig

	// Voice is the synthesis voice for the whole session.
	Voice types.VoiceProfile

	// SystemPrompt seeds the LLM conversation.
	SystemPrompt string

	// Registry supplies the invocable tools. Optional; without it the model
	// is offered no tools.
	Registry *tools.Registry

	// Prefetch, when set, runs the session-start context fetch and folds the
	// result into the history as a system message.
	Prefetch    *prefetch.Fetcher
	PrefetchReq prefetch.Request

	// Corrector, when set, fixes domain nouns in finalized user transcripts.
	Corrector *transcript.Corrector

	// Fillers holds pre-rendered audio cues played once per turn to mask
	// latency, keyed by tool name. The "" key is the generic cue.
	Fillers map[string][]byte

	// ConnectTimeout and FinalGrace tune the STT pipeline. Zero uses the
	// pipeline defaults.
	ConnectTimeout time.Duration
	FinalGrace     time.Duration

	// Metrics records instrumentation. Optional.
	Metrics *observe.Metrics

	Events Events
}

// Session is the browser-facing conversation orchestrator. All exported
// methods are safe for concurrent use.
type Session struct {
	cfg Config
	log *slog.Logger

	sttPipe *stt.UtterancePipeline

	mu          sync.Mutex
	state       State
	sharedCh    tts.Channel
	history     []types.Message
	entries     []types.TranscriptEntry
	actionItems []types.ActionItem
	startedAt   time.Time

	// pending buffers audio frames that arrive while the STT channel is
	// still connecting. Flushed in order on connect.
	pending   [][]byte
	sttReady  bool
	capturing bool

	// armed closes when the current background connect attempt settles, so
	// OnSpeechEnd can wait for a short utterance to catch up with its channel.
	armed chan struct{}

	// turnID identifies the current LLM turn; stale turn goroutines compare
	// against it before mutating session state.
	turnID     int
	turnCancel context.CancelFunc

	ended   bool
	endOnce sync.Once
}

// NewSession constructs a Session. It validates that the three providers are
// present; everything else is optional.
func NewSession(cfg Config) (*Session, error) {
	if cfg.STT == nil || cfg.TTS == nil || cfg.LLM == nil {
		return nil, fmt.Errorf("voice: STT, TTS and LLM providers are all required")
	}
	s := &Session{
		cfg:   cfg,
		log:   slog.Default().With("component", "voice", "session", cfg.SessionID),
		state: StateIdle,
	}
	s.sttPipe = stt.NewUtterancePipeline(cfg.STT, stt.PipelineConfig{
		Stream:         cfg.Stream,
		ConnectTimeout: cfg.ConnectTimeout,
		FinalGrace:     cfg.FinalGrace,
		OnPartial:      s.emitPartial,
		OnError:        s.emitError,
	})
	if cfg.SystemPrompt != "" {
		s.history = append(s.history, types.Message{Role: "system", Content: cfg.SystemPrompt})
	}
	return s, nil
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StartListening activates the session: it opens the shared TTS channel
// eagerly, pre-arms the first STT connection in the background, runs the
// best-effort context fetch, and transitions to listening.
func (s *Session) StartListening(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return fmt.Errorf("voice: start listening in state %q", s.state)
	}
	s.startedAt = time.Now()
	s.mu.Unlock()

	// Shared channel up front so the first response pays no per-turn
	// connection latency.
	ch, err := s.cfg.TTS.OpenChannel(ctx, s.cfg.Voice)
	if err != nil {
		return fmt.Errorf("voice: open synthesis channel: %w", err)
	}
	s.mu.Lock()
	s.sharedCh = ch
	s.mu.Unlock()

	if s.cfg.Prefetch != nil {
		snap := s.cfg.Prefetch.Fetch(ctx, s.cfg.PrefetchReq)
		if msg := snap.SystemMessage(); msg != "" {
			s.mu.Lock()
			s.history = append(s.history, types.Message{Role: "system", Content: msg})
			s.mu.Unlock()
		}
	}

	s.armSTT()
	s.setState(StateListening)
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.ActiveSessions.Add(ctx, 1)
	}
	return nil
}

// armSTT connects the next STT channel in the background so the coming
// utterance does not pay connection latency. Buffered frames are flushed in
// order once the channel is ready.
func (s *Session) armSTT() {
	armed := make(chan struct{})
	s.mu.Lock()
	s.armed = armed
	s.mu.Unlock()
	go func() {
		defer close(armed)
		if err := s.sttPipe.Connect(context.Background()); err != nil {
			s.emitError(err)
			return
		}
		s.mu.Lock()
		if s.ended {
			s.mu.Unlock()
			// End already ran its teardown; this channel connected after the
			// pipeline was closed and must not outlive the session.
			_ = s.sttPipe.Close()
			return
		}
		frames := s.pending
		s.pending = nil
		s.sttReady = true
		s.mu.Unlock()
		for _, f := range frames {
			if err := s.sttPipe.SendAudio(f); err != nil {
				return
			}
		}
	}()
}

// OnSpeechStart marks the start of a user utterance. A pre-armed STT channel
// is reused directly; otherwise frames are buffered locally until the
// connection completes, so nothing between speech-start and connect is lost.
func (s *Session) OnSpeechStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended || s.state == StateIdle {
		return
	}
	s.capturing = true
	if !s.sttReady {
		// armSTT is already connecting; frames queue in pending meanwhile.
		s.pending = nil
	}
}

// FeedAudio routes one PCM16 frame to the active STT channel, or to the
// local buffer while the channel is still connecting.
func (s *Session) FeedAudio(frame []byte) {
	s.mu.Lock()
	if s.ended || !s.capturing {
		s.mu.Unlock()
		return
	}
	if !s.sttReady {
		buf := make([]byte, len(frame))
		copy(buf, frame)
		s.pending = append(s.pending, buf)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	if err := s.sttPipe.SendAudio(frame); err != nil {
		s.emitError(err)
	}
}

// OnSpeechEnd closes the utterance, commits the transcript, and starts the
// LLM turn when the text is non-empty. The next STT channel is re-armed
// either way so the following utterance also benefits from pre-connection.
func (s *Session) OnSpeechEnd(ctx context.Context) {
	s.mu.Lock()
	if s.ended || !s.capturing {
		s.mu.Unlock()
		return
	}
	s.capturing = false
	armed := s.armed
	s.mu.Unlock()

	// A very short utterance can end before the background connect settles;
	// wait for it so buffered frames reach the channel before end-of-speech.
	if armed != nil {
		select {
		case <-armed:
		case <-ctx.Done():
		}
	}
	s.mu.Lock()
	s.sttReady = false
	s.mu.Unlock()

	start := time.Now()
	text, err := s.sttPipe.EndUtterance(ctx)
	if err != nil {
		s.emitError(err)
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.STTDuration.Record(ctx, time.Since(start).Seconds())
	}

	s.armSTT()

	if s.cfg.Corrector != nil && text != "" {
		corrected, corrections := s.cfg.Corrector.Correct(text)
		if len(corrections) > 0 {
			s.log.Debug("transcript corrected", "from", text, "to", corrected)
		}
		text = corrected
	}
	if text == "" {
		return
	}

	s.appendTranscript("user", text)
	s.startTurn(types.Message{Role: "user", Content: text})
}

// HandleUserMessage runs a turn for text that arrived as typed input rather
// than speech. It enters the same single-flight queue as spoken turns: any
// in-flight turn is aborted first.
func (s *Session) HandleUserMessage(text string) {
	if text == "" {
		return
	}
	s.appendTranscript("user", text)
	s.startTurn(types.Message{Role: "user", Content: text})
}

// InjectSystemMessage runs a turn for an asynchronous out-of-band event,
// such as a finished outbound call reporting its outcome. Same single-flight
// semantics as user input.
func (s *Session) InjectSystemMessage(text string) {
	if text == "" {
		return
	}
	s.startTurn(types.Message{Role: "system", Content: text})
}

// Interrupt is user-initiated barge-in: it aborts the in-flight LLM stream
// and synthesis immediately, discards undelivered audio, and returns to
// listening without waiting for the aborted turn to settle.
func (s *Session) Interrupt() {
	s.mu.Lock()
	cancel := s.turnCancel
	s.turnCancel = nil
	s.turnID++
	ended := s.ended
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if ended {
		return
	}
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordBargeIn(context.Background(), "browser")
	}
	s.setState(StateListening)
}

// End tears the session down: STT closed, in-flight turn aborted, shared
// synthesis channel closed, state back to idle. The session summary is
// emitted exactly once.
func (s *Session) End(ctx context.Context) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.ended = true
		cancel := s.turnCancel
		s.turnCancel = nil
		s.turnID++
		ch := s.sharedCh
		s.sharedCh = nil
		summary := types.SessionSummary{
			SessionID:   s.cfg.SessionID,
			Transcript:  append([]types.TranscriptEntry(nil), s.entries...),
			ActionItems: append([]types.ActionItem(nil), s.actionItems...),
			StartedAt:   s.startedAt,
			EndedAt:     time.Now(),
		}
		s.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		_ = s.sttPipe.Close()
		if ch != nil {
			_ = ch.Close()
		}
		s.setState(StateIdle)
		if s.cfg.Metrics != nil {
			s.cfg.Metrics.ActiveSessions.Add(ctx, -1)
		}
		if s.cfg.Events.OnSummary != nil {
			s.cfg.Events.OnSummary(summary)
		}
	})
}

// setState transitions the state machine and fires the observation event.
func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.state == next {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.mu.Unlock()
	if s.cfg.Events.OnStateChange != nil {
		s.cfg.Events.OnStateChange(next)
	}
}

func (s *Session) appendTranscript(role, text string) {
	entry := types.TranscriptEntry{Role: role, Text: text, Timestamp: time.Now()}
	s.mu.Lock()
	s.entries = append(s.entries, entry)
	s.mu.Unlock()
	if s.cfg.Events.OnTranscript != nil {
		s.cfg.Events.OnTranscript(entry)
	}
}

func (s *Session) emitPartial(text string) {
	if s.cfg.Events.OnPartial != nil {
		s.cfg.Events.OnPartial(text)
	}
}

func (s *Session) emitError(err error) {
	s.log.Warn("session error", "error", err)
	if s.cfg.Events.OnError != nil {
		s.cfg.Events.OnError(err)
	}
}
