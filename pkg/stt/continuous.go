package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Default timing values for continuous mode, overridable via ContinuousConfig.
const (
	defaultSilenceTimeout = 1200 * time.Millisecond
	defaultMaxSilence     = 15 * time.Second
)

// ContinuousConfig configures a ContinuousPipeline.
type ContinuousConfig struct {
	// Stream is the audio format and recognition configuration for the
	// long-lived session.
	Stream StreamConfig

	// SilenceTimeout is how long after the last recognition activity the
	// accumulated text is committed as a completed turn. Default 1.2s.
	SilenceTimeout time.Duration

	// MaxSilence is how long total silence (no recognition activity at all)
	// may last before OnMaxSilence fires. Default 15s. The timer re-arms
	// after firing, so a persistently dead line reports repeatedly.
	MaxSilence time.Duration

	// OnPartial, when set, receives every interim transcript. Partials reset
	// the silence timers but never commit a turn.
	OnPartial func(text string)

	// OnTurn receives the committed turn text once SilenceTimeout elapses
	// after the last final. Required.
	OnTurn func(text string)

	// OnMaxSilence, when set, fires after MaxSilence with no recognition
	// activity, letting the caller prompt the remote party.
	OnMaxSilence func()

	// OnError, when set, receives session errors.
	OnError func(err error)
}

// ContinuousPipeline keeps one STT session open for an entire conversation and
// segments the incoming recognition stream into turns using a silence timer:
// finals accumulate, and SilenceTimeout after the last activity the
// accumulated text is committed via OnTurn. Used for the telephone leg, where
// there is no push-to-talk signal.
type ContinuousPipeline struct {
	provider Provider
	cfg      ContinuousConfig

	mu         sync.Mutex
	handle     SessionHandle
	pending    []string
	turnTimer  *time.Timer
	quietTimer *time.Timer
	stopped    bool
	readerDone chan struct{}
}

// NewContinuousPipeline creates a pipeline over provider. OnTurn must be set.
// Zero timing fields take the package defaults.
func NewContinuousPipeline(provider Provider, cfg ContinuousConfig) (*ContinuousPipeline, error) {
	if cfg.OnTurn == nil {
		return nil, fmt.Errorf("stt: ContinuousConfig.OnTurn must be set")
	}
	if cfg.SilenceTimeout <= 0 {
		cfg.SilenceTimeout = defaultSilenceTimeout
	}
	if cfg.MaxSilence <= 0 {
		cfg.MaxSilence = defaultMaxSilence
	}
	return &ContinuousPipeline{provider: provider, cfg: cfg}, nil
}

// Start opens the long-lived session. Unlike the utterance pipeline there is
// no reconnect cycle; a continuous pipeline is started once per call.
func (p *ContinuousPipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.handle != nil {
		p.mu.Unlock()
		return fmt.Errorf("stt: continuous pipeline already started")
	}
	p.mu.Unlock()

	handle, err := p.provider.StartStream(ctx, p.cfg.Stream)
	if err != nil {
		return fmt.Errorf("stt: start continuous stream: %w", err)
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.handle = handle
	p.readerDone = done
	p.quietTimer = time.AfterFunc(p.cfg.MaxSilence, p.maxSilenceFired)
	p.mu.Unlock()

	go p.readLoop(handle, done)
	return nil
}

// SendAudio forwards a PCM16 chunk to the session.
func (p *ContinuousPipeline) SendAudio(chunk []byte) error {
	p.mu.Lock()
	handle := p.handle
	p.mu.Unlock()
	if handle == nil {
		return ErrNotConnected
	}
	return handle.SendAudio(chunk)
}

// Stop tears down the session and cancels all timers. Any uncommitted pending
// text is discarded; callers that need it should drain via OnTurn before
// stopping. Safe to call more than once.
func (p *ContinuousPipeline) Stop() error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	handle := p.handle
	done := p.readerDone
	if p.turnTimer != nil {
		p.turnTimer.Stop()
	}
	if p.quietTimer != nil {
		p.quietTimer.Stop()
	}
	p.mu.Unlock()

	if handle == nil {
		return nil
	}
	err := handle.Close()
	<-done
	return err
}

func (p *ContinuousPipeline) readLoop(handle SessionHandle, done chan struct{}) {
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
			p.activity(false, t.Text)
		case t, ok := <-finals:
			if !ok {
				finals = nil
				continue
			}
			if t.Text == "" {
				continue
			}
			p.activity(true, t.Text)
		}
	}
}

// activity records a recognition event. Finals append to the pending turn;
// both finals and partials reset the silence timers, since either proves the
// remote party is (still) talking.
func (p *ContinuousPipeline) activity(isFinal bool, text string) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if isFinal {
		p.pending = append(p.pending, text)
	}
	if p.turnTimer != nil {
		p.turnTimer.Stop()
	}
	if len(p.pending) > 0 {
		p.turnTimer = time.AfterFunc(p.cfg.SilenceTimeout, p.turnTimerFired)
	}
	if p.quietTimer != nil {
		p.quietTimer.Stop()
	}
	p.quietTimer = time.AfterFunc(p.cfg.MaxSilence, p.maxSilenceFired)
	p.mu.Unlock()

	if !isFinal && p.cfg.OnPartial != nil {
		p.cfg.OnPartial(text)
	}
}

func (p *ContinuousPipeline) turnTimerFired() {
	p.mu.Lock()
	if p.stopped || len(p.pending) == 0 {
		p.mu.Unlock()
		return
	}
	text := strings.Join(p.pending, " ")
	p.pending = nil
	p.mu.Unlock()

	p.cfg.OnTurn(text)
}

func (p *ContinuousPipeline) maxSilenceFired() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.quietTimer = time.AfterFunc(p.cfg.MaxSilence, p.maxSilenceFired)
	p.mu.Unlock()

	if p.cfg.OnMaxSilence != nil {
		p.cfg.OnMaxSilence()
	}
}
