package tts

import (
	"context"
	"strings"
	"sync"
)

// defaultBatchSize is how many post-first audio chunks are coalesced per
// delivery. A tunable, not a correctness knob.
const defaultBatchSize = 3

// PipelineConfig configures a SentencePipeline.
type PipelineConfig struct {
	// OnAudioChunk fires once per delivered audio buffer, together with the
	// sentence the audio was synthesized from. Never fires after Abort. It is
	// invoked with the pipeline's internal lock held and must not call back
	// into the pipeline.
	OnAudioChunk func(buf []byte, sourceText string)

	// OnDone fires exactly once when every queued sentence has been
	// synthesized and delivered, or immediately on Abort.
	OnDone func()

	// BatchSize is how many chunks after the first are coalesced into one
	// delivery. The first chunk of a turn is always delivered alone, as soon
	// as it is ready. Default 3.
	BatchSize int

	// OwnsChannel marks the Channel as private to this pipeline: Abort and
	// turn completion then close it. A shared channel (OwnsChannel false, the
	// default) is never closed by the pipeline; only the owning session
	// closes it at session end.
	OwnsChannel bool
}

// SentencePipeline segments incrementally arriving text into sentences and
// synthesizes them strictly one at a time, in arrival order, so playback order
// always equals generation order. Construct one pipeline per conversational
// turn; the underlying Channel may be shared across turns.
type SentencePipeline struct {
	ch  Channel
	cfg PipelineConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	cond     *sync.Cond
	buf      string
	queue    []string
	aborted  bool
	finished bool

	doneOnce sync.Once
}

// NewSentencePipeline creates a pipeline over ch and starts its synthesis
// worker. ctx bounds the whole turn; cancelling it behaves like Abort.
func NewSentencePipeline(ctx context.Context, ch Channel, cfg PipelineConfig) *SentencePipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	pctx, cancel := context.WithCancel(ctx)
	p := &SentencePipeline{
		ch:     ch,
		cfg:    cfg,
		ctx:    pctx,
		cancel: cancel,
	}
	p.cond = sync.NewCond(&p.mu)
	context.AfterFunc(pctx, p.Abort)
	go p.run()
	return p
}

// FeedText appends a streaming text delta. Whenever the internal buffer
// contains a complete sentence (terminal punctuation followed by whitespace)
// it is extracted and queued for synthesis. No-op after Finish or Abort.
func (p *SentencePipeline) FeedText(delta string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted || p.finished {
		return
	}
	p.buf += delta
	queued := false
	for {
		sentence, rest, ok := splitFirstSentence(p.buf)
		if !ok {
			break
		}
		p.buf = rest
		if sentence != "" {
			p.queue = append(p.queue, sentence)
			queued = true
		}
	}
	if queued {
		p.cond.Signal()
	}
}

// Finish flushes any trailing partial sentence and marks the turn's text as
// complete. OnDone fires once the remaining queue drains. No-op if already
// finished or aborted.
func (p *SentencePipeline) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted || p.finished {
		return
	}
	p.finished = true
	if tail := strings.TrimSpace(p.buf); tail != "" {
		p.queue = append(p.queue, tail)
	}
	p.buf = ""
	p.cond.Signal()
}

// Abort immediately cancels in-flight and queued synthesis. Audio already
// delivered is not recalled, but OnAudioChunk never fires again afterward.
// OnDone fires immediately. Safe to call at any time, in any state, more than
// once.
func (p *SentencePipeline) Abort() {
	p.mu.Lock()
	already := p.aborted
	p.aborted = true
	p.finished = true
	p.buf = ""
	p.queue = nil
	p.cond.Signal()
	p.mu.Unlock()
	if already {
		return
	}

	p.cancel()
	if p.cfg.OwnsChannel {
		_ = p.ch.Close()
	}
	p.fireDone()
}

// run is the synthesis worker: one sentence at a time, each chained after the
// prior one's audio has been scheduled.
func (p *SentencePipeline) run() {
	firstChunk := true
	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.finished && !p.aborted {
			p.cond.Wait()
		}
		if p.aborted || (len(p.queue) == 0 && p.finished) {
			p.mu.Unlock()
			break
		}
		sentence := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		p.synthesizeOne(sentence, &firstChunk)
	}

	if p.cfg.OwnsChannel && !p.isAborted() {
		_ = p.ch.Close()
	}
	p.fireDone()
}

// synthesizeOne runs a single sentence through the Channel and delivers its
// audio, first chunk immediately, the rest coalesced into batches.
func (p *SentencePipeline) synthesizeOne(sentence string, firstChunk *bool) {
	audio, err := p.ch.Synthesize(p.ctx, sentence)
	if err != nil {
		return
	}

	var batch []byte
	batched := 0
	for chunk := range audio {
		if p.isAborted() {
			continue // drain so the sender is not blocked
		}
		if *firstChunk {
			// First audio of the turn goes out immediately to minimize
			// perceived latency.
			p.emit(chunk, sentence)
			*firstChunk = false
			continue
		}
		batch = append(batch, chunk...)
		batched++
		if batched >= p.cfg.BatchSize {
			p.emit(batch, sentence)
			batch = nil
			batched = 0
		}
	}
	if len(batch) > 0 {
		p.emit(batch, sentence)
	}
}

// emit delivers one audio buffer unless the pipeline was aborted. The aborted
// check and the callback happen under the lock so no chunk can slip out after
// Abort returns.
func (p *SentencePipeline) emit(buf []byte, sourceText string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aborted || p.cfg.OnAudioChunk == nil {
		return
	}
	p.cfg.OnAudioChunk(buf, sourceText)
}

func (p *SentencePipeline) isAborted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aborted
}

func (p *SentencePipeline) fireDone() {
	p.doneOnce.Do(func() {
		if p.cfg.OnDone != nil {
			p.cfg.OnDone()
		}
	})
}

// splitFirstSentence extracts the first complete sentence from buf. A sentence
// is complete at the first '.', '!' or '?' that is followed by whitespace;
// trailing punctuation without whitespace (a decimal point mid-number, or the
// very end of a delta that may continue) is not a boundary.
func splitFirstSentence(buf string) (sentence, rest string, ok bool) {
	for i := 0; i < len(buf)-1; i++ {
		c := buf[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		next := buf[i+1]
		if next == ' ' || next == '\t' || next == '\n' || next == '\r' {
			return strings.TrimSpace(buf[:i+1]), strings.TrimLeft(buf[i+1:], " \t\n\r"), true
		}
	}
	return "", buf, false
}
