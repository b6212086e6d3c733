package call

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulvox/haulvox/internal/config"
	"github.com/haulvox/haulvox/pkg/llm"
	sttmock "github.com/haulvox/haulvox/pkg/stt/mock"
	"github.com/haulvox/haulvox/pkg/telephony"
	ttsmock "github.com/haulvox/haulvox/pkg/tts/mock"
	"github.com/haulvox/haulvox/pkg/types"
)

type fakeCarrier struct {
	mu         sync.Mutex
	sid        string
	originates []telephony.OriginateRequest
	hangups    []string
}

func (f *fakeCarrier) Originate(_ context.Context, req telephony.OriginateRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.originates = append(f.originates, req)
	return f.sid, nil
}

func (f *fakeCarrier) Hangup(_ context.Context, callSID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hangups = append(f.hangups, callSID)
	return nil
}

func (f *fakeCarrier) hangupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.hangups)
}

type fakeMedia struct {
	mu     sync.Mutex
	audio  [][]byte
	clears int
}

func (m *fakeMedia) SendAudio(mulaw []byte) error {
	cp := make([]byte, len(mulaw))
	copy(cp, mulaw)
	m.mu.Lock()
	m.audio = append(m.audio, cp)
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) Clear() error {
	m.mu.Lock()
	m.clears++
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) clearCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

func (m *fakeMedia) audioCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.audio)
}

// fakeLLM pops scripted responses per call: completions for the greeting and
// the analysis pass, chunk sequences for the negotiation turns.
type fakeLLM struct {
	mu          sync.Mutex
	completes   []string
	streams     [][]llm.Chunk
	streamCalls []llm.CompletionRequest
}

func (f *fakeLLM) Complete(_ context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.completes) == 0 {
		return &llm.CompletionResponse{}, nil
	}
	content := f.completes[0]
	f.completes = f.completes[1:]
	return &llm.CompletionResponse{Content: content}, nil
}

func (f *fakeLLM) StreamCompletion(_ context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	f.mu.Lock()
	f.streamCalls = append(f.streamCalls, req)
	var chunks []llm.Chunk
	if len(f.streams) > 0 {
		chunks = f.streams[0]
		f.streams = f.streams[1:]
	}
	f.mu.Unlock()
	ch := make(chan llm.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) Capabilities() types.ModelCapabilities { return types.ModelCapabilities{} }

func (f *fakeLLM) streamCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streamCalls)
}

func testTimings() config.Timings {
	t := config.DefaultTimings()
	t.SilenceTimeout = 20 * time.Millisecond
	t.MaxSilence = 500 * time.Millisecond
	t.EndGrace = 30 * time.Millisecond
	t.RetainFor = 50 * time.Millisecond
	return t
}

type callFixture struct {
	call    *Call
	carrier *fakeCarrier
	media   *fakeMedia
	model   *fakeLLM
	sttSess *sttmock.Session
	ttsCh   *ttsmock.Channel
	states  *[]State
	results *[]types.NegotiationResult
	mu      *sync.Mutex
}

func newFixture(t *testing.T, model *fakeLLM, mutate func(*Config)) *callFixture {
	t.Helper()
	carrier := &fakeCarrier{sid: "CA-test-1"}
	sttSess := sttmock.NewSession()
	ttsCh := &ttsmock.Channel{}
	var mu sync.Mutex
	var states []State
	var results []types.NegotiationResult

	cfg := Config{
		Carrier:       carrier,
		STT:           &sttmock.Provider{Session: sttSess},
		TTS:           &ttsmock.Provider{Channel: ttsCh},
		LLM:           model,
		PublicBaseURL: "https://dispatch.example.com",
		Timings:       testTimings(),
		OnStateChange: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
		OnCompleted: func(r types.NegotiationResult) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(Request{
		To:         "+15550001111",
		BrokerName: "Apex Logistics",
		LoadID:     "LD-88",
		TargetRate: 3.5,
	}, cfg)
	require.NoError(t, err)
	return &callFixture{
		call: c, carrier: carrier, media: &fakeMedia{}, model: model,
		sttSess: sttSess, ttsCh: ttsCh, states: &states, results: &results, mu: &mu,
	}
}

func (fx *callFixture) resultCount() int {
	fx.mu.Lock()
	defer fx.mu.Unlock()
	return len(*fx.results)
}

func (fx *callFixture) startEnvelope() telephony.Envelope {
	return telephony.Envelope{
		Event: telephony.EventStart,
		Start: &telephony.StartPayload{
			CallSID:          "CA-test-1",
			StreamSID:        "MZ-test-1",
			CustomParameters: map[string]string{"callId": fx.call.ID()},
		},
	}
}

func mediaEnvelope(mulaw []byte) telephony.Envelope {
	return telephony.Envelope{
		Event: telephony.EventMedia,
		Media: &telephony.MediaPayload{Payload: base64.StdEncoding.EncodeToString(mulaw)},
	}
}

func waitCall(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestNew_PreconditionFailures(t *testing.T) {
	base := Config{
		Carrier:       &fakeCarrier{},
		STT:           &sttmock.Provider{},
		TTS:           &ttsmock.Provider{},
		LLM:           &fakeLLM{},
		PublicBaseURL: "https://x.example.com",
	}

	_, err := New(Request{}, base)
	assert.ErrorContains(t, err, "destination")

	cfg := base
	cfg.Carrier = nil
	_, err = New(Request{To: "+15550001111"}, cfg)
	assert.ErrorContains(t, err, "carrier")

	cfg = base
	cfg.PublicBaseURL = ""
	_, err = New(Request{To: "+15550001111"}, cfg)
	assert.ErrorContains(t, err, "base URL")

	cfg = base
	cfg.LLM = nil
	_, err = New(Request{To: "+15550001111"}, cfg)
	assert.Error(t, err)
}

func TestStart_OriginatesWithStreamLinkage(t *testing.T) {
	fx := newFixture(t, &fakeLLM{}, nil)
	require.NoError(t, fx.call.Start(context.Background()))

	assert.Equal(t, StateRinging, fx.call.State())
	assert.Equal(t, "CA-test-1", fx.call.CarrierSID())
	require.Len(t, fx.carrier.originates, 1)
	req := fx.carrier.originates[0]
	assert.Equal(t, "+15550001111", req.To)
	assert.Equal(t, "wss://dispatch.example.com/calls/media", req.StreamURL)
	assert.Equal(t, "https://dispatch.example.com/calls/status", req.StatusCallbackURL)
	assert.Equal(t, fx.call.ID(), req.CallID)
}

func TestCall_AgreementScenario(t *testing.T) {
	model := &fakeLLM{
		completes: []string{"Hi, this is dispatch calling about load LD-88."},
		streams: [][]llm.Chunk{{
			{Text: "Great, three seventy five per mile works. "},
			{Text: `[CALL_END:{"agreed":true,"rate":1875,"rate_per_mile":3.75}]`},
			{FinishReason: "stop"},
		}},
	}
	fx := newFixture(t, model, nil)
	require.NoError(t, fx.call.Start(context.Background()))

	fx.call.AttachMedia(fx.media)
	fx.call.HandleEnvelope(fx.startEnvelope())

	// Greeting is generated, spoken, and transcription starts.
	waitCall(t, "negotiating state", func() bool { return fx.call.State() == StateNegotiating })
	assert.Positive(t, fx.media.audioCount(), "greeting audio must reach the carrier")

	// The remote party answers; the silence timer commits the turn.
	fx.sttSess.EmitFinal("can you do three seventy five")
	waitCall(t, "call completion", func() bool {
		_, ok := fx.call.Result()
		return fx.call.State() == StateCompleted && ok
	})

	result, ok := fx.call.Result()
	require.True(t, ok)
	assert.True(t, result.Agreed)
	assert.Equal(t, 3.75, result.NegotiatedRatePerMile)
	assert.Equal(t, 1875.0, result.NegotiatedRate)
	assert.True(t, result.Finalized)
	require.Equal(t, 1, fx.resultCount(), "completion callback must fire exactly once")

	for _, e := range result.Transcript {
		assert.NotContains(t, e.Text, "[CALL_END", "marker must never reach the transcript")
	}
	for _, sentence := range fx.ttsCh.Calls() {
		assert.NotContains(t, sentence, "CALL_END", "marker must never reach synthesis")
	}
	waitCall(t, "carrier hangup", func() bool { return fx.carrier.hangupCount() == 1 })
}

func TestCall_BargeInDuringGreeting(t *testing.T) {
	gate := make(chan struct{})
	model := &fakeLLM{completes: []string{"Hello, quick question about your load posting today."}}
	fx := newFixture(t, model, nil)
	fx.ttsCh.Gate = gate

	require.NoError(t, fx.call.Start(context.Background()))
	fx.call.AttachMedia(fx.media)
	fx.call.HandleEnvelope(fx.startEnvelope())

	// Synthesis is held at the gate, so the call is mid-speech.
	waitCall(t, "synthesis start", func() bool { return len(fx.ttsCh.Calls()) >= 1 })

	for i := 0; i < 5; i++ {
		fx.call.HandleEnvelope(mediaEnvelope(loudFrame(160)))
	}
	waitCall(t, "carrier-side clear", func() bool { return fx.media.clearCount() == 1 })

	// Aborting the greeting still hands the call over to listening, and the
	// speech that caused the interruption reaches transcription.
	waitCall(t, "negotiating state", func() bool { return fx.call.State() == StateNegotiating })
	assert.Equal(t, 5, fx.sttSess.SendAudioCallCount(), "trigger window frames must be flushed into transcription")
}

func TestCall_MaxSilenceProactivePrompt(t *testing.T) {
	model := &fakeLLM{
		completes: []string{"Hi there, calling about load LD-88."},
		streams: [][]llm.Chunk{{
			{Text: "Are you still with me?"},
			{FinishReason: "stop"},
		}},
	}
	fx := newFixture(t, model, func(cfg *Config) {
		cfg.Timings.MaxSilence = 60 * time.Millisecond
	})
	require.NoError(t, fx.call.Start(context.Background()))
	fx.call.AttachMedia(fx.media)
	fx.call.HandleEnvelope(fx.startEnvelope())
	waitCall(t, "negotiating state", func() bool { return fx.call.State() == StateNegotiating })

	// No inbound speech at all: the orchestrator must prompt on its own.
	waitCall(t, "proactive prompt turn", func() bool { return model.streamCallCount() >= 1 })

	model.mu.Lock()
	msgs := model.streamCalls[0].Messages
	model.mu.Unlock()
	assert.Equal(t, "system", msgs[len(msgs)-1].Role, "prompt must be system-injected, not attributed to the remote party")
	assert.Equal(t, StateNegotiating, fx.call.State())
}

func TestCall_DroppedCallAnalysisSupersedesPlaceholder(t *testing.T) {
	model := &fakeLLM{
		completes: []string{
			"Hi, dispatch here about load LD-88.",
			`{"agreed": true, "rate": 900, "rate_per_mile": 2.1}`,
		},
	}
	fx := newFixture(t, model, nil)
	require.NoError(t, fx.call.Start(context.Background()))
	fx.call.AttachMedia(fx.media)
	fx.call.HandleEnvelope(fx.startEnvelope())
	waitCall(t, "negotiating state", func() bool { return fx.call.State() == StateNegotiating })

	fx.call.End("remote hung up")

	// The placeholder comes back immediately, not yet finalized.
	result, ok := fx.call.Result()
	require.True(t, ok)
	assert.False(t, result.Agreed)
	assert.Equal(t, 1, result.Generation)
	require.Equal(t, 1, fx.resultCount())

	// The async analysis pass supersedes it.
	waitCall(t, "analysis supersede", func() bool {
		r, _ := fx.call.Result()
		return r.Finalized
	})
	result, _ = fx.call.Result()
	assert.True(t, result.Agreed)
	assert.Equal(t, 2.1, result.NegotiatedRatePerMile)
	assert.Equal(t, 2, result.Generation)
	require.Equal(t, 1, fx.resultCount(), "supersede must not re-fire the completion callback")
}

func TestCall_EndIsIdempotent(t *testing.T) {
	fx := newFixture(t, &fakeLLM{}, nil)
	require.NoError(t, fx.call.Start(context.Background()))

	fx.call.End("done")
	fx.call.End("done again")
	fx.call.Fail("too late to fail")

	assert.Equal(t, StateCompleted, fx.call.State())
	assert.Equal(t, 1, fx.resultCount())
}

func TestCall_ConcurrentEndAndFailTearDownOnce(t *testing.T) {
	// End (media stop) and Fail (status webhook) arrive on different
	// goroutines in production; only one may run the teardown.
	for i := 0; i < 20; i++ {
		fx := newFixture(t, &fakeLLM{}, nil)
		require.NoError(t, fx.call.Start(context.Background()))

		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			fx.call.End("media stream stopped")
		}()
		go func() {
			defer wg.Done()
			<-start
			fx.call.Fail("carrier reported no-answer")
		}()
		close(start)
		wg.Wait()

		st := fx.call.State()
		require.True(t, st == StateCompleted || st == StateFailed, "state = %v", st)
		require.Equal(t, 1, fx.resultCount(), "completion callback must fire exactly once")

		waitCall(t, "carrier hangup", func() bool { return fx.carrier.hangupCount() >= 1 })
		require.Equal(t, 1, fx.carrier.hangupCount(), "racing terminations must request one hangup")
	}
}

func TestCall_PreLinkageEnvelopesReplayedInOrder(t *testing.T) {
	model := &fakeLLM{completes: []string{"Hello from dispatch."}}
	fx := newFixture(t, model, nil)
	require.NoError(t, fx.call.Start(context.Background()))

	// Start and media arrive before the socket linkage completes.
	fx.call.HandleEnvelope(fx.startEnvelope())
	fx.call.HandleEnvelope(mediaEnvelope(quietFrame(160)))
	assert.Equal(t, StateRinging, fx.call.State(), "buffered events must not take effect before linkage")

	fx.call.AttachMedia(fx.media)
	waitCall(t, "negotiating state after replay", func() bool { return fx.call.State() == StateNegotiating })
}

func TestCall_StatusWebhookDrivesTermination(t *testing.T) {
	fx := newFixture(t, &fakeLLM{}, nil)
	require.NoError(t, fx.call.Start(context.Background()))

	fx.call.HandleStatus(telephony.StatusUpdate{CallSID: "CA-test-1", Status: telephony.CallStatusInProgress})
	assert.Equal(t, StateConnected, fx.call.State())

	fx.call.HandleStatus(telephony.StatusUpdate{CallSID: "CA-test-1", Status: telephony.CallStatusNoAnswer})
	assert.Equal(t, StateFailed, fx.call.State())
	assert.Equal(t, 1, fx.resultCount())
}

func TestCall_ShortFragmentsIgnored(t *testing.T) {
	model := &fakeLLM{completes: []string{"Hi."}}
	fx := newFixture(t, model, nil)
	require.NoError(t, fx.call.Start(context.Background()))
	fx.call.AttachMedia(fx.media)
	fx.call.HandleEnvelope(fx.startEnvelope())
	waitCall(t, "negotiating state", func() bool { return fx.call.State() == StateNegotiating })

	fx.sttSess.EmitFinal("a")
	time.Sleep(60 * time.Millisecond)
	assert.Zero(t, model.streamCallCount(), "sub-2-char turns must not start a response")
}
