package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haulvox/haulvox/internal/call"
	"github.com/haulvox/haulvox/internal/config"
	"github.com/haulvox/haulvox/internal/tools/brokercall"
	"github.com/haulvox/haulvox/internal/voice"
	"github.com/haulvox/haulvox/pkg/llm"
	llmmock "github.com/haulvox/haulvox/pkg/llm/mock"
	storemock "github.com/haulvox/haulvox/pkg/store/mock"
	sttmock "github.com/haulvox/haulvox/pkg/stt/mock"
	"github.com/haulvox/haulvox/pkg/telephony"
	ttsmock "github.com/haulvox/haulvox/pkg/tts/mock"
	"github.com/haulvox/haulvox/pkg/types"
)

type recordingCarrier struct {
	mu         sync.Mutex
	originates int
	hangups    int
}

func (c *recordingCarrier) Originate(context.Context, telephony.OriginateRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.originates++
	return "CA-app-1", nil
}

func (c *recordingCarrier) Hangup(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hangups++
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr:    ":0",
			PublicBaseURL: "https://dispatch.example.com",
		},
		Timings: config.DefaultTimings(),
	}
}

func newTestApp(t *testing.T, opts ...Option) (*App, *storemock.Store) {
	t.Helper()
	st := &storemock.Store{}
	providers := Providers{
		STT: &sttmock.Provider{},
		TTS: &ttsmock.Provider{},
		LLM: &llmmock.Provider{
			StreamChunks: []llm.Chunk{{Text: "Okay."}, {FinishReason: "stop"}},
			CompleteResponse: &llm.CompletionResponse{Content: "Hello."},
		},
	}
	a, err := New(context.Background(), testConfig(), providers,
		append([]Option{WithStore(st), WithCarrier(&recordingCarrier{})}, opts...)...)
	require.NoError(t, err)
	return a, st
}

func TestNew_RequiresProviders(t *testing.T) {
	_, err := New(context.Background(), testConfig(), Providers{})
	require.Error(t, err)
}

func TestToolRegistryCoversDispatchSurface(t *testing.T) {
	a, _ := newTestApp(t)

	names := make(map[string]bool)
	for _, def := range a.registry.Definitions() {
		names[def.Name] = true
	}
	for _, want := range []string{"loadsearch", "hosstatus", "fuelstops", "parking", "invoice", "brokercall"} {
		assert.True(t, names[want], "missing tool %q", want)
	}
}

func TestNewSession_PersistsSummaryOnEnd(t *testing.T) {
	a, st := newTestApp(t)

	var got string
	sess, err := a.newSession(voice.Events{
		OnSummary: func(sum types.SessionSummary) { got = sum.SessionID },
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, sess.StartListening(ctx))
	sess.End(ctx)

	assert.Equal(t, 1, st.SummaryCount())
	assert.NotEmpty(t, got, "socket callback must still fire after persistence")
}

func TestStartNegotiation_RegistersAndPersistsOutcome(t *testing.T) {
	a, st := newTestApp(t)

	c, err := a.startNegotiation(context.Background(), call.Request{
		To:         "+15550003333",
		BrokerName: "Apex Logistics",
		LoadID:     "LD-1042",
		TargetRate: 2800,
	})
	require.NoError(t, err)

	_, ok := a.calls.Lookup(c.ID())
	require.True(t, ok)

	c.End("test over")
	deadline := time.Now().Add(2 * time.Second)
	for st.CallCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 1, st.CallCount())

	rec, err := st.GetCall(context.Background(), c.ID())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "+15550003333", rec.To)
}

func TestDialer_FailsWithoutCarrier(t *testing.T) {
	st := &storemock.Store{}
	providers := Providers{
		STT: &sttmock.Provider{},
		TTS: &ttsmock.Provider{},
		LLM: &llmmock.Provider{},
	}
	a, err := New(context.Background(), testConfig(), providers, WithStore(st))
	require.NoError(t, err)

	_, err = dialer{a}.StartCall(context.Background(), brokercall.CallRequest{
		PhoneNumber: "+13125550142",
		BrokerName:  "Apex Logistics",
		LoadID:      "LD-1042",
	})
	assert.Error(t, err)
}

func TestWarmFillers_RendersCues(t *testing.T) {
	a, _ := newTestApp(t)

	a.warmFillers(context.Background())
	require.NotEmpty(t, a.fillers)
	// The mock synthesizes the phrase bytes themselves.
	assert.Equal(t, []byte("One moment."), a.fillers[""])
	assert.Contains(t, a.fillers, "loadsearch")
}
