// Package app wires all haulvox subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP until the context is cancelled, and shutdown
// tears everything down in order.
//
// For testing, inject doubles via functional options (WithStore, WithCarrier).
// When an option is not provided, New creates real implementations from the
// config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/haulvox/haulvox/internal/call"
	"github.com/haulvox/haulvox/internal/config"
	"github.com/haulvox/haulvox/internal/health"
	"github.com/haulvox/haulvox/internal/observe"
	"github.com/haulvox/haulvox/internal/prefetch"
	"github.com/haulvox/haulvox/internal/resilience"
	"github.com/haulvox/haulvox/internal/server"
	"github.com/haulvox/haulvox/internal/tools"
	"github.com/haulvox/haulvox/internal/tools/brokercall"
	"github.com/haulvox/haulvox/internal/tools/hos"
	"github.com/haulvox/haulvox/internal/tools/invoicing"
	"github.com/haulvox/haulvox/internal/tools/loadboard"
	"github.com/haulvox/haulvox/internal/tools/stops"
	"github.com/haulvox/haulvox/internal/transcript"
	"github.com/haulvox/haulvox/internal/voice"
	"github.com/haulvox/haulvox/pkg/llm"
	"github.com/haulvox/haulvox/pkg/store"
	storepg "github.com/haulvox/haulvox/pkg/store/postgres"
	"github.com/haulvox/haulvox/pkg/stt"
	"github.com/haulvox/haulvox/pkg/telephony"
	"github.com/haulvox/haulvox/pkg/tts"
	"github.com/haulvox/haulvox/pkg/types"
)

// shutdownTimeout bounds the graceful HTTP drain on exit.
const shutdownTimeout = 10 * time.Second

// finalizeWait bounds how long a finished call is polled for its
// transcript-analysis result before the stored record is left as-is.
const finalizeWait = 2 * time.Minute

// Providers holds one interface value per provider slot, populated by main.go
// from the config.
type Providers struct {
	STT stt.Provider
	TTS tts.Provider

	// LLM is the primary completion backend. App wraps it in the rate-limit
	// fallback group together with the configured fallback model.
	LLM llm.Provider

	// LLMFallback, when non-nil, takes over on primary rate limits.
	LLMFallback llm.Provider
}

// Carrier starts and ends calls at the telephony provider.
type Carrier interface {
	Originate(ctx context.Context, req telephony.OriginateRequest) (string, error)
	Hangup(ctx context.Context, callSID string) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg *config.Config
	log *slog.Logger

	providers Providers
	llm       llm.Provider // fallback-wrapped
	carrier   Carrier
	voice     types.VoiceProfile

	registry  *tools.Registry
	calls     *call.Registry
	prefetch  *prefetch.Fetcher
	corrector *transcript.Corrector
	keywords  []string
	fillers   map[string][]byte
	store     store.Store
	metrics   *observe.Metrics

	httpSrv      *http.Server
	otelShutdown func(context.Context) error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a persistence store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithCarrier injects a telephony carrier instead of creating the REST client
// from config.
func WithCarrier(c Carrier) Option {
	return func(a *App) { a.carrier = c }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go. Initialisation is synchronous: telemetry, persistence,
// the tool registry, the transcript vocabulary, and the HTTP server are all
// ready when New returns.
func New(ctx context.Context, cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	if providers.STT == nil || providers.TTS == nil || providers.LLM == nil {
		return nil, errors.New("app: stt, tts and llm providers are required")
	}

	a := &App{
		cfg:       cfg,
		log:       slog.Default().With("component", "app"),
		providers: providers,
		calls:     call.NewRegistry(cfg.Timings.RetainFor),
		voice: types.VoiceProfile{
			ID:   cfg.Voice.VoiceID,
			Name: cfg.Voice.Name,
		},
	}
	for _, opt := range opts {
		opt(a)
	}

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	a.otelShutdown = otelShutdown
	a.metrics = observe.DefaultMetrics()

	a.llm = a.buildLLM()

	if a.carrier == nil && cfg.Telephony.AccountSID != "" {
		client, err := telephony.NewClient(
			cfg.Telephony.AccountSID,
			cfg.Telephony.AuthToken,
			cfg.Telephony.FromNumber,
		)
		if err != nil {
			return nil, fmt.Errorf("app: telephony client: %w", err)
		}
		a.carrier = client
	}

	if a.store == nil && cfg.Store.PostgresDSN != "" {
		st, err := storepg.NewStore(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("app: persistence store: %w", err)
		}
		a.store = st
	}

	if err := a.initTools(); err != nil {
		return nil, err
	}
	a.prefetch = prefetch.New(a.registry, cfg.Timings.PrefetchTimeout)

	a.initHTTP()
	return a, nil
}

// buildLLM wraps the primary backend in the rate-limit fallback group.
func (a *App) buildLLM() llm.Provider {
	primaryName := a.cfg.Providers.LLM.Model
	if primaryName == "" {
		primaryName = a.cfg.Providers.LLM.Name
	}
	fb := resilience.NewLLMFallback(a.providers.LLM, primaryName, resilience.CircuitBreakerConfig{
		Name: "llm",
	})
	if a.providers.LLMFallback != nil {
		name := a.cfg.Providers.LLMFallback.Model
		if name == "" {
			name = a.cfg.Providers.LLMFallback.Name
		}
		fb.AddFallback(name, a.providers.LLMFallback)
	}
	return fb
}

// initTools builds the tool registry and the recognition vocabulary derived
// from the load board.
func (a *App) initTools() error {
	board := loadboard.NewBoard(nil)
	directory := stops.NewDirectory(nil, nil)

	a.registry = tools.NewRegistry()
	for _, set := range [][]tools.Tool{
		board.Tools(),
		directory.Tools(),
		hos.Tools(),
		invoicing.Tools(),
		brokercall.Tools(dialer{a}),
	} {
		if err := a.registry.RegisterAll(set); err != nil {
			return fmt.Errorf("app: register tools: %w", err)
		}
	}

	a.keywords = board.Vocabulary()
	a.corrector = transcript.NewCorrector(a.keywords)
	return nil
}

// initHTTP assembles the route surface and the http.Server.
func (a *App) initHTTP() {
	storeCheck := health.Store(nil)
	if p, ok := a.store.(health.Pinger); ok {
		storeCheck = health.Store(p)
	}
	checkers := []health.Checker{
		storeCheck,
		health.Telephony(func() bool { return a.carrier != nil }),
	}

	srv := server.New(server.Config{
		NewSession: a.newSession,
		StartCall:  a.startNegotiation,
		Calls:      a.calls,
		Health:     health.New(checkers...),
		Metrics:    a.metrics,
	})
	a.httpSrv = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: srv.Handler(),
	}
}

// Run serves HTTP until ctx is cancelled, then drains and shuts down.
func (a *App) Run(ctx context.Context) error {
	a.warmFillers(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("listening", "addr", a.httpSrv.Addr)
		if err := a.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		a.shutdown(context.Background())
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := a.httpSrv.Shutdown(drainCtx)
	a.shutdown(drainCtx)
	return err
}

func (a *App) shutdown(ctx context.Context) {
	if closer, ok := a.store.(interface{ Close() }); ok {
		closer.Close()
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.log.Warn("telemetry shutdown", "error", err)
		}
	}
}

// Handler exposes the HTTP surface, for tests and embedding.
func (a *App) Handler() http.Handler { return a.httpSrv.Handler }

// newSession builds a browser conversation session. The summary callback is
// chained so every finished session is persisted before the socket sees it.
func (a *App) newSession(events voice.Events) (*voice.Session, error) {
	emitSummary := events.OnSummary
	events.OnSummary = func(sum types.SessionSummary) {
		a.persistSummary(sum)
		if emitSummary != nil {
			emitSummary(sum)
		}
	}

	return voice.NewSession(voice.Config{
		SessionID:      uuid.NewString(),
		STT:            a.providers.STT,
		TTS:            a.providers.TTS,
		LLM:            a.llm,
		Stream:         a.streamConfig(),
		Voice:          a.voice,
		SystemPrompt:   dispatcherPrompt,
		Registry:       a.registry,
		Prefetch:       a.prefetch,
		PrefetchReq:    prefetch.Request{HOSArgs: "{}"},
		Corrector:      a.corrector,
		Fillers:        a.fillers,
		ConnectTimeout: a.cfg.Timings.ConnectTimeout,
		FinalGrace:     a.cfg.Timings.FinalGrace,
		Metrics:        a.metrics,
		Events:         events,
	})
}

func (a *App) streamConfig() stt.StreamConfig {
	return stt.StreamConfig{
		SampleRate: 16000,
		Language:   "en-US",
		Keywords:   a.keywords,
	}
}

// startNegotiation places one outbound negotiation call and registers it.
func (a *App) startNegotiation(ctx context.Context, req call.Request) (*call.Call, error) {
	if a.carrier == nil {
		return nil, errors.New("app: telephony is not configured")
	}

	var c *call.Call
	c, err := call.New(req, call.Config{
		Carrier:       a.carrier,
		STT:           a.providers.STT,
		TTS:           a.providers.TTS,
		LLM:           a.llm,
		Voice:         a.voice,
		Stream:        a.streamConfig(),
		PublicBaseURL: a.cfg.Server.PublicBaseURL,
		Timings:       a.cfg.Timings,
		Metrics:       a.metrics,
		OnCompleted: func(types.NegotiationResult) {
			a.onCallCompleted(c, req)
		},
	})
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	a.calls.Register(c)
	a.log.Info("call started", "call_id", c.ID(), "to", req.To, "load_id", req.LoadID)
	return c, nil
}

// onCallCompleted persists the initial outcome, keeps the call queryable for
// the retention window, and re-persists once transcript analysis finalizes
// the result.
func (a *App) onCallCompleted(c *call.Call, req call.Request) {
	a.calls.MarkEnded(c)
	a.persistCall(c, req)

	if result, ok := c.Result(); ok && result.Finalized {
		return
	}
	go func() {
		deadline := time.Now().Add(finalizeWait)
		for time.Now().Before(deadline) {
			time.Sleep(2 * time.Second)
			if result, ok := c.Result(); ok && result.Finalized {
				a.persistCall(c, req)
				return
			}
		}
	}()
}

func (a *App) persistCall(c *call.Call, req call.Request) {
	if a.store == nil {
		return
	}
	result, ok := c.Result()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	rec := store.CallRecord{
		CallID:     c.ID(),
		CarrierSID: c.CarrierSID(),
		To:         req.To,
		BrokerName: req.BrokerName,
		LoadID:     req.LoadID,
		Result:     result,
		StartedAt:  time.Now().Add(-result.CallDuration),
		EndedAt:    time.Now(),
	}
	if err := a.store.SaveCall(ctx, rec); err != nil {
		a.log.Error("persist call record", "call_id", c.ID(), "error", err)
	}
}

func (a *App) persistSummary(sum types.SessionSummary) {
	if a.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.store.SaveSummary(ctx, sum); err != nil {
		a.log.Error("persist session summary", "session_id", sum.SessionID, "error", err)
	}
}

// dialer adapts App to the brokercall tool's interface.
type dialer struct{ app *App }

func (d dialer) StartCall(ctx context.Context, req brokercall.CallRequest) (string, error) {
	c, err := d.app.startNegotiation(ctx, call.Request{
		To:         req.PhoneNumber,
		BrokerName: req.BrokerName,
		LoadID:     req.LoadID,
		TargetRate: req.TargetRate,
		Notes:      req.Notes,
	})
	if err != nil {
		return "", err
	}
	return c.ID(), nil
}
