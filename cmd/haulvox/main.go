// Command haulvox is the main entry point for the haulvox voice dispatch server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/haulvox/haulvox/internal/app"
	"github.com/haulvox/haulvox/internal/config"
	"github.com/haulvox/haulvox/pkg/llm"
	"github.com/haulvox/haulvox/pkg/llm/anyllm"
	"github.com/haulvox/haulvox/pkg/llm/openai"
	"github.com/haulvox/haulvox/pkg/stt/deepgram"
	"github.com/haulvox/haulvox/pkg/tts/elevenlabs"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "haulvox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "haulvox: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("haulvox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	providers, err := buildProviders(cfg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildProviders instantiates the providers named in cfg and returns them in
// an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config) (app.Providers, error) {
	var ps app.Providers

	if entry := cfg.Providers.STT; entry.Name != "" {
		switch entry.Name {
		case "deepgram":
			var opts []deepgram.Option
			if entry.Model != "" {
				opts = append(opts, deepgram.WithModel(entry.Model))
			}
			if lang := optString(entry.Options, "language"); lang != "" {
				opts = append(opts, deepgram.WithLanguage(lang))
			}
			p, err := deepgram.New(entry.APIKey, opts...)
			if err != nil {
				return ps, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
			}
			ps.STT = p
		default:
			return ps, fmt.Errorf("unknown stt provider %q", entry.Name)
		}
		slog.Info("provider created", "kind", "stt", "name", entry.Name)
	}

	if entry := cfg.Providers.TTS; entry.Name != "" {
		switch entry.Name {
		case "elevenlabs":
			var opts []elevenlabs.Option
			if entry.Model != "" {
				opts = append(opts, elevenlabs.WithModel(entry.Model))
			}
			if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
				opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
			}
			p, err := elevenlabs.New(entry.APIKey, opts...)
			if err != nil {
				return ps, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
			}
			ps.TTS = p
		default:
			return ps, fmt.Errorf("unknown tts provider %q", entry.Name)
		}
		slog.Info("provider created", "kind", "tts", "name", entry.Name)
	}

	if entry := cfg.Providers.LLM; entry.Name != "" {
		p, err := buildLLM(entry)
		if err != nil {
			return ps, fmt.Errorf("create llm provider %q: %w", entry.Name, err)
		}
		ps.LLM = p
		slog.Info("provider created", "kind", "llm", "name", entry.Name, "model", entry.Model)
	}

	if entry := cfg.Providers.LLMFallback; entry.Name != "" {
		p, err := buildLLM(entry)
		if err != nil {
			return ps, fmt.Errorf("create llm fallback provider %q: %w", entry.Name, err)
		}
		ps.LLMFallback = p
		slog.Info("provider created", "kind", "llm_fallback", "name", entry.Name, "model", entry.Model)
	}

	return ps, nil
}

// buildLLM constructs a completion backend. The primary path uses the native
// OpenAI client; everything else goes through the any-llm adapter.
func buildLLM(entry config.ProviderEntry) (llm.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	case "anthropic", "gemini", "groq":
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, entry.Model, opts...)
	case "ollama":
		// Local server: BaseURL is the address, no API key.
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", entry.Name)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         haulvox — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("LLM", cfg.Providers.LLM.Name, cfg.Providers.LLM.Model)
	printProvider("LLM fallback", cfg.Providers.LLMFallback.Name, cfg.Providers.LLMFallback.Model)
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	if cfg.Telephony.AccountSID != "" {
		fmt.Printf("║  Telephony       : %-19s ║\n", "configured")
	} else {
		fmt.Printf("║  Telephony       : %-19s ║\n", "(disabled)")
	}
	if cfg.Store.PostgresDSN != "" {
		fmt.Printf("║  Persistence     : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Persistence     : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
