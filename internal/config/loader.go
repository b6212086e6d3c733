package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":          {"openai"},
	"llm_fallback": {"openai", "anthropic", "gemini", "ollama", "groq"},
	"stt":          {"deepgram"},
	"tts":          {"elevenlabs"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment-variable
// overrides for credentials, fills timing defaults, and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.Timings = cfg.Timings.WithDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets credentials come from the environment instead of the
// config file, so secrets stay out of checked-in YAML.
func applyEnvOverrides(cfg *Config) {
	override := func(dst *string, env string) {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	override(&cfg.Providers.LLM.APIKey, "OPENAI_API_KEY")
	override(&cfg.Providers.STT.APIKey, "DEEPGRAM_API_KEY")
	override(&cfg.Providers.TTS.APIKey, "ELEVENLABS_API_KEY")
	override(&cfg.Telephony.AccountSID, "TWILIO_ACCOUNT_SID")
	override(&cfg.Telephony.AuthToken, "TWILIO_AUTH_TOKEN")
	override(&cfg.Telephony.FromNumber, "TWILIO_FROM_NUMBER")
	override(&cfg.Store.PostgresDSN, "HAULVOX_POSTGRES_DSN")
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm_fallback", cfg.Providers.LLMFallback.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)

	if cfg.Providers.LLM.Name != "" && cfg.Providers.LLM.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.llm.api_key is required when providers.llm is configured"))
	}
	if cfg.Providers.STT.Name != "" && cfg.Providers.STT.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.stt.api_key is required when providers.stt is configured"))
	}
	if cfg.Providers.TTS.Name != "" && cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, fmt.Errorf("providers.tts.api_key is required when providers.tts is configured"))
	}

	// Outbound calling is optional: either all carrier credentials are
	// present, or none. A partial set is a misconfiguration, not a feature
	// toggle.
	tel := cfg.Telephony
	telSet := 0
	for _, v := range []string{tel.AccountSID, tel.AuthToken, tel.FromNumber} {
		if v != "" {
			telSet++
		}
	}
	if telSet != 0 && telSet != 3 {
		errs = append(errs, fmt.Errorf("telephony requires account_sid, auth_token and from_number together; got %d of 3", telSet))
	}
	if telSet == 3 && cfg.Server.PublicBaseURL == "" {
		errs = append(errs, fmt.Errorf("server.public_base_url is required when telephony is configured (the carrier must reach the media stream)"))
	}

	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; session summaries will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
