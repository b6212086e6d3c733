package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/haulvox/haulvox/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	yaml := `
server:
  listen_addr: ":9000"
  public_base_url: "https://voice.example.com"
  log_level: debug
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  llm_fallback:
    name: groq
    api_key: gsk-test
    model: llama-3.1-8b-instant
  stt:
    name: deepgram
    api_key: dg-test
    model: nova-3
  tts:
    name: elevenlabs
    api_key: el-test
    model: eleven_flash_v2_5
telephony:
  account_sid: AC1
  auth_token: tok
  from_number: "+15550100"
voice:
  voice_id: v-123
  name: Dispatcher
timings:
  silence_timeout: 900ms
  end_grace: 2s
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("unexpected listen addr %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Model != "gpt-4o-mini" {
		t.Errorf("unexpected llm model %q", cfg.Providers.LLM.Model)
	}
	if cfg.Telephony.FromNumber != "+15550100" {
		t.Errorf("unexpected from number %q", cfg.Telephony.FromNumber)
	}
	if cfg.Voice.VoiceID != "v-123" {
		t.Errorf("unexpected voice id %q", cfg.Voice.VoiceID)
	}

	// Explicit timing values survive; unset ones take defaults.
	if cfg.Timings.SilenceTimeout != 900*time.Millisecond {
		t.Errorf("unexpected silence timeout %v", cfg.Timings.SilenceTimeout)
	}
	if cfg.Timings.EndGrace != 2*time.Second {
		t.Errorf("unexpected end grace %v", cfg.Timings.EndGrace)
	}
	if cfg.Timings.ConnectTimeout != 5*time.Second {
		t.Errorf("expected default connect timeout, got %v", cfg.Timings.ConnectTimeout)
	}
	if cfg.Timings.BargeInThreshold != 800 {
		t.Errorf("expected default barge-in threshold, got %v", cfg.Timings.BargeInThreshold)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	yaml := `
server:
  listen_addr: ":9000"
  no_such_field: true
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	yaml := `
server:
  log_level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_ProviderRequiresAPIKey(t *testing.T) {
	yaml := `
providers:
  llm:
    name: openai
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for provider without api key")
	}
	if !strings.Contains(err.Error(), "api_key") {
		t.Errorf("error should mention api_key, got: %v", err)
	}
}

func TestValidate_PartialTelephonyRejected(t *testing.T) {
	yaml := `
telephony:
  account_sid: AC1
  auth_token: tok
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for partial telephony credentials")
	}
	if !strings.Contains(err.Error(), "together") {
		t.Errorf("error should mention credentials belonging together, got: %v", err)
	}
}

func TestValidate_TelephonyRequiresPublicBaseURL(t *testing.T) {
	yaml := `
telephony:
  account_sid: AC1
  auth_token: tok
  from_number: "+15550100"
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for telephony without public_base_url")
	}
	if !strings.Contains(err.Error(), "public_base_url") {
		t.Errorf("error should mention public_base_url, got: %v", err)
	}
}

func TestLoadFromReader_EnvOverrides(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg-from-env")

	yaml := `
providers:
  stt:
    name: deepgram
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Providers.STT.APIKey != "dg-from-env" {
		t.Errorf("expected env override, got %q", cfg.Providers.STT.APIKey)
	}
}

func TestDefaultTimings(t *testing.T) {
	d := config.DefaultTimings()
	if d.SilenceTimeout != 1200*time.Millisecond {
		t.Errorf("unexpected silence timeout %v", d.SilenceTimeout)
	}
	if d.MaxSilence != 15*time.Second {
		t.Errorf("unexpected max silence %v", d.MaxSilence)
	}
	if d.BargeInWindow != 8 || d.BargeInCount != 5 {
		t.Errorf("unexpected barge-in window %d/%d", d.BargeInCount, d.BargeInWindow)
	}
}

func TestLoadFromReader_Empty(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config should load with defaults: %v", err)
	}
	if cfg.Timings.RetainFor != 5*time.Minute {
		t.Errorf("expected default retain window, got %v", cfg.Timings.RetainFor)
	}
}
