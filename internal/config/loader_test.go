package config

import (
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":8080"
  log_level: info
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o
  stt:
    name: whisper
    api_key: sk-test
  tts:
    name: elevenlabs
    api_key: el-test
tutor:
  system_directive: "You are a chemistry tutor."
  voice_id: voice-123
  auto_speak: false
  transcribe_timeout: 30s
  generate_timeout: 1m
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.LLM.Name != "openai" || cfg.Providers.LLM.Model != "gpt-4o" {
		t.Errorf("llm entry = %+v", cfg.Providers.LLM)
	}
	if cfg.Tutor.SystemDirective != "You are a chemistry tutor." {
		t.Errorf("system_directive = %q", cfg.Tutor.SystemDirective)
	}
	if got := cfg.Tutor.TranscribeTimeout.AsDuration(); got != 30*time.Second {
		t.Errorf("transcribe_timeout = %v, want 30s", got)
	}
	if got := cfg.Tutor.GenerateTimeout.AsDuration(); got != time.Minute {
		t.Errorf("generate_timeout = %v, want 1m", got)
	}
	if got := cfg.Tutor.SynthesizeTimeout.AsDuration(); got != 0 {
		t.Errorf("synthesize_timeout = %v, want 0 (unset)", got)
	}
	if cfg.Tutor.AutoSpeakEnabled() {
		t.Error("auto_speak explicitly false, but AutoSpeakEnabled() = true")
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader("server:\n  listen_adr: \":8080\"\n"))
	if err == nil {
		t.Fatal("misspelled field accepted, want decode error")
	}
}

func TestLoadFromReader_InvalidDuration(t *testing.T) {
	t.Parallel()

	_, err := LoadFromReader(strings.NewReader(`
providers:
  llm: {name: openai}
tutor:
  transcribe_timeout: soon
`))
	if err == nil || !strings.Contains(err.Error(), "invalid duration") {
		t.Fatalf("err = %v, want invalid duration", err)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Server.LogLevel = "verbose"
	cfg.Tutor.SpeedFactor = 3.0
	cfg.Tutor.Temperature = 5.0

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{"log_level", "providers.llm.name", "speed_factor", "temperature"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error missing %q: %v", want, err)
		}
	}
}

func TestValidate_NegativeTimeout(t *testing.T) {
	t.Parallel()

	cfg := &Config{}
	cfg.Providers.LLM.Name = "openai"
	cfg.Tutor.GenerateTimeout = Duration(-time.Second)

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "generate_timeout") {
		t.Fatalf("err = %v, want generate_timeout validation error", err)
	}
}

func TestAutoSpeak_DefaultEnabled(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFromReader(strings.NewReader("providers:\n  llm: {name: openai}\n"))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if !cfg.Tutor.AutoSpeakEnabled() {
		t.Error("auto_speak absent, want default enabled")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("does-not-exist.yaml")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want wrapped os.ErrNotExist", err)
	}
}
