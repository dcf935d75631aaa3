// Package config provides the configuration schema, loader, and provider
// registry for the Cadenza voice tutoring server.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel controls log verbosity for the Cadenza server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Duration is a time.Duration that unmarshals from YAML strings like "30s".
// The zero value means "no timeout" wherever a timeout is configured.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// AsDuration returns d as a time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration structure for Cadenza.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Tutor     TutorConfig     `yaml:"tutor"`
}

// ServerConfig holds network and logging settings for the Cadenza server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each field selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	LLM ProviderEntry `yaml:"llm"`
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "nova-2").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above.
	Options map[string]any `yaml:"options"`
}

// TutorConfig describes the tutor persona, voice, and per-turn behaviour.
type TutorConfig struct {
	// SystemDirective overrides the built-in tutor persona injected as the
	// LLM system prompt. Empty means use the default persona.
	SystemDirective string `yaml:"system_directive"`

	// VoiceID is the provider-specific voice used for speech synthesis.
	VoiceID string `yaml:"voice_id"`

	// VoiceName is an optional display name for the voice (used in logs).
	VoiceName string `yaml:"voice_name"`

	// SpeedFactor adjusts speaking rate in the range [0.5, 2.0]. 0 means default.
	SpeedFactor float64 `yaml:"speed_factor"`

	// AutoSpeak sets the default auto-speak mode for new sessions; clients
	// can toggle it per session. Nil means enabled.
	AutoSpeak *bool `yaml:"auto_speak"`

	// Temperature controls LLM output randomness in [0.0, 2.0]. 0 means
	// provider default.
	Temperature float64 `yaml:"temperature"`

	// MaxTokens caps the LLM completion length. 0 means provider default.
	MaxTokens int `yaml:"max_tokens"`

	// TranscribeTimeout bounds each transcription call. Zero means none: a
	// hung call holds the turn in its awaiting state.
	TranscribeTimeout Duration `yaml:"transcribe_timeout"`

	// GenerateTimeout bounds each response generation call. Zero means none.
	GenerateTimeout Duration `yaml:"generate_timeout"`

	// SynthesizeTimeout bounds each speech synthesis call. Zero means none.
	SynthesizeTimeout Duration `yaml:"synthesize_timeout"`
}

// AutoSpeakEnabled reports the configured default auto-speak mode, defaulting
// to enabled when the field is absent.
func (t TutorConfig) AutoSpeakEnabled() bool {
	return t.AutoSpeak == nil || *t.AutoSpeak
}
