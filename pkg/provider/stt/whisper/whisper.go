// Package whisper provides an stt.Provider backed by the OpenAI Whisper
// transcription API.
//
// The provider submits each finalized recording as one multipart upload to the
// audio transcription endpoint and returns the recognised text. whisper.cpp or
// other self-hosted servers that speak the OpenAI API can be used by pointing
// WithBaseURL at them.
package whisper

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

// defaultModel is the transcription model used when none is configured.
const defaultModel = oai.AudioModelWhisper1

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL. Use this to target a
// self-hosted Whisper server that exposes the OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model (e.g., "whisper-1").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage sets the ISO-639-1 language hint (e.g., "en"). An empty value
// lets the service auto-detect the language.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// Provider implements stt.Provider using the OpenAI audio transcription API.
type Provider struct {
	client   oai.Client
	model    string
	language string
}

// New constructs a Whisper API Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("whisper: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
	}, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip types.Clip) (string, error) {
	if len(clip.Data) == 0 {
		return "", stt.ErrEmptyClip
	}

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(clip.Data), fileName(clip), clip.MIMEType),
		Model: p.model,
	}
	if p.language != "" {
		params.Language = oai.String(p.language)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("whisper: transcription request: %w", err)
	}
	return resp.Text, nil
}

// fileName derives an upload file name from the clip's MIME type. The API
// infers the container format from the extension, so the name must match.
func fileName(clip types.Clip) string {
	switch clip.MIMEType {
	case "audio/wav", "audio/x-wav":
		return "clip.wav"
	case "audio/mpeg", "audio/mp3":
		return "clip.mp3"
	case "audio/ogg":
		return "clip.ogg"
	case "audio/mp4":
		return "clip.mp4"
	default:
		return "clip.webm"
	}
}
