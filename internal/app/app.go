// Package app wires all Cadenza subsystems into a running server: providers
// built from config, per-session turn pipelines, and the HTTP/websocket
// surface with its operational endpoints.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cadenza-ai/cadenza/internal/capture"
	"github.com/cadenza-ai/cadenza/internal/config"
	"github.com/cadenza-ai/cadenza/internal/gateway"
	"github.com/cadenza-ai/cadenza/internal/health"
	"github.com/cadenza-ai/cadenza/internal/observe"
	"github.com/cadenza-ai/cadenza/internal/speak"
	"github.com/cadenza-ai/cadenza/internal/turn"
	"github.com/cadenza-ai/cadenza/pkg/audio"
	"github.com/cadenza-ai/cadenza/pkg/provider/llm"
	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/provider/tts"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

// shutdownGrace bounds the drain of in-flight HTTP work during shutdown.
const shutdownGrace = 15 * time.Second

// Compile-time assertion that the speech player slots into the controller.
var _ turn.Speaker = (*speak.Player)(nil)

// Providers holds one interface value per pipeline stage. Nil means the stage
// is not configured: a nil STT disables voice input, a nil TTS disables
// speech playback. LLM is required. Populated by main via the config registry.
type Providers struct {
	LLM llm.Provider
	STT stt.Provider
	TTS tts.Provider
}

// App owns the server lifecycle: New wires everything, Run serves until the
// context ends, then drains gracefully.
type App struct {
	cfg       *config.Config
	providers *Providers
	metrics   *observe.Metrics
	gw        *gateway.Server
	srv       *http.Server
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics injects a Metrics instance instead of the process-wide default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New wires the application from config and instantiated providers.
func New(cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	h := health.New(
		health.Configured("llm", providers.LLM != nil),
		health.Configured("stt", providers.STT != nil),
		health.Configured("tts", providers.TTS != nil),
	)

	a.gw = gateway.NewServer(a.newController,
		gateway.WithMetrics(a.metrics),
		gateway.WithHealth(h),
	)

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           a.gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return a, nil
}

// newController assembles one session's turn pipeline over the connection's
// microphone source and speech sink.
func (a *App) newController(mic capture.Source, sink audio.Sink) *turn.Controller {
	tutor := a.cfg.Tutor

	genOpts := []turn.GeneratorOption{
		turn.WithDirective(tutor.SystemDirective),
		turn.WithTemperature(tutor.Temperature),
		turn.WithMaxTokens(tutor.MaxTokens),
	}
	gen := turn.NewGenerator(a.providers.LLM, genOpts...)

	var speaker turn.Speaker
	if a.providers.TTS != nil {
		speaker = speak.New(a.providers.TTS, sink, a.voiceProfile(),
			speak.WithTimeout(tutor.SynthesizeTimeout.AsDuration()),
			speak.WithMetrics(a.metrics),
		)
	}

	return turn.NewController(a.providers.STT, gen, speaker, mic, turn.NewConversation(),
		turn.WithAutoSpeak(tutor.AutoSpeakEnabled()),
		turn.WithTranscribeTimeout(tutor.TranscribeTimeout.AsDuration()),
		turn.WithGenerateTimeout(tutor.GenerateTimeout.AsDuration()),
		turn.WithMetrics(a.metrics),
	)
}

// voiceProfile builds the session voice from the tutor config.
func (a *App) voiceProfile() types.VoiceProfile {
	return types.VoiceProfile{
		ID:          a.cfg.Tutor.VoiceID,
		Name:        a.cfg.Tutor.VoiceName,
		Provider:    a.cfg.Providers.TTS.Name,
		SpeedFactor: a.cfg.Tutor.SpeedFactor,
	}
}

// Addr returns the configured listen address.
func (a *App) Addr() string {
	return a.srv.Addr
}

// SessionCount returns the number of connected sessions.
func (a *App) SessionCount() int {
	return a.gw.SessionCount()
}

// Run serves HTTP until ctx is cancelled, then drains connections for up to
// [shutdownGrace]. Returns nil on a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return a.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
