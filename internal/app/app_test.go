package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	capmock "github.com/cadenza-ai/cadenza/internal/capture/mock"
	"github.com/cadenza-ai/cadenza/internal/config"
	audiomock "github.com/cadenza-ai/cadenza/pkg/audio/mock"
	llmmock "github.com/cadenza-ai/cadenza/pkg/provider/llm/mock"
	sttmock "github.com/cadenza-ai/cadenza/pkg/provider/stt/mock"
	ttsmock "github.com/cadenza-ai/cadenza/pkg/provider/tts/mock"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.ListenAddr = ":0"
	cfg.Providers.LLM.Name = "openai"
	cfg.Providers.TTS.Name = "elevenlabs"
	cfg.Tutor.VoiceID = "voice-1"
	return cfg
}

func TestNew_RequiresLLM(t *testing.T) {
	t.Parallel()

	if _, err := New(testConfig(), &Providers{}); err == nil {
		t.Fatal("New accepted a provider set without an LLM")
	}
	if _, err := New(testConfig(), nil); err == nil {
		t.Fatal("New accepted nil providers")
	}
}

func TestNewController_TextTurnWiring(t *testing.T) {
	t.Parallel()

	llmP := &llmmock.Provider{CompleteContent: "wired"}
	ttsP := &ttsmock.Provider{SynthesizeAudio: []byte("clip")}
	a, err := New(testConfig(), &Providers{LLM: llmP, STT: &sttmock.Provider{}, TTS: ttsP})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sink := &audiomock.Sink{AutoFinish: true}
	ctrl := a.newController(&capmock.Source{}, sink)

	if !ctrl.AutoSpeak() {
		t.Error("auto-speak not defaulted to enabled")
	}

	if err := ctrl.SubmitText(context.Background(), "hi"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	ctrl.Wait()

	msgs := ctrl.Conversation().Messages()
	if len(msgs) != 2 || msgs[1].Text != "wired" {
		t.Fatalf("transcript = %+v", msgs)
	}

	// Auto-speak used the configured voice.
	waitForCalls(t, ttsP)
	call := ttsP.Calls()[0]
	if call.Voice.ID != "voice-1" || call.Voice.Provider != "elevenlabs" {
		t.Errorf("voice = %+v", call.Voice)
	}
}

// waitForCalls blocks until the player's background synthesis has recorded a
// call.
func waitForCalls(t *testing.T, p *ttsmock.Provider) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(p.Calls()) > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no synthesis call recorded")
}

func TestNewController_NoTTS_NoSpeaker(t *testing.T) {
	t.Parallel()

	llmP := &llmmock.Provider{CompleteContent: "answer"}
	a, err := New(testConfig(), &Providers{LLM: llmP})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctrl := a.newController(&capmock.Source{}, &audiomock.Sink{})
	if err := ctrl.SubmitText(context.Background(), "hi"); err != nil {
		t.Fatalf("SubmitText: %v", err)
	}
	ctrl.Wait()

	// No STT configured: voice input is refused outright.
	if err := ctrl.StartRecording(context.Background()); err == nil {
		t.Error("StartRecording succeeded without an STT provider")
	}
}

func TestHandler_OperationalEndpoints(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig(), &Providers{
		LLM: &llmmock.Provider{},
		STT: &sttmock.Provider{},
		TTS: &ttsmock.Provider{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv := httptest.NewServer(a.srv.Handler)
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestReadyz_ReportsMissingStage(t *testing.T) {
	t.Parallel()

	a, err := New(testConfig(), &Providers{LLM: &llmmock.Provider{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	srv := httptest.NewServer(a.srv.Handler)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 when stt/tts are unconfigured", resp.StatusCode)
	}
}
