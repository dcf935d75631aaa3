package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cadenza-ai/cadenza/pkg/provider/tts"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New with empty apiKey: want error, got nil")
	}
}

func TestSynthesize_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotBody synthesisRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("xi-api-key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	p, err := New("test-key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := p.Synthesize(context.Background(), "hello there", types.VoiceProfile{ID: "v123"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	if string(audio.Data) != "mp3-bytes" {
		t.Errorf("audio data: want %q, got %q", "mp3-bytes", audio.Data)
	}
	if audio.MIMEType != "audio/mpeg" {
		t.Errorf("mime type: want audio/mpeg, got %q", audio.MIMEType)
	}
	if gotPath != "/v1/text-to-speech/v123" {
		t.Errorf("request path: want /v1/text-to-speech/v123, got %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("xi-api-key header: want test-key, got %q", gotKey)
	}
	if gotBody.Text != "hello there" {
		t.Errorf("request text: want %q, got %q", "hello there", gotBody.Text)
	}
	if gotBody.ModelID != defaultModel {
		t.Errorf("request model: want %q, got %q", defaultModel, gotBody.ModelID)
	}
}

func TestSynthesize_EmptyText(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Synthesize(context.Background(), "", types.VoiceProfile{ID: "v1"}); err != tts.ErrEmptyText {
		t.Fatalf("Synthesize empty text: want ErrEmptyText, got %v", err)
	}
}

func TestSynthesize_MissingVoice(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Synthesize(context.Background(), "hi", types.VoiceProfile{}); err == nil {
		t.Fatal("Synthesize without voice ID: want error, got nil")
	}
}

func TestSynthesize_Cancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	p, _ := New("key", WithBaseURL(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := p.Synthesize(ctx, "hi", types.VoiceProfile{ID: "v1"}); err == nil {
		t.Fatal("Synthesize with cancelled ctx: want error, got nil")
	}
}

func TestListVoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/voices" {
			t.Errorf("path: want /v1/voices, got %q", r.URL.Path)
		}
		w.Write([]byte(`{"voices":[{"voice_id":"v1","name":"Clara"},{"voice_id":"v2","name":"Miles"}]}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	voices, err := p.ListVoices(context.Background())
	if err != nil {
		t.Fatalf("ListVoices: %v", err)
	}
	if len(voices) != 2 {
		t.Fatalf("voices: want 2, got %d", len(voices))
	}
	if voices[0].ID != "v1" || voices[0].Name != "Clara" {
		t.Errorf("first voice: got %+v", voices[0])
	}
	if voices[1].Provider != "elevenlabs" {
		t.Errorf("provider: want elevenlabs, got %q", voices[1].Provider)
	}
}
