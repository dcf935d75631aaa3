package deepgram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "smart_format", "true", q.Get("smart_format"))
}

func TestBuildURL_CustomModel(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("de-DE"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL()
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "de-DE", q.Get("language"))
}

// ---- constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("New with empty apiKey: want error, got nil")
	}
}

// ---- Transcribe tests ----

func TestTranscribe_Success(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"hello world","confidence":0.97}]}]}}`))
	}))
	defer srv.Close()

	p, err := New("test-key", WithEndpoint(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text, err := p.Transcribe(context.Background(), types.Clip{
		Data:     []byte("fake-audio"),
		MIMEType: "audio/wav",
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "transcript", "hello world", text)
	assertEqual(t, "Authorization header", "Token test-key", gotAuth)
	assertEqual(t, "Content-Type header", "audio/wav", gotContentType)
}

func TestTranscribe_NoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithEndpoint(srv.URL))
	text, err := p.Transcribe(context.Background(), types.Clip{Data: []byte("x")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "" {
		t.Errorf("transcript: want empty, got %q", text)
	}
}

func TestTranscribe_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"err_code":"INVALID_AUDIO","err_msg":"corrupt container"}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithEndpoint(srv.URL))
	if _, err := p.Transcribe(context.Background(), types.Clip{Data: []byte("x")}); err == nil {
		t.Fatal("Transcribe: want error on 400, got nil")
	}
}

func TestTranscribe_EmptyClip(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Transcribe(context.Background(), types.Clip{}); err != stt.ErrEmptyClip {
		t.Fatalf("Transcribe empty clip: want ErrEmptyClip, got %v", err)
	}
}

// assertEqual fails the test when got != want.
func assertEqual(t *testing.T, name, want, got string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: want %q, got %q", name, want, got)
	}
}
