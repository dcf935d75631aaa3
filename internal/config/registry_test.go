package config

import (
	"errors"
	"testing"

	llmmock "github.com/cadenza-ai/cadenza/pkg/provider/llm/mock"
	sttmock "github.com/cadenza-ai/cadenza/pkg/provider/stt/mock"
	ttsmock "github.com/cadenza-ai/cadenza/pkg/provider/tts/mock"
	"github.com/cadenza-ai/cadenza/pkg/provider/llm"
	"github.com/cadenza-ai/cadenza/pkg/provider/stt"
	"github.com/cadenza-ai/cadenza/pkg/provider/tts"
)

func TestRegistry_CreateUnregistered(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	entry := ProviderEntry{Name: "nope"}

	if _, err := reg.CreateLLM(entry); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateLLM = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateSTT(entry); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateSTT = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := reg.CreateTTS(entry); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTTS = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryReceivesEntry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	var seen ProviderEntry
	reg.RegisterLLM("test", func(entry ProviderEntry) (llm.Provider, error) {
		seen = entry
		return &llmmock.Provider{}, nil
	})
	reg.RegisterSTT("test", func(ProviderEntry) (stt.Provider, error) {
		return &sttmock.Provider{}, nil
	})
	reg.RegisterTTS("test", func(ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	entry := ProviderEntry{Name: "test", APIKey: "key", Model: "m1"}
	if _, err := reg.CreateLLM(entry); err != nil {
		t.Fatalf("CreateLLM: %v", err)
	}
	if seen.APIKey != "key" || seen.Model != "m1" {
		t.Errorf("factory received %+v", seen)
	}
	if _, err := reg.CreateSTT(entry); err != nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if _, err := reg.CreateTTS(entry); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
}

func TestRegistry_OverwriteRegistration(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	boom := errors.New("first factory")
	reg.RegisterLLM("dup", func(ProviderEntry) (llm.Provider, error) { return nil, boom })
	reg.RegisterLLM("dup", func(ProviderEntry) (llm.Provider, error) { return &llmmock.Provider{}, nil })

	if _, err := reg.CreateLLM(ProviderEntry{Name: "dup"}); err != nil {
		t.Fatalf("CreateLLM after overwrite = %v, want nil", err)
	}
}
