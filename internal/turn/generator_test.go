package turn

import (
	"context"
	"errors"
	"strings"
	"testing"

	llmmock "github.com/cadenza-ai/cadenza/pkg/provider/llm/mock"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

func TestGenerate_PreservesHistoryOrder(t *testing.T) {
	t.Parallel()

	llmP := &llmmock.Provider{CompleteContent: "answer"}
	g := NewGenerator(llmP)

	history := []types.Message{
		{Role: types.RoleUser, Text: "first"},
		{Role: types.RoleAssistant, Text: "second"},
		{Role: types.RoleUser, Text: "third"},
	}
	got, err := g.Generate(context.Background(), history, "fourth", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "answer" {
		t.Errorf("reply = %q, want %q", got, "answer")
	}

	calls := llmP.Calls()
	if len(calls) != 1 {
		t.Fatalf("Complete calls = %d, want 1", len(calls))
	}
	msgs := calls[0].Req.Messages
	want := append(history, types.Message{Role: types.RoleUser, Text: "fourth"})
	if len(msgs) != len(want) {
		t.Fatalf("messages = %d, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("messages[%d] = %+v, want %+v", i, msgs[i], want[i])
		}
	}
}

func TestGenerate_SystemPromptListsMaterials(t *testing.T) {
	t.Parallel()

	llmP := &llmmock.Provider{CompleteContent: "ok"}
	g := NewGenerator(llmP)

	materials := []types.MaterialDescriptor{
		{Name: "biology.pdf", Size: 1024, ID: "mat-1"},
		{Name: "notes.txt", Size: 42, ID: "mat-2"},
	}
	if _, err := g.Generate(context.Background(), nil, "hi", materials); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	sp := llmP.Calls()[0].Req.SystemPrompt
	if !strings.HasPrefix(sp, defaultDirective) {
		t.Errorf("system prompt does not start with the tutor directive: %q", sp)
	}
	for _, want := range []string{"biology.pdf", "notes.txt", "mat-1", "mat-2"} {
		if !strings.Contains(sp, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestGenerate_NoMaterials_DirectiveOnly(t *testing.T) {
	t.Parallel()

	llmP := &llmmock.Provider{CompleteContent: "ok"}
	g := NewGenerator(llmP)

	if _, err := g.Generate(context.Background(), nil, "hi", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sp := llmP.Calls()[0].Req.SystemPrompt; sp != defaultDirective {
		t.Errorf("system prompt = %q, want the bare directive", sp)
	}
}

func TestGenerate_CustomDirective(t *testing.T) {
	t.Parallel()

	llmP := &llmmock.Provider{CompleteContent: "ok"}
	g := NewGenerator(llmP, WithDirective("You are a pirate tutor."))

	if _, err := g.Generate(context.Background(), nil, "hi", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if sp := llmP.Calls()[0].Req.SystemPrompt; sp != "You are a pirate tutor." {
		t.Errorf("system prompt = %q", sp)
	}
}

func TestGenerate_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("model overloaded")
	llmP := &llmmock.Provider{CompleteErr: boom}
	g := NewGenerator(llmP)

	_, err := g.Generate(context.Background(), nil, "hi", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped %v", err, boom)
	}
}

func TestGenerate_TrimsHistoryToContextWindow(t *testing.T) {
	t.Parallel()

	// The mock estimates (len(text)+3)/4 + 4 tokens per message, so every
	// four-character message below costs 5 tokens. With a 16-token window the
	// utterance plus at most two history turns fit.
	llmP := &llmmock.Provider{
		CompleteContent:    "ok",
		CapabilitiesResult: types.ModelCapabilities{ContextWindow: 16},
	}
	g := NewGenerator(llmP)

	history := []types.Message{
		{Role: types.RoleUser, Text: "aaaa"},
		{Role: types.RoleAssistant, Text: "bbbb"},
		{Role: types.RoleUser, Text: "cccc"},
		{Role: types.RoleAssistant, Text: "dddd"},
	}
	if _, err := g.Generate(context.Background(), history, "eeee", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	msgs := llmP.Calls()[0].Req.Messages
	want := []types.Message{
		{Role: types.RoleUser, Text: "cccc"},
		{Role: types.RoleAssistant, Text: "dddd"},
		{Role: types.RoleUser, Text: "eeee"},
	}
	if len(msgs) != len(want) {
		t.Fatalf("messages = %d, want %d (oldest turns trimmed)", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i] != want[i] {
			t.Errorf("messages[%d] = %+v, want %+v", i, msgs[i], want[i])
		}
	}
}

func TestGenerate_HistoryWithinWindowUntouched(t *testing.T) {
	t.Parallel()

	llmP := &llmmock.Provider{
		CompleteContent:    "ok",
		CapabilitiesResult: types.ModelCapabilities{ContextWindow: 1000},
	}
	g := NewGenerator(llmP)

	history := []types.Message{
		{Role: types.RoleUser, Text: "question"},
		{Role: types.RoleAssistant, Text: "answer"},
	}
	if _, err := g.Generate(context.Background(), history, "follow-up", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n := len(llmP.Calls()[0].Req.Messages); n != 3 {
		t.Errorf("messages = %d, want 3 (history kept intact)", n)
	}
}

func TestGenerate_UnknownContextWindowKeepsHistory(t *testing.T) {
	t.Parallel()

	// A zero ContextWindow means the provider did not report one; budgeting
	// must not guess.
	llmP := &llmmock.Provider{CompleteContent: "ok"}
	g := NewGenerator(llmP)

	history := make([]types.Message, 50)
	for i := range history {
		history[i] = types.Message{Role: types.RoleUser, Text: strings.Repeat("x", 100)}
	}
	if _, err := g.Generate(context.Background(), history, "hi", nil); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if n := len(llmP.Calls()[0].Req.Messages); n != 51 {
		t.Errorf("messages = %d, want 51", n)
	}
}
