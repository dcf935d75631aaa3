package turn

import (
	"context"
	"fmt"
	"strings"

	"github.com/cadenza-ai/cadenza/pkg/provider/llm"
	"github.com/cadenza-ai/cadenza/pkg/types"
)

// defaultDirective is the tutor persona injected as the system prompt when no
// override is configured.
const defaultDirective = "You are a patient, encouraging tutor helping a student learn. " +
	"Explain concepts clearly and concisely, check the student's understanding, " +
	"and ground your answers in the attached study materials when they are relevant."

// Generator turns an ordered dialogue history plus a new user utterance into
// assistant text via an LLM provider.
//
// The history and utterance are serialised as dialogue turns in exactly the
// order given, preceded by a fixed system directive that describes the tutor
// persona and lists the attached material descriptors. Output content is
// stochastic; callers must not depend on literal wording.
type Generator struct {
	llmP        llm.Provider
	directive   string
	temperature float64
	maxTokens   int
}

// GeneratorOption is a functional option for configuring a Generator.
type GeneratorOption func(*Generator)

// WithDirective overrides the built-in tutor persona directive.
// An empty string keeps the default.
func WithDirective(s string) GeneratorOption {
	return func(g *Generator) {
		if s != "" {
			g.directive = s
		}
	}
}

// WithTemperature sets the sampling temperature. Zero requests the provider
// default.
func WithTemperature(t float64) GeneratorOption {
	return func(g *Generator) { g.temperature = t }
}

// WithMaxTokens caps the completion length. Zero means provider default.
func WithMaxTokens(n int) GeneratorOption {
	return func(g *Generator) { g.maxTokens = n }
}

// NewGenerator constructs a Generator over llmP.
func NewGenerator(llmP llm.Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llmP:      llmP,
		directive: defaultDirective,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate produces assistant text for utterance given the prior history and
// the attached materials. history is replayed verbatim, in order, with the
// new utterance appended last as a user turn.
func (g *Generator) Generate(ctx context.Context, history []types.Message, utterance string, materials []types.MaterialDescriptor) (string, error) {
	history = g.budgetHistory(history, utterance)

	messages := make([]types.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, types.Message{Role: types.RoleUser, Text: utterance})

	resp, err := g.llmP.Complete(ctx, llm.CompletionRequest{
		Messages:     messages,
		Temperature:  g.temperature,
		MaxTokens:    g.maxTokens,
		SystemPrompt: g.systemPrompt(materials),
	})
	if err != nil {
		return "", fmt.Errorf("turn: generate response: %w", err)
	}
	return resp.Content, nil
}

// budgetHistory drops the oldest history turns until the estimated prompt
// fits the model's context window with room reserved for the completion.
// Best-effort: an unknown window or a failed estimate keeps the history
// as-is. The new utterance is never dropped.
func (g *Generator) budgetHistory(history []types.Message, utterance string) []types.Message {
	caps := g.llmP.Capabilities()
	if caps.ContextWindow <= 0 {
		return history
	}
	reserve := g.maxTokens
	if reserve == 0 {
		reserve = caps.MaxOutputTokens
	}
	budget := caps.ContextWindow - reserve
	if budget <= 0 {
		return history
	}

	probe := make([]types.Message, 0, len(history)+1)
	for len(history) > 0 {
		probe = append(probe[:0], history...)
		probe = append(probe, types.Message{Role: types.RoleUser, Text: utterance})
		n, err := g.llmP.CountTokens(probe)
		if err != nil || n <= budget {
			break
		}
		history = history[1:]
	}
	return history
}

// systemPrompt combines the persona directive with a listing of the attached
// material descriptors, if any.
func (g *Generator) systemPrompt(materials []types.MaterialDescriptor) string {
	if len(materials) == 0 {
		return g.directive
	}

	var b strings.Builder
	b.WriteString(g.directive)
	b.WriteString("\n\nThe student has attached the following study materials:\n")
	for _, m := range materials {
		fmt.Fprintf(&b, "- %s (%d bytes, id %s)\n", m.Name, m.Size, m.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}
