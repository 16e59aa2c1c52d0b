// Package anyllm provides an LLM-backed Translator built on
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	tr, err := anyllm.New("openai", "gpt-4o-mini", "en", "es",
//	    anyllmlib.WithAPIKey("sk-..."))
//	out, err := tr.Translate(ctx, "Hello world")
package anyllm

import (
	"context"
	"fmt"
	"strings"
	"sync"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/ULTRASIRI/TalkFlow/pkg/provider/translate"
)

// Compile-time assertion that Translator implements translate.Translator.
var _ translate.Translator = (*Translator)(nil)

// Translator implements translate.Translator by prompting an LLM through
// github.com/mozilla-ai/any-llm-go.
type Translator struct {
	backend anyllmlib.Provider
	model   string

	mu     sync.RWMutex
	source string
	target string
}

// New creates a Translator backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile". model is the
// specific model to use (e.g., "gpt-4o-mini"). source and target are BCP-47
// language tags for the initial pair.
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the provider
// falls back to the relevant environment variable (OPENAI_API_KEY, etc.).
func New(providerName, model, source, target string, opts ...anyllmlib.Option) (*Translator, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Translator{
		backend: backend,
		model:   model,
		source:  source,
		target:  target,
	}, nil
}

// createBackend creates the underlying any-llm-go provider for the given provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// SetLanguagePair replaces the active source and target languages. Subsequent
// Translate calls use the new pair; nothing from earlier calls survives
// because each request carries the full instruction.
func (t *Translator) SetLanguagePair(source, target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.source = source
	t.target = target
}

// Translate prompts the model to render text in the active target language
// and returns the bare translation.
func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	t.mu.RLock()
	source, target := t.source, t.target
	t.mu.RUnlock()

	if source == target {
		return text, nil
	}

	temp := 0.2
	params := anyllmlib.CompletionParams{
		Model:       t.model,
		Temperature: &temp,
		Messages: []anyllmlib.Message{
			{
				Role: anyllmlib.RoleSystem,
				Content: fmt.Sprintf(
					"You are a translation engine. Translate the user's text from %s to %s. "+
						"Preserve tone and punctuation. Output only the translation, nothing else.",
					source, target),
			},
			{
				Role:    anyllmlib.RoleUser,
				Content: text,
			},
		},
	}

	resp, err := t.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}

	return strings.TrimSpace(resp.Choices[0].Message.ContentString()), nil
}
