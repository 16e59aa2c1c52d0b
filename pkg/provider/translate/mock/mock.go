// Package mock provides a test double for the translate.Translator interface.
package mock

import (
	"context"
	"sync"

	"github.com/ULTRASIRI/TalkFlow/pkg/provider/translate"
)

// PairCall records a single invocation of SetLanguagePair.
type PairCall struct {
	Source string
	Target string
}

// Translator is a mock implementation of translate.Translator.
type Translator struct {
	mu sync.Mutex

	// Translations maps input text to the translation to return. Inputs not
	// present in the map are echoed back bracketed, so tests can tell mock
	// output from real text at a glance.
	Translations map[string]string

	// TranslateErr, if non-nil, is returned by every Translate call.
	TranslateErr error

	// TranslateCalls records every input passed to Translate in order.
	TranslateCalls []string

	// PairCalls records every call to SetLanguagePair in order.
	PairCalls []PairCall
}

// Translate records the call and returns the scripted translation.
func (t *Translator) Translate(_ context.Context, text string) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranslateCalls = append(t.TranslateCalls, text)
	if t.TranslateErr != nil {
		return "", t.TranslateErr
	}
	if out, ok := t.Translations[text]; ok {
		return out, nil
	}
	return "[translated] " + text, nil
}

// SetLanguagePair records the call.
func (t *Translator) SetLanguagePair(source, target string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.PairCalls = append(t.PairCalls, PairCall{Source: source, Target: target})
}

// CallCount returns the number of Translate calls. Thread-safe.
func (t *Translator) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.TranslateCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (t *Translator) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranslateCalls = nil
	t.PairCalls = nil
}

// Ensure Translator implements translate.Translator at compile time.
var _ translate.Translator = (*Translator)(nil)
