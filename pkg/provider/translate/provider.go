// Package translate defines the Translator interface for text translation
// backends.
//
// A Translator carries one active language pair at a time. Changing the pair
// with SetLanguagePair invalidates any cached or in-flight translation state,
// since partial output for the old pair is meaningless for the new one.
//
// Implementations must be safe for concurrent use.
package translate

import "context"

// Translator is the abstraction over any translation backend.
type Translator interface {
	// Translate returns text rendered in the active target language. May take
	// seconds for long inputs and must be called off the synchronous path.
	Translate(ctx context.Context, text string) (string, error)

	// SetLanguagePair replaces the active source and target languages
	// (BCP-47 tags, e.g. "en" → "es") and discards any cached state.
	SetLanguagePair(source, target string)
}
