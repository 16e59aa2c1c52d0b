// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// A Synthesizer wraps a speech synthesis service (e.g., a local Piper
// instance or the OpenAI speech API) behind a batch interface: one stabilized
// phrase in, one WAV-encoded audio clip out. Phrase assembly happens upstream
// in the pipeline, so providers never see partial text.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize returns a WAV-encoded audio rendering of text. Empty or
	// whitespace-only text yields (nil, nil): no audio, no error. May take
	// seconds for long phrases and must be called off the synchronous path.
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
