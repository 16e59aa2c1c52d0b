// Package stt defines the Transcriber interface for Speech-to-Text backends.
//
// A Transcriber wraps a transcription engine (e.g., a local whisper.cpp
// server or the CGO bindings) behind a uniform batch interface: the caller
// hands over one complete speech segment and receives one Transcript. The
// segmentation itself happens upstream in the pipeline, so providers never
// need their own silence detection.
//
// Implementations must be safe for concurrent use; the pipeline may
// transcribe segments from several sessions at once.
package stt

import (
	"context"

	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
)

// Transcript is the result of transcribing one speech segment.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Language is the language the provider recognized or was told to use,
	// as a BCP-47 tag (e.g., "en", "de").
	Language string
}

// Transcriber is the abstraction over any STT backend.
//
// Transcribe may take seconds for long segments and must therefore be called
// off the connection's synchronous path. language is the BCP-47 tag to
// recognize; an empty string lets the provider auto-detect or fall back to
// its configured default.
type Transcriber interface {
	Transcribe(ctx context.Context, seg *audio.Segment, language string) (Transcript, error)
}
