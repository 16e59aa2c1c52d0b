// Package archive persists completed utterances: one record per translated
// speech segment, carrying the recognized text, its translation, and timing
// telemetry. The server works fine without persistence; when no database is
// configured an in-memory store keeps a bounded recent history instead.
package archive

import (
	"context"
	"time"
)

// Utterance is one completed trip through the pipeline.
type Utterance struct {
	// ID is a UUID assigned on save when empty.
	ID string

	// SessionID identifies the originating connection.
	SessionID string

	// SourceText is the final transcription of the speech segment.
	SourceText string

	// TranslatedText is SourceText rendered in the target language.
	TranslatedText string

	// SourceLang and TargetLang are the BCP-47 tags of the active pair.
	SourceLang string
	TargetLang string

	// Confidence is the transcription confidence in [0, 1].
	Confidence float64

	// AudioDuration is the length of the source speech segment.
	AudioDuration time.Duration

	// CreatedAt is assigned by the store.
	CreatedAt time.Time
}

// Store is the persistence abstraction for completed utterances.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save persists u, assigning ID and CreatedAt if unset.
	Save(ctx context.Context, u *Utterance) error

	// Recent returns up to limit utterances for the session, newest first.
	Recent(ctx context.Context, sessionID string, limit int) ([]Utterance, error)
}
