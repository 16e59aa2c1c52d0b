// Package mock provides a test double for the stt.Transcriber interface.
//
// Pre-populate Transcripts with the values the consumer should receive in
// order, then inspect TranscribeCalls to verify what was submitted.
package mock

import (
	"context"
	"sync"

	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/stt"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	// Samples is the number of samples in the submitted segment.
	Samples int
	// Language is the language tag passed to Transcribe.
	Language string
}

// Transcriber is a mock implementation of stt.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// Transcripts are returned by successive Transcribe calls in order. Once
	// exhausted, the last entry is repeated. If empty, a fixed placeholder
	// transcript echoing the segment duration is returned.
	Transcripts []stt.Transcript

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	next int
}

// Transcribe records the call and returns the next scripted Transcript.
func (t *Transcriber) Transcribe(_ context.Context, seg *audio.Segment, language string) (stt.Transcript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	if seg != nil {
		n = len(seg.Samples)
	}
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{Samples: n, Language: language})
	if t.TranscribeErr != nil {
		return stt.Transcript{}, t.TranscribeErr
	}
	if len(t.Transcripts) == 0 {
		return stt.Transcript{Text: "[transcription unavailable]", Confidence: 0, Language: language}, nil
	}
	tr := t.Transcripts[t.next]
	if t.next < len(t.Transcripts)-1 {
		t.next++
	}
	return tr, nil
}

// CallCount returns the number of Transcribe calls. Thread-safe.
func (t *Transcriber) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.TranscribeCalls)
}

// Reset clears all recorded calls and rewinds the script. Thread-safe.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = nil
	t.next = 0
}

// Ensure Transcriber implements stt.Transcriber at compile time.
var _ stt.Transcriber = (*Transcriber)(nil)
