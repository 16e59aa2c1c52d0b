// Package mock provides a test double for the tts.Synthesizer interface.
//
// Synthesize emits a short sine tone wrapped in a WAV container, so consumers
// that parse or forward the audio still receive structurally valid output.
package mock

import (
	"context"
	"math"
	"sync"

	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/tts"
)

const (
	toneSampleRate = 22050
	toneFrequency  = 440.0
	toneDuration   = 0.25 // seconds
)

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Audio, if non-nil, is returned for every non-empty input instead of
	// the generated tone.
	Audio []byte

	// SynthesizeErr, if non-nil, is returned by every Synthesize call.
	SynthesizeErr error

	// SynthesizeCalls records every input passed to Synthesize in order.
	SynthesizeCalls []string
}

// Synthesize records the call. Empty input returns (nil, nil) like a real
// provider; anything else returns Audio or a 440 Hz placeholder tone.
func (s *Synthesizer) Synthesize(_ context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = append(s.SynthesizeCalls, text)
	if s.SynthesizeErr != nil {
		return nil, s.SynthesizeErr
	}
	if text == "" {
		return nil, nil
	}
	if s.Audio != nil {
		return s.Audio, nil
	}
	return sineWAV(), nil
}

// CallCount returns the number of Synthesize calls. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SynthesizeCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SynthesizeCalls = nil
}

func sineWAV() []byte {
	seconds := float64(toneDuration)
	n := int(toneSampleRate * seconds)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.3 * float32(math.Sin(2*math.Pi*toneFrequency*float64(i)/toneSampleRate))
	}
	return audio.EncodeWAV(audio.EncodePCM16(samples), toneSampleRate, 1)
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
