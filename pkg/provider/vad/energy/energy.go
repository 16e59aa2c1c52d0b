// Package energy provides an RMS energy-threshold speech detector.
//
// It is not a real voice activity model — any sufficiently loud window counts
// as speech — but it has no external dependencies and never fails, which makes
// it the standing fallback when the neural detector is unavailable or errors
// at call time.
package energy

import (
	"fmt"

	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/vad"
)

// DefaultThreshold is the RMS level above which a window counts as speech.
// Normalized samples peak at 1.0; 0.01 corresponds to near-silence room noise.
const DefaultThreshold = 0.01

// Compile-time interface assertion.
var _ vad.Detector = (*Detector)(nil)

// Detector classifies windows by their RMS energy.
type Detector struct {
	windowSize int
	threshold  float64
}

// Option is a functional option for configuring a Detector.
type Option func(*Detector)

// WithThreshold overrides the RMS speech threshold. Values at or below zero
// are ignored.
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		if t > 0 {
			d.threshold = t
		}
	}
}

// New creates an energy Detector with the given native window size.
func New(windowSize int, opts ...Option) (*Detector, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("energy: window size must be positive, got %d", windowSize)
	}
	d := &Detector{windowSize: windowSize, threshold: DefaultThreshold}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// WindowSize returns the configured window width in samples.
func (d *Detector) WindowSize() int { return d.windowSize }

// Detect reports speech when the window's RMS energy exceeds the threshold.
// The reported probability is a crude ratio of RMS to threshold, clamped to 1.
func (d *Detector) Detect(window []float32) (vad.Result, error) {
	if len(window) != d.windowSize {
		return vad.Result{}, fmt.Errorf("energy: window size mismatch: got %d, want %d", len(window), d.windowSize)
	}
	rms := audio.RMS(window)
	prob := rms / d.threshold
	if prob > 1 {
		prob = 1
	}
	return vad.Result{Speech: rms > d.threshold, Probability: prob}, nil
}
