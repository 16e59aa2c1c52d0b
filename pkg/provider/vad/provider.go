// Package vad defines the Detector interface for frame-level speech/silence
// classifiers.
//
// A detector scores one fixed-width window of normalized samples at a time and
// reports whether it contains speech. Detectors are deliberately stateless from
// the caller's point of view: all hysteresis, buffering, and segment assembly
// live in the segmenter, which subdivides arbitrary-length frames into windows
// of the detector's native width.
//
// Two families exist: a neural probability-threshold classifier (the silero
// subpackage, backed by a scoring sidecar) and a cheap energy-threshold
// classifier (the energy subpackage) that serves as the per-call fallback when
// the neural path fails.
//
// Implementations must be safe for concurrent use across sessions; a single
// call sequence for one session is always issued from one goroutine.
package vad

// Result is the classification outcome for a single detector window.
type Result struct {
	// Speech reports whether the window was classified as speech.
	Speech bool

	// Probability is the speech probability score in [0, 1]. Detectors that do
	// not produce a calibrated score report 0 or 1 based on Speech.
	Probability float64
}

// Detector classifies fixed-width windows of normalized audio samples.
type Detector interface {
	// WindowSize returns the number of samples the detector requires per call.
	// The segmenter subdivides incoming frames into windows of exactly this
	// size; trailing partial windows are skipped.
	WindowSize() int

	// Detect classifies one window. The slice length must equal WindowSize.
	// An error marks this call as failed; the caller decides whether to fall
	// back to another detector for the window.
	Detect(window []float32) (Result, error)
}
