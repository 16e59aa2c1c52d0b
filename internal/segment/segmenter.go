// Package segment turns a stream of audio frames into discrete speech
// segments.
//
// The central type is [VADSegmenter], a strictly causal two-state machine
// (silence ↔ speech) driven by a pluggable frame classifier. Transitions use
// hysteresis — a run of consistent observations — rather than single-frame
// decisions, which suppresses flicker at utterance boundaries. Frames buffered
// while a transition is pending become leading and trailing padding around the
// utterance, so segments never clip onset consonants or trailing sounds.
//
// [Passthrough] is the degenerate alternative used when VAD is disabled: it
// simply accumulates frames to a target duration and emits fixed-size chunks.
package segment

import (
	"log/slog"
	"time"

	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
	"github.com/ULTRASIRI/TalkFlow/pkg/provider/vad"
)

// Segmenter is the common surface of the VAD-driven and passthrough
// segmenters. Process is strictly causal: it sees each frame exactly once, in
// arrival order, with no look-ahead and no backward re-segmentation.
//
// A Segmenter is owned by one session and must only be called from that
// session's sequential processing path.
type Segmenter interface {
	// Process consumes one frame. It reports whether the frame was classified
	// as speech and, when an utterance has just closed, the completed segment
	// (nil otherwise).
	Process(frame audio.Frame) (speech bool, seg *audio.Segment, err error)

	// Reset clears all buffered audio and run counters and forces the silence
	// state.
	Reset()

	// State returns a snapshot of the machine's internal counters for status
	// reporting.
	State() State
}

// State is a point-in-time snapshot of a segmenter's internals.
type State struct {
	Speaking       bool `json:"speaking"`
	SpeechRun      int  `json:"speech_run"`
	SilenceRun     int  `json:"silence_run"`
	BufferedFrames int  `json:"buffered_frames"`
}

// Config holds the hysteresis parameters for a VADSegmenter.
type Config struct {
	// MinSpeechFrames is the number of consecutive speech-positive frames
	// required before the machine enters the speech state.
	MinSpeechFrames int

	// MinSilenceFrames is the number of consecutive silence frames required
	// while speaking before the utterance is closed.
	MinSilenceFrames int

	// MaxBuffer caps the audio buffered for one utterance. A speech run
	// reaching the cap is closed immediately, so a channel that never goes
	// quiet cannot grow a segment without bound. Zero disables the cap.
	MaxBuffer time.Duration
}

// VADSegmenter implements Segmenter on top of a frame classifier.
//
// Each incoming frame is subdivided into windows of the classifier's native
// width; the frame counts as speech if any window does. A primary (neural)
// detector may be absent — nil — in which case only the fallback runs. When
// the primary errors at call time the fallback classifies that window alone;
// the primary stays active for subsequent windows.
type VADSegmenter struct {
	cfg      Config
	primary  vad.Detector
	fallback vad.Detector

	speaking   bool
	speechRun  int
	silenceRun int
	buffer     [][]float32
	buffered   int
	sampleRate int
}

// Compile-time interface assertion.
var _ Segmenter = (*VADSegmenter)(nil)

// New creates a VADSegmenter. fallback must be non-nil; primary may be nil
// when the neural classifier failed to load, which disables the neural path
// for the whole session.
func New(cfg Config, primary, fallback vad.Detector) *VADSegmenter {
	if cfg.MinSpeechFrames < 1 {
		cfg.MinSpeechFrames = 1
	}
	if cfg.MinSilenceFrames < 1 {
		cfg.MinSilenceFrames = 1
	}
	return &VADSegmenter{cfg: cfg, primary: primary, fallback: fallback}
}

// Process implements Segmenter.
func (s *VADSegmenter) Process(frame audio.Frame) (bool, *audio.Segment, error) {
	s.sampleRate = frame.SampleRate
	speech := s.classifyFrame(frame.Samples)

	if speech {
		s.speechRun++
		s.silenceRun = 0
		s.buffer = append(s.buffer, frame.Samples)
		s.buffered += len(frame.Samples)

		if !s.speaking && s.speechRun >= s.cfg.MinSpeechFrames {
			s.speaking = true
			slog.Debug("speech onset", "frames", s.speechRun)
		}
		if s.speaking && s.atBufferCap() {
			seg := s.concatBuffer()
			slog.Debug("speech closure at buffer cap", "frames", seg.Frames, "duration", seg.Duration())
			s.Reset()
			return true, seg, nil
		}
		return true, nil, nil
	}

	s.silenceRun++
	if !s.speaking {
		// Onset requires a consecutive run: a silence frame before the speech
		// state is reached abandons the pending run and its buffered frames.
		s.speechRun = 0
		s.buffer = nil
		s.buffered = 0
		return false, nil, nil
	}

	// Trailing hangover while the closure decision is pending.
	s.buffer = append(s.buffer, frame.Samples)
	s.buffered += len(frame.Samples)

	if s.silenceRun < s.cfg.MinSilenceFrames {
		return false, nil, nil
	}

	seg := s.concatBuffer()
	slog.Debug("speech closure", "frames", seg.Frames, "duration", seg.Duration())
	s.Reset()
	return false, seg, nil
}

// classifyFrame subdivides the frame into detector-width windows and returns
// true if any window is speech. Trailing samples shorter than one window are
// skipped.
func (s *VADSegmenter) classifyFrame(samples []float32) bool {
	width := s.fallback.WindowSize()
	if s.primary != nil {
		width = s.primary.WindowSize()
	}
	speech := false
	for off := 0; off+width <= len(samples); off += width {
		if s.classifyWindow(samples[off : off+width]) {
			speech = true
		}
	}
	return speech
}

// classifyWindow asks the primary detector first and falls back to the energy
// detector for this window only when the primary errors.
func (s *VADSegmenter) classifyWindow(window []float32) bool {
	if s.primary != nil {
		res, err := s.primary.Detect(window)
		if err == nil {
			return res.Speech
		}
		slog.Warn("primary vad detector failed, using fallback for this window", "err", err)
	}
	res, err := s.fallback.Detect(window)
	if err != nil {
		// The energy detector only errors on a width mismatch, which is a
		// programming error upstream; treat the window as silence.
		slog.Error("fallback vad detector failed", "err", err)
		return false
	}
	return res.Speech
}

// concatBuffer folds the buffered frames into one segment.
func (s *VADSegmenter) concatBuffer() *audio.Segment {
	total := 0
	for _, f := range s.buffer {
		total += len(f)
	}
	samples := make([]float32, 0, total)
	for _, f := range s.buffer {
		samples = append(samples, f...)
	}
	return &audio.Segment{Samples: samples, SampleRate: s.sampleRate, Frames: len(s.buffer)}
}

// atBufferCap reports whether the buffered audio reached the configured cap.
func (s *VADSegmenter) atBufferCap() bool {
	if s.cfg.MaxBuffer <= 0 || s.sampleRate <= 0 {
		return false
	}
	maxSamples := int(s.cfg.MaxBuffer * time.Duration(s.sampleRate) / time.Second)
	return s.buffered >= maxSamples
}

// Reset implements Segmenter.
func (s *VADSegmenter) Reset() {
	s.buffer = nil
	s.buffered = 0
	s.speaking = false
	s.speechRun = 0
	s.silenceRun = 0
}

// State implements Segmenter.
func (s *VADSegmenter) State() State {
	return State{
		Speaking:       s.speaking,
		SpeechRun:      s.speechRun,
		SilenceRun:     s.silenceRun,
		BufferedFrames: len(s.buffer),
	}
}
