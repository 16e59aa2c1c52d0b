package audio

import "time"

// Frame represents a single chunk of audio flowing through the pipeline.
// Samples are normalized float32 values in [-1, 1] at a fixed sample rate.
// Frames are arrival-ordered and ephemeral: the segmenter either discards
// them or folds them into a speech segment.
type Frame struct {
	// Samples holds the normalized mono samples.
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for the STT-optimised pipeline default).
	SampleRate int

	// Timestamp marks when this frame arrived, relative to session start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Format describes the sample rate and channel count of an audio stream.
type Format struct {
	SampleRate int
	Channels   int
}

// Segment is a complete speech utterance assembled by the segmenter: the
// concatenation of every frame buffered between confirmed speech onset and
// confirmed closure, including the leading and trailing padding. A Segment is
// owned exclusively by the segmenter until it is handed to the transcriber;
// after that it is immutable and disposable.
type Segment struct {
	// Samples holds the concatenated normalized mono samples. Never empty for
	// an emitted segment.
	Samples []float32

	// SampleRate in Hz.
	SampleRate int

	// Frames is the number of ingest frames folded into the segment.
	Frames int
}

// Duration returns the playback duration of the segment.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}
