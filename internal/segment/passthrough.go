package segment

import (
	"time"

	"github.com/ULTRASIRI/TalkFlow/pkg/audio"
)

// Passthrough implements Segmenter without any speech detection: frames are
// buffered until a target duration is reached and then emitted as one segment.
// Used when VAD is disabled in the configuration.
type Passthrough struct {
	targetSamples int
	sampleRate    int

	buffer  [][]float32
	samples int
}

// Compile-time interface assertion.
var _ Segmenter = (*Passthrough)(nil)

// NewPassthrough creates a Passthrough that emits segments of roughly
// targetDuration worth of audio.
func NewPassthrough(sampleRate int, targetDuration time.Duration) *Passthrough {
	target := int(targetDuration * time.Duration(sampleRate) / time.Second)
	if target < 1 {
		target = 1
	}
	return &Passthrough{targetSamples: target, sampleRate: sampleRate}
}

// Process implements Segmenter. Every frame counts as speech.
func (p *Passthrough) Process(frame audio.Frame) (bool, *audio.Segment, error) {
	p.buffer = append(p.buffer, frame.Samples)
	p.samples += len(frame.Samples)

	if p.samples < p.targetSamples {
		return true, nil, nil
	}

	samples := make([]float32, 0, p.samples)
	for _, f := range p.buffer {
		samples = append(samples, f...)
	}
	seg := &audio.Segment{Samples: samples, SampleRate: p.sampleRate, Frames: len(p.buffer)}
	p.Reset()
	return true, seg, nil
}

// Reset implements Segmenter.
func (p *Passthrough) Reset() {
	p.buffer = nil
	p.samples = 0
}

// State implements Segmenter.
func (p *Passthrough) State() State {
	return State{Speaking: p.samples > 0, BufferedFrames: len(p.buffer)}
}
