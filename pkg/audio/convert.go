// Package audio provides the ingest boundary of the pipeline: decoding raw
// PCM (and optionally Opus) byte buffers into normalized sample frames, the
// reverse encode path for synthesized output, and small measurement helpers
// (RMS, peak) used by the energy-based speech detector.
//
// All byte-level PCM is 16-bit signed little-endian. Normalized samples are
// float32 in [-1, 1].
package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrOddByteCount is returned by DecodePCM16 when the input length is not a
// multiple of the 2-byte sample width. Such chunks are malformed and must be
// dropped by the caller without affecting session state.
var ErrOddByteCount = errors.New("audio: pcm byte count is not sample-aligned")

// Ingest decodes inbound byte buffers into normalized sample frames for one
// stream. Create one per session; not designed for shared use across goroutines.
type Ingest struct {
	format Format
}

// NewIngest creates an Ingest for the given stream format. Channels must be
// 1 or 2; stereo input is downmixed to mono by averaging sample pairs.
func NewIngest(format Format) (*Ingest, error) {
	if format.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", format.SampleRate)
	}
	if format.Channels != 1 && format.Channels != 2 {
		return nil, fmt.Errorf("audio: invalid channel count %d", format.Channels)
	}
	return &Ingest{format: format}, nil
}

// Decode converts a raw PCM16LE byte buffer into a normalized mono Frame.
// Returns ErrOddByteCount (wrapped) for sample-misaligned input.
func (in *Ingest) Decode(raw []byte) (Frame, error) {
	samples, err := DecodePCM16(raw)
	if err != nil {
		return Frame{}, err
	}
	if in.format.Channels == 2 {
		samples = downmixStereo(samples)
	}
	return Frame{Samples: samples, SampleRate: in.format.SampleRate}, nil
}

// DecodePCM16 converts 16-bit signed little-endian PCM bytes into normalized
// float32 samples in [-1, 1].
func DecodePCM16(raw []byte) ([]float32, error) {
	if len(raw)%2 != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrOddByteCount, len(raw))
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		s := int16(raw[i*2]) | int16(raw[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples, nil
}

// EncodePCM16 converts normalized float32 samples into 16-bit signed
// little-endian PCM bytes. Samples are clipped to [-1, 1] before conversion.
func EncodePCM16(samples []float32) []byte {
	raw := make([]byte, len(samples)*2)
	for i, v := range samples {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		s := int16(v * 32767)
		raw[i*2] = byte(s)
		raw[i*2+1] = byte(s >> 8)
	}
	return raw
}

// downmixStereo averages interleaved stereo sample pairs into mono.
func downmixStereo(samples []float32) []float32 {
	mono := make([]float32, len(samples)/2)
	for i := range mono {
		mono[i] = (samples[i*2] + samples[i*2+1]) / 2
	}
	return mono
}

// RMS returns the root-mean-square energy of the samples. Returns 0 for an
// empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the maximum absolute sample value.
func Peak(samples []float32) float64 {
	var peak float64
	for _, v := range samples {
		a := math.Abs(float64(v))
		if a > peak {
			peak = a
		}
	}
	return peak
}
