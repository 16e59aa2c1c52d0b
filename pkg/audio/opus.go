package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// maxOpusFrameSamples is the largest Opus frame size we accept: 120 ms at
// 48 kHz. Browser capture typically sends 20 ms frames; the decoder just needs
// an upper bound for its output buffer.
const maxOpusFrameSamples = 5760

// OpusDecoder decodes Opus packets from a capture client into normalized mono
// frames. Each stream needs its own decoder to keep codec state consistent
// across consecutive packets.
type OpusDecoder struct {
	dec        *gopus.Decoder
	sampleRate int
	channels   int
}

// NewOpusDecoder creates a decoder for the given capture format. Opus supports
// 8, 12, 16, 24 and 48 kHz; gopus rejects anything else.
func NewOpusDecoder(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := gopus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &OpusDecoder{dec: dec, sampleRate: sampleRate, channels: channels}, nil
}

// Decode decodes one Opus packet into a normalized mono Frame. Stereo packets
// are downmixed after decoding.
func (d *OpusDecoder) Decode(packet []byte) (Frame, error) {
	pcm, err := d.dec.Decode(packet, maxOpusFrameSamples, false)
	if err != nil {
		return Frame{}, fmt.Errorf("audio: opus decode: %w", err)
	}
	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}
	if d.channels == 2 {
		samples = downmixStereo(samples)
	}
	return Frame{Samples: samples, SampleRate: d.sampleRate}, nil
}
