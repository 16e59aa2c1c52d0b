package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWAV_RoundTrip(t *testing.T) {
	pcm := EncodePCM16([]float32{0.1, -0.2, 0.3, -0.4})
	wav := EncodeWAV(pcm, 22050, 1)

	got, format, err := DecodeWAV(wav)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if format.SampleRate != 22050 || format.Channels != 1 {
		t.Errorf("format = %+v, want 22050 Hz mono", format)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("payload mismatch: got %d bytes, want %d", len(got), len(pcm))
	}
}

func TestDecodeWAV_RejectsGarbage(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("not a wav file, clearly too short?")); err == nil {
		t.Error("expected error for non-WAV input")
	}
	if _, _, err := DecodeWAV(make([]byte, 10)); err == nil {
		t.Error("expected error for short input")
	}
}
