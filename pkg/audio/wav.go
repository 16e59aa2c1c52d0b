package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// wavHeaderSize is the byte length of a canonical PCM WAV header.
const wavHeaderSize = 44

// EncodeWAV wraps raw PCM16LE data in a canonical RIFF/WAVE container so that
// browsers can play synthesized audio directly from a binary message.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))

	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes()
}

// DecodeWAV extracts the PCM payload and format from a canonical WAV buffer.
// Only 16-bit PCM is supported; anything else returns an error.
func DecodeWAV(wav []byte) (pcm []byte, format Format, err error) {
	if len(wav) < wavHeaderSize {
		return nil, Format{}, fmt.Errorf("audio: wav buffer too short (%d bytes)", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, Format{}, fmt.Errorf("audio: not a RIFF/WAVE buffer")
	}
	audioFormat := binary.LittleEndian.Uint16(wav[20:22])
	bits := binary.LittleEndian.Uint16(wav[34:36])
	if audioFormat != 1 || bits != 16 {
		return nil, Format{}, fmt.Errorf("audio: unsupported wav encoding (format=%d bits=%d)", audioFormat, bits)
	}
	format = Format{
		Channels:   int(binary.LittleEndian.Uint16(wav[22:24])),
		SampleRate: int(binary.LittleEndian.Uint32(wav[24:28])),
	}
	dataLen := int(binary.LittleEndian.Uint32(wav[40:44]))
	if dataLen > len(wav)-wavHeaderSize {
		dataLen = len(wav) - wavHeaderSize
	}
	return wav[wavHeaderSize : wavHeaderSize+dataLen], format, nil
}
