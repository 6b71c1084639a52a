package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	wavHeaderSize    = 44
	wavBitsPerSample = 16
)

// EncodeWAV packs 16-bit mono PCM samples into a canonical WAV container:
// a 44-byte RIFF/WAVE/fmt/data header followed by little-endian sample data.
// The remote service requires this exact byte layout.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+dataSize))

	// RIFF header
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")

	// fmt chunk
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))            // Subchunk1Size
	binary.Write(buf, binary.LittleEndian, uint16(1))             // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1))             // NumChannels: mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))    // SampleRate
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))  // ByteRate
	binary.Write(buf, binary.LittleEndian, uint16(2))             // BlockAlign
	binary.Write(buf, binary.LittleEndian, uint16(wavBitsPerSample))

	// data chunk
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	for _, s := range samples {
		binary.Write(buf, binary.LittleEndian, s)
	}

	return buf.Bytes()
}

// DecodeWAV parses a WAV container produced by EncodeWAV and returns the
// samples and sample rate. It only accepts mono 16-bit PCM.
func DecodeWAV(data []byte) ([]int16, int, error) {
	if len(data) < wavHeaderSize {
		return nil, 0, fmt.Errorf("wav data too short: %d bytes", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("not a RIFF/WAVE container")
	}
	if string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return nil, 0, fmt.Errorf("unexpected chunk layout")
	}

	format := binary.LittleEndian.Uint16(data[20:22])
	channels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := int(binary.LittleEndian.Uint32(data[24:28]))
	bits := binary.LittleEndian.Uint16(data[34:36])

	if format != 1 {
		return nil, 0, fmt.Errorf("unsupported wav format %d, want PCM", format)
	}
	if channels != 1 {
		return nil, 0, fmt.Errorf("unsupported channel count %d, want mono", channels)
	}
	if bits != wavBitsPerSample {
		return nil, 0, fmt.Errorf("unsupported bit depth %d, want 16", bits)
	}

	dataSize := int(binary.LittleEndian.Uint32(data[40:44]))
	if wavHeaderSize+dataSize > len(data) {
		return nil, 0, fmt.Errorf("declared data size %d exceeds buffer", dataSize)
	}

	samples := make([]int16, dataSize/2)
	for i := range samples {
		off := wavHeaderSize + i*2
		samples[i] = int16(binary.LittleEndian.Uint16(data[off : off+2]))
	}
	return samples, sampleRate, nil
}
