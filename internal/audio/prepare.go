package audio

import (
	"encoding/base64"
	"fmt"
	"math"

	"batchscribe/internal/plan"
)

// Payload is the transport-ready encoding of one chunk's audio: a WAV
// container plus its declared media type and originating window. It is owned
// by the dispatch of that chunk and dropped once the chunk completes.
type Payload struct {
	Data      []byte
	MediaType string
	Window    plan.TimeWindow
}

// EncodedAudio returns the payload bytes base64-encoded for inline transport.
func (p *Payload) EncodedAudio() string {
	return base64.StdEncoding.EncodeToString(p.Data)
}

// Prepare extracts the sample range for window from the decoded source,
// downmixes to mono, resamples to targetRate, and encodes the result as a
// mono 16-bit WAV payload. Preparation is deterministic, so the orchestrator
// caches the result per chunk across retries.
func Prepare(src *Source, window plan.TimeWindow, targetRate int) (*Payload, error) {
	if src == nil || len(src.Samples) == 0 {
		return nil, fmt.Errorf("empty source")
	}
	if targetRate <= 0 {
		return nil, fmt.Errorf("target sample rate must be positive, got %d", targetRate)
	}
	if window.End <= window.Start {
		return nil, fmt.Errorf("invalid window [%v,%v)", window.Start, window.End)
	}

	mono := extractMono(src, window)
	if len(mono) == 0 {
		return nil, fmt.Errorf("window [%v,%v) maps to no frames", window.Start, window.End)
	}

	resampled := resampleLinear(mono, src.SampleRate, targetRate)
	quantized := quantize16(resampled)

	return &Payload{
		Data:      EncodeWAV(quantized, targetRate),
		MediaType: "audio/wav",
		Window:    window,
	}, nil
}

// extractMono slices the frame range covered by window and averages channels
// into a single mono buffer. Second-to-frame conversion truncates to integer
// frame boundaries.
func extractMono(src *Source, window plan.TimeWindow) []float32 {
	totalFrames := len(src.Samples) / src.Channels
	startFrame := int(window.Start * float64(src.SampleRate))
	endFrame := int(window.End * float64(src.SampleRate))
	if startFrame < 0 {
		startFrame = 0
	}
	if endFrame > totalFrames {
		endFrame = totalFrames
	}
	if endFrame <= startFrame {
		return nil
	}

	mono := make([]float32, endFrame-startFrame)
	for f := startFrame; f < endFrame; f++ {
		var sum float32
		base := f * src.Channels
		for c := 0; c < src.Channels; c++ {
			sum += src.Samples[base+c]
		}
		mono[f-startFrame] = sum / float32(src.Channels)
	}
	return mono
}

// resampleLinear converts mono samples from srcRate to dstRate using linear
// interpolation between neighbouring source frames.
func resampleLinear(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen == 0 {
		outLen = 1
	}

	out := make([]float32, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// quantize16 clamps samples to [-1,1] and rounds to 16-bit PCM.
func quantize16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = int16(math.Round(v * 32767))
	}
	return out
}
