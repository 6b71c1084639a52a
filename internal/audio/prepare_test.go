package audio

import (
	"testing"

	"batchscribe/internal/plan"
)

// stereoSource builds a two-channel source where both channels carry the
// same constant value, so the downmix is easy to verify.
func stereoSource(frames, rate int, value float32) *Source {
	samples := make([]float32, frames*2)
	for i := range samples {
		samples[i] = value
	}
	return &Source{Samples: samples, SampleRate: rate, Channels: 2}
}

func TestPrepare_ProducesWAVPayload(t *testing.T) {
	src := stereoSource(16000, 16000, 0.5) // 1 second
	payload, err := Prepare(src, plan.TimeWindow{Start: 0, End: 1}, 16000)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	if payload.MediaType != "audio/wav" {
		t.Errorf("media type = %q, want audio/wav", payload.MediaType)
	}
	if payload.Window.End != 1 {
		t.Errorf("window end = %v, want 1", payload.Window.End)
	}

	samples, rate, err := DecodeWAV(payload.Data)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if len(samples) != 16000 {
		t.Errorf("samples = %d, want 16000", len(samples))
	}
	// 0.5 quantized = round(0.5*32767) = 16384.
	if samples[0] != 16384 {
		t.Errorf("sample = %d, want 16384", samples[0])
	}
}

func TestPrepare_WindowExtraction(t *testing.T) {
	// 3 seconds mono at 100 Hz: value equals the second it belongs to.
	samples := make([]float32, 300)
	for i := range samples {
		samples[i] = float32(i/100) / 10
	}
	src := &Source{Samples: samples, SampleRate: 100, Channels: 1}

	payload, err := Prepare(src, plan.TimeWindow{Start: 1, End: 2}, 100)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	got, _, err := DecodeWAV(payload.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("samples = %d, want 100", len(got))
	}
	// All frames in [1,2) have value 0.1 -> 3277.
	for i, s := range got {
		if s != 3277 {
			t.Fatalf("sample %d = %d, want 3277", i, s)
		}
	}
}

func TestPrepare_Downmix(t *testing.T) {
	// Left 1.0, right 0.0 -> mono 0.5.
	samples := make([]float32, 200)
	for i := 0; i < 200; i += 2 {
		samples[i] = 1.0
	}
	src := &Source{Samples: samples, SampleRate: 100, Channels: 2}

	payload, err := Prepare(src, plan.TimeWindow{Start: 0, End: 1}, 100)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	got, _, _ := DecodeWAV(payload.Data)
	if got[0] != 16384 {
		t.Errorf("downmixed sample = %d, want 16384", got[0])
	}
}

func TestPrepare_Resample(t *testing.T) {
	src := stereoSource(48000, 48000, 0.25) // 1 second at 48k
	payload, err := Prepare(src, plan.TimeWindow{Start: 0, End: 1}, 16000)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	got, rate, _ := DecodeWAV(payload.Data)
	if rate != 16000 {
		t.Errorf("rate = %d, want 16000", rate)
	}
	if len(got) != 16000 {
		t.Errorf("resampled length = %d, want 16000", len(got))
	}
}

func TestPrepare_ClampsOutOfRangeSamples(t *testing.T) {
	src := &Source{
		Samples:    []float32{2.0, -3.0, 0},
		SampleRate: 3,
		Channels:   1,
	}
	payload, err := Prepare(src, plan.TimeWindow{Start: 0, End: 1}, 3)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	got, _, _ := DecodeWAV(payload.Data)
	if got[0] != 32767 {
		t.Errorf("clamped high = %d, want 32767", got[0])
	}
	if got[1] != -32767 {
		t.Errorf("clamped low = %d, want -32767", got[1])
	}
}

func TestPrepare_Errors(t *testing.T) {
	src := stereoSource(100, 100, 0)

	if _, err := Prepare(nil, plan.TimeWindow{Start: 0, End: 1}, 100); err == nil {
		t.Error("expected error for nil source")
	}
	if _, err := Prepare(src, plan.TimeWindow{Start: 1, End: 1}, 100); err == nil {
		t.Error("expected error for empty window")
	}
	if _, err := Prepare(src, plan.TimeWindow{Start: 0, End: 1}, 0); err == nil {
		t.Error("expected error for zero target rate")
	}
	// Window entirely past the end of the source.
	if _, err := Prepare(src, plan.TimeWindow{Start: 10, End: 11}, 100); err == nil {
		t.Error("expected error for out-of-range window")
	}
}

func TestSourceDuration(t *testing.T) {
	src := stereoSource(48000, 16000, 0)
	if d := src.Duration(); d != 3 {
		t.Errorf("duration = %v, want 3", d)
	}
}
