package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Source holds the fully decoded sample buffer for one input file.
// Samples are interleaved 32-bit floats at the source's native rate.
type Source struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the decoded audio length in seconds.
func (s *Source) Duration() float64 {
	if s.SampleRate <= 0 || s.Channels <= 0 {
		return 0
	}
	frames := len(s.Samples) / s.Channels
	return float64(frames) / float64(s.SampleRate)
}

// MediaInfo holds stream information from ffprobe.
type MediaInfo struct {
	Duration   float64
	SampleRate int
	Channels   int
	Codec      string
}

// Available returns true if ffmpeg and ffprobe are on the PATH.
func Available() bool {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return false
	}
	_, err := exec.LookPath("ffprobe")
	return err == nil
}

// probeOutput mirrors ffprobe JSON structure.
type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe uses ffprobe to read duration and audio stream parameters.
func Probe(ctx context.Context, path string) (*MediaInfo, error) {
	cmd := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=codec_name,sample_rate,channels:format=duration",
		"-of", "json",
		path,
	)

	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("ffprobe JSON parse error: %w", err)
	}

	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio stream in %s", path)
	}

	dur, _ := strconv.ParseFloat(probe.Format.Duration, 64)
	rate, _ := strconv.Atoi(probe.Streams[0].SampleRate)

	info := &MediaInfo{
		Duration:   dur,
		SampleRate: rate,
		Channels:   probe.Streams[0].Channels,
		Codec:      probe.Streams[0].CodecName,
	}
	if info.SampleRate <= 0 || info.Channels <= 0 {
		return nil, fmt.Errorf("invalid stream parameters: rate=%d channels=%d", info.SampleRate, info.Channels)
	}
	return info, nil
}

// Decode extracts the first audio stream of any audio/video input into a
// fully decoded Source, using ffmpeg to emit raw f32le interleaved PCM on a
// pipe. Decode failures are fatal for the run; callers do not retry.
func Decode(ctx context.Context, path string) (*Source, error) {
	info, err := Probe(ctx, path)
	if err != nil {
		return nil, err
	}

	slog.Info("decoding source",
		"codec", info.Codec,
		"sample_rate", info.SampleRate,
		"channels", info.Channels,
		"duration_sec", fmt.Sprintf("%.1f", info.Duration))

	cmd := exec.CommandContext(ctx,
		"ffmpeg",
		"-v", "error",
		"-i", path,
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(info.SampleRate),
		"-ac", strconv.Itoa(info.Channels),
		"-",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w\n%s", err, stderr.String())
	}

	raw := stdout.Bytes()
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
		samples[i] = math.Float32frombits(bits)
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no samples for %s", path)
	}

	return &Source{
		Samples:    samples,
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
	}, nil
}

// IsSupportedExtension returns true for the audio/video extensions the
// pipeline accepts.
func IsSupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".mp3", ".m4a", ".wav", ".flac", ".ogg", ".aac",
		".mp4", ".mov", ".mkv", ".avi", ".flv", ".webm":
		return true
	}
	return false
}
