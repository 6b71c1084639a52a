// Package track assembles per-chunk transcription results into the single
// time-ordered caption track and serializes it to SRT.
package track

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"batchscribe/internal/plan"
	"batchscribe/internal/transcribe"
)

// Segment is one caption on the final track. Immutable after creation.
type Segment struct {
	ID    string  `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Merge offsets a chunk's raw segments by the chunk window's start, mints a
// unique id per caption, and returns a new track kept stably sorted by start
// time. The input track is never mutated, and the merge result does not
// depend on the order chunks complete in. An empty chunk result (silence) is
// legal and returns the track unchanged.
func Merge(existing []Segment, chunkResult []transcribe.Segment, window plan.TimeWindow) []Segment {
	if len(chunkResult) == 0 {
		return existing
	}

	merged := make([]Segment, 0, len(existing)+len(chunkResult))
	merged = append(merged, existing...)
	for _, raw := range chunkResult {
		merged = append(merged, Segment{
			ID:    uuid.NewString(),
			Start: roundMillis(raw.Start + window.Start),
			End:   roundMillis(raw.End + window.Start),
			Text:  raw.Text,
		})
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Start < merged[j].Start
	})
	return merged
}

// roundMillis keeps offset timestamps at millisecond precision.
func roundMillis(seconds float64) float64 {
	return math.Round(seconds*1000) / 1000
}
