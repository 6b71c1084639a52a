package plan

import (
	"fmt"
	"math"
)

// TimeWindow is one bounded span of source audio, in seconds. Windows
// produced by Plan are contiguous, non-overlapping, and cover
// [0, totalDuration) exactly.
type TimeWindow struct {
	Start float64
	End   float64
}

// Duration returns the window length in seconds.
func (w TimeWindow) Duration() float64 {
	return w.End - w.Start
}

// Plan splits totalDuration into an ordered sequence of windows of at most
// chunkDuration seconds each. The final window may be shorter. A zero
// totalDuration yields an empty plan.
func Plan(totalDuration, chunkDuration float64) ([]TimeWindow, error) {
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkDuration)
	}
	if totalDuration < 0 {
		return nil, fmt.Errorf("total duration must be non-negative, got %v", totalDuration)
	}
	if totalDuration == 0 {
		return nil, nil
	}

	count := int(math.Ceil(totalDuration / chunkDuration))
	windows := make([]TimeWindow, 0, count)
	for i := 0; i < count; i++ {
		start := float64(i) * chunkDuration
		end := math.Min(start+chunkDuration, totalDuration)
		windows = append(windows, TimeWindow{Start: start, End: end})
	}
	return windows, nil
}
