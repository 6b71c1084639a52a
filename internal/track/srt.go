package track

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/abadojack/whatlanggo"
)

// Characters-per-line display limits. CJK glyphs are wider, so CJK captions
// wrap earlier.
const (
	cjkCharsPerLine   = 25
	latinCharsPerLine = 42
)

// FormatSRT serializes an already-ordered caption track as SubRip text:
// 1-based sequential index, millisecond timestamps, blank line between
// blocks. Captions longer than the display limit are wrapped onto a second
// line.
func FormatSRT(segments []Segment) string {
	if len(segments) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, seg := range segments {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n",
			i+1, formatSRTTime(seg.Start), formatSRTTime(seg.End), wrapText(seg.Text))
		if i < len(segments)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// formatSRTTime converts seconds to SRT time format HH:MM:SS,mmm.
func formatSRTTime(seconds float64) string {
	totalSec := math.Abs(seconds)
	hours := int(totalSec / 3600)
	remainder := math.Mod(totalSec, 3600)
	minutes := int(remainder / 60)
	secs := math.Mod(remainder, 60)
	millis := int(math.Round(math.Mod(secs, 1) * 1000))
	if millis >= 1000 {
		millis = 999
	}
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, int(secs), millis)
}

// wrapText returns the caption on a single line if it fits the per-script
// display limit, otherwise splits it into two lines near the midpoint,
// preferring a space when the script uses them.
func wrapText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	maxCPL := latinCharsPerLine
	if isCJKText(text) {
		maxCPL = cjkCharsPerLine
	}
	if utf8.RuneCountInString(text) <= maxCPL {
		return text
	}

	runes := []rune(text)
	splitPos := findSplitPosition(runes, maxCPL)

	first := strings.TrimSpace(string(runes[:splitPos]))
	rest := strings.TrimSpace(string(runes[splitPos:]))
	if rest == "" {
		return first
	}
	return first + "\n" + rest
}

// findSplitPosition picks the break point for a two-line split: the last
// space at or before the limit, else the limit itself.
func findSplitPosition(runes []rune, maxCPL int) int {
	limit := maxCPL
	if limit > len(runes) {
		limit = len(runes)
	}
	for i := limit; i > limit/2; i-- {
		if runes[i-1] == ' ' {
			return i
		}
	}
	return limit
}

// isCJKText reports whether the caption is written in a CJK language.
func isCJKText(text string) bool {
	switch whatlanggo.Detect(text).Lang {
	case whatlanggo.Cmn, whatlanggo.Jpn, whatlanggo.Kor:
		return true
	}
	return false
}
