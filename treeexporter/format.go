package treeexporter

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	spanFill  = '='
	eventFill = '·'
)

// formatDuration renders d in a single, truncated unit: 2h, 15m, 35s, 10ms.
// Anything under a millisecond is "0".
func formatDuration(d time.Duration) string {
	switch {
	case d >= 2*time.Hour:
		return strconv.FormatInt(int64(d/time.Hour), 10) + "h"
	case d >= 2*time.Minute:
		return strconv.FormatInt(int64(d/time.Minute), 10) + "m"
	case d >= time.Second:
		return strconv.FormatInt(int64(d/time.Second), 10) + "s"
	case d >= time.Millisecond:
		return strconv.FormatInt(int64(d/time.Millisecond), 10) + "ms"
	default:
		return "0"
	}
}

// formatTiming draws a bar of exactly width runes showing where the interval
// [start, start+duration] sits inside the reference interval. The bar always
// has at least one fill rune and is shifted left rather than cut when it
// would overflow the width.
func formatTiming(width int, refStart time.Time, refDuration time.Duration, start time.Time, duration time.Duration, fill rune) string {
	if width <= 0 {
		return ""
	}
	if refDuration <= 0 {
		return strings.Repeat(string(fill), width)
	}

	scale := float64(width) / refDuration.Seconds()
	fillLen := clampRound(duration.Seconds()*scale, 1, width)
	offset := clampRound(start.Sub(refStart).Seconds()*scale, 0, width-fillLen)

	var b strings.Builder
	b.Grow(width + 2)
	b.WriteString(strings.Repeat(" ", offset))
	b.WriteString(strings.Repeat(string(fill), fillLen))
	b.WriteString(strings.Repeat(" ", width-offset-fillLen))
	return b.String()
}

// clampRound rounds v half away from zero and clamps it into [lo, hi]. NaN
// maps to lo.
func clampRound(v float64, lo, hi int) int {
	v = math.Round(v)
	if !(v >= float64(lo)) {
		return lo
	}
	if v > float64(hi) {
		return hi
	}
	return int(v)
}
