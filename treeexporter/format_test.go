package treeexporter

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0"},
		{time.Nanosecond, "0"},
		{999 * time.Microsecond, "0"},
		{time.Millisecond, "1ms"},
		{10 * time.Millisecond, "10ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1s"},
		{35 * time.Second, "35s"},
		{119*time.Second + 999*time.Millisecond, "119s"},
		{120 * time.Second, "2m"},
		{7199 * time.Second, "119m"},
		{7200 * time.Second, "2h"},
		{9000 * time.Second, "2h"},
		{-time.Second, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d), "duration %s", tt.d)
	}
}

func TestFormatTiming(t *testing.T) {
	ref := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	refDuration := 10 * time.Second

	tests := []struct {
		name     string
		width    int
		refDur   time.Duration
		start    time.Duration
		duration time.Duration
		want     string
	}{
		{"proportional", 15, refDuration, time.Second, 2 * time.Second, "  ===          "},
		{"zero width", 0, refDuration, time.Second, 2 * time.Second, ""},
		{"zero reference", 15, 0, time.Second, 2 * time.Second, "==============="},
		{"zero duration", 15, refDuration, time.Second, 0, "  =            "},
		{"before reference", 15, refDuration, -5 * time.Second, 2 * time.Second, "===            "},
		{"at reference end", 15, refDuration, 10 * time.Second, 2 * time.Second, "            ==="},
		{"whole reference", 15, refDuration, 0, refDuration, "==============="},
		{"longer than reference", 15, refDuration, 0, 20 * time.Second, "==============="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTiming(tt.width, ref, tt.refDur, ref.Add(tt.start), tt.duration, spanFill)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.width, utf8.RuneCountInString(got))
		})
	}
}

func TestFormatTimingEventMarker(t *testing.T) {
	ref := time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)

	got := formatTiming(10, ref, 10*time.Second, ref.Add(3*time.Second), 0, eventFill)
	assert.Equal(t, "   ·      ", got)
	assert.Equal(t, 10, utf8.RuneCountInString(got))
}
