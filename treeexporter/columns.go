package treeexporter

const (
	// columnGap is the number of spaces separating two columns.
	columnGap = 2

	// Three digits, enough for an HTTP status code.
	statusContentWidth = 3

	// Three digits plus a unit of up to two characters, e.g. 999ms.
	durationContentWidth = 5

	minLabelWidth = 10

	// DefaultTimingFraction is the share of the terminal given to the timing
	// column when none is configured.
	DefaultTimingFraction = 0.2

	defaultTerminalWidth = 80
)

// Columns holds the widths of the four columns of a printed line. The widths
// of the status, duration and timing columns include the gap on their left.
type Columns struct {
	Label    int
	Status   int
	Duration int
	Timing   int
}

// NewColumns splits terminalWidth into columns, giving timingFraction of it
// to the timing column. The label column never shrinks below 10 runes as
// long as the terminal is wide enough to hold it; the widths always add up
// to terminalWidth.
func NewColumns(terminalWidth int, timingFraction float64) Columns {
	status := statusContentWidth + columnGap
	duration := durationContentWidth + columnGap

	maxTiming := terminalWidth - minLabelWidth - status - duration
	if maxTiming < 0 {
		maxTiming = 0
	}
	timing := clampRound(float64(terminalWidth)*timingFraction, 0, maxTiming)

	return Columns{
		Label:    terminalWidth - status - duration - timing,
		Status:   status,
		Duration: duration,
		Timing:   timing,
	}
}

// barWidth is the width of the timing bar itself, without the column gap.
func (c Columns) barWidth() int {
	return nonNegative(c.Timing - columnGap)
}

// eventLabel is the width available to event messages, which span the label,
// status and duration columns.
func (c Columns) eventLabel() int {
	return nonNegative(c.Label + c.Status + c.Duration)
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
