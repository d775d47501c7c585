package treeexporter

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"
)

// rootBucket is the key under which a trace's root spans are stored.
var rootBucket = trace.SpanID{}

const indentation = "  "

// palette decides how error lines are highlighted.
type palette struct {
	errColor *color.Color
}

func newPalette(enabled bool) *palette {
	c := color.New(color.FgRed)
	if enabled {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return &palette{errColor: c}
}

func (p *palette) paint(line string, isErr bool) string {
	if !isErr || p == nil {
		return line
	}
	return p.errColor.Sprint(line)
}

// timingParent is the interval every bar of a tree is drawn against: the
// whole trace as covered by its root span.
type timingParent struct {
	start    time.Time
	duration time.Duration
}

type printableTrace struct {
	spans   map[trace.SpanID][]SpanRecord
	buf     *bytes.Buffer
	columns Columns
	palette *palette
	timing  timingParent
}

// printable is either a child span or an event, positioned in time.
type printable struct {
	at    time.Time
	span  *SpanRecord
	event *sdktrace.Event
}

// printTrace renders every tree found in spans, starting from the spans in
// the root bucket, and writes the result to w in a single call. The map is
// consumed: buckets are removed as they are printed.
func printTrace(w io.Writer, spans map[trace.SpanID][]SpanRecord, columns Columns, p *palette) error {
	roots, ok := spans[rootBucket]
	if !ok {
		return ErrNoRoot
	}
	delete(spans, rootBucket)

	pt := &printableTrace{
		spans:   spans,
		buf:     new(bytes.Buffer),
		columns: columns,
		palette: p,
	}
	for i := range roots {
		pt.timing = timingParent{
			start:    roots[i].StartTime,
			duration: roots[i].Duration(),
		}
		pt.printSpanTree(&roots[i], 0)
	}

	if pt.buf.Len() == 0 {
		return nil
	}
	if _, err := w.Write(pt.buf.Bytes()); err != nil {
		return &WriteError{Err: err}
	}
	return nil
}

func (pt *printableTrace) printSpanTree(span *SpanRecord, depth int) {
	pt.printSpan(span, depth)

	children := pt.spans[span.SpanID]
	delete(pt.spans, span.SpanID)

	items := make([]printable, 0, len(children)+len(span.Events))
	for i := range children {
		items = append(items, printable{at: children[i].StartTime, span: &children[i]})
	}
	for i := range span.Events {
		items = append(items, printable{at: span.Events[i].Time, event: &span.Events[i]})
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].at.Before(items[j].at)
	})

	for _, item := range items {
		if item.span != nil {
			pt.printSpanTree(item.span, depth+1)
		} else {
			pt.printEvent(item.event, depth+1)
		}
	}
}

func (pt *printableTrace) printSpan(span *SpanRecord, depth int) {
	info := extractSemanticInfo(*span)

	label := fmt.Sprintf("%s%s  %s  %s", strings.Repeat(indentation, depth), kindCode(span.Kind), info.name, info.details)
	timing := formatTiming(
		pt.columns.barWidth(),
		pt.timing.start,
		pt.timing.duration,
		span.StartTime,
		span.Duration(),
		spanFill,
	)

	line := fmt.Sprintf("%-*s%*d%*s%*s",
		nonNegative(pt.columns.Label), truncate(label, pt.columns.Label),
		pt.columns.Status, info.status,
		pt.columns.Duration, formatDuration(span.Duration()),
		pt.columns.Timing, timing,
	)
	pt.writeLine(line, info.isErr)
}

func (pt *printableTrace) printEvent(event *sdktrace.Event, depth int) {
	isException := event.Name == semconv.ExceptionEventName
	message := event.Name
	if isException {
		excType := "unknown"
		if v, ok := lookupAttribute(event.Attributes, semconv.ExceptionTypeKey); ok {
			excType = v.Emit()
		}
		var excMessage string
		if v, ok := lookupAttribute(event.Attributes, semconv.ExceptionMessageKey); ok {
			excMessage = v.Emit()
		}
		message = excType + ": " + excMessage
	}

	label := strings.Repeat(indentation, depth) + message
	timing := formatTiming(
		pt.columns.barWidth(),
		pt.timing.start,
		pt.timing.duration,
		event.Time,
		0,
		eventFill,
	)

	line := fmt.Sprintf("%-*s%*s",
		pt.columns.eventLabel(), truncate(label, pt.columns.eventLabel()),
		pt.columns.Timing, timing,
	)
	pt.writeLine(line, isException)
}

func (pt *printableTrace) writeLine(line string, isErr bool) {
	pt.buf.WriteString(pt.palette.paint(line, isErr))
	pt.buf.WriteByte('\n')
}

func kindCode(kind trace.SpanKind) string {
	switch kind {
	case trace.SpanKindServer:
		return "SE"
	case trace.SpanKindClient:
		return "CL"
	case trace.SpanKindProducer:
		return "PR"
	case trace.SpanKindConsumer:
		return "CO"
	default:
		return "IN"
	}
}

// truncate cuts s to at most width runes.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == width {
			return s[:i]
		}
		n++
	}
	return s
}
