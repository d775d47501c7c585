package treeexporter

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	epoch       = time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)
	testTraceID = trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	errBroken   = errors.New("broken pipe")
)

func spanID(n byte) trace.SpanID {
	return trace.SpanID{0, 0, 0, 0, 0, 0, 0, n}
}

func at(d time.Duration) time.Time {
	return epoch.Add(d)
}

// record returns an internal span of testTraceID running from start to end,
// relative to epoch.
func record(id, parent byte, name string, start, end time.Duration, attrs ...attribute.KeyValue) SpanRecord {
	r := SpanRecord{
		TraceID:    testTraceID,
		SpanID:     spanID(id),
		Kind:       trace.SpanKindInternal,
		Name:       name,
		StartTime:  at(start),
		EndTime:    at(end),
		Attributes: attrs,
	}
	if parent != 0 {
		r.ParentSpanID = spanID(parent)
	}
	return r
}

type failingWriter struct {
	writes int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.writes++
	return 0, errBroken
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
