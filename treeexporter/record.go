package treeexporter

import (
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SpanRecord is a finished span as it is buffered and printed by the
// Exporter. Records are values; once built they are never mutated.
type SpanRecord struct {
	TraceID      trace.TraceID
	SpanID       trace.SpanID
	ParentSpanID trace.SpanID

	// RemoteParent is set when the parent span lives in another process.
	// Such spans are printed as the root of their own tree.
	RemoteParent bool

	Kind       trace.SpanKind
	Name       string
	StartTime  time.Time
	EndTime    time.Time
	Attributes []attribute.KeyValue
	Status     sdktrace.Status
	Events     []sdktrace.Event
}

// RecordFromSpan copies the fields the exporter needs out of a span handed
// over by the SDK.
func RecordFromSpan(s sdktrace.ReadOnlySpan) SpanRecord {
	parent := s.Parent()
	return SpanRecord{
		TraceID:      s.SpanContext().TraceID(),
		SpanID:       s.SpanContext().SpanID(),
		ParentSpanID: parent.SpanID(),
		RemoteParent: parent.IsRemote(),
		Kind:         s.SpanKind(),
		Name:         s.Name(),
		StartTime:    s.StartTime(),
		EndTime:      s.EndTime(),
		Attributes:   s.Attributes(),
		Status:       s.Status(),
		Events:       s.Events(),
	}
}

// IsRoot reports whether the span starts a new tree: it either has no parent
// at all or its parent is remote.
func (r SpanRecord) IsRoot() bool {
	return !r.ParentSpanID.IsValid() || r.RemoteParent
}

// Duration is the span's length, zero if the end precedes the start.
func (r SpanRecord) Duration() time.Duration {
	d := r.EndTime.Sub(r.StartTime)
	if d < 0 {
		return 0
	}
	return d
}

func (r SpanRecord) attribute(key attribute.Key) (attribute.Value, bool) {
	return lookupAttribute(r.Attributes, key)
}

func lookupAttribute(kvs []attribute.KeyValue, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range kvs {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}
