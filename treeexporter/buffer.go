package treeexporter

import (
	"bytes"
	"sort"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// orphanedSpanName names the placeholder roots synthesized for parents that
// never showed up.
const orphanedSpanName = "ORPHANED"

// renderFunc prints one trace. It owns the map it is given.
type renderFunc func(traceID trace.TraceID, spans map[trace.SpanID][]SpanRecord) error

// traceBuffer holds spans until the root of their trace arrives. Spans are
// keyed by trace, then by the ID of their parent; the relationships are only
// ever expressed through those IDs.
//
// A traceBuffer is not safe for concurrent use.
type traceBuffer struct {
	traces map[trace.TraceID]map[trace.SpanID][]SpanRecord
}

func newTraceBuffer() *traceBuffer {
	return &traceBuffer{
		traces: make(map[trace.TraceID]map[trace.SpanID][]SpanRecord),
	}
}

// ingest buffers the batch. Whenever a root span comes by, everything buffered
// for its trace is taken out and rendered right away, with the root as the
// only member of the root bucket. The first render error stops the batch and
// is returned; the rest of the batch is dropped.
func (b *traceBuffer) ingest(batch []SpanRecord, render renderFunc) error {
	for _, r := range batch {
		if !r.IsRoot() {
			b.add(r)
			continue
		}

		spans := b.take(r.TraceID)
		spans[rootBucket] = []SpanRecord{r}
		if err := render(r.TraceID, spans); err != nil {
			return err
		}
	}
	return nil
}

func (b *traceBuffer) add(r SpanRecord) {
	spans, ok := b.traces[r.TraceID]
	if !ok {
		spans = make(map[trace.SpanID][]SpanRecord)
		b.traces[r.TraceID] = spans
	}
	spans[r.ParentSpanID] = append(spans[r.ParentSpanID], r)
}

// take removes the spans of a trace from the buffer and returns them. The
// returned map is never nil.
func (b *traceBuffer) take(traceID trace.TraceID) map[trace.SpanID][]SpanRecord {
	spans, ok := b.traces[traceID]
	if !ok {
		return make(map[trace.SpanID][]SpanRecord)
	}
	delete(b.traces, traceID)
	return spans
}

// drain renders every trace still buffered, rooted at placeholder spans for
// the parents that never arrived. Render errors are ignored. It returns the
// number of placeholders synthesized.
func (b *traceBuffer) drain(render renderFunc) int {
	traceIDs := make([]trace.TraceID, 0, len(b.traces))
	for id := range b.traces {
		traceIDs = append(traceIDs, id)
	}
	sort.Slice(traceIDs, func(i, j int) bool {
		return bytes.Compare(traceIDs[i][:], traceIDs[j][:]) < 0
	})

	var orphans int
	for _, id := range traceIDs {
		spans := b.take(id)
		roots := orphanRoots(id, spans)
		orphans += len(roots)
		spans[rootBucket] = roots
		_ = render(id, spans)
	}
	return orphans
}

// len is the number of traces waiting for their root.
func (b *traceBuffer) len() int {
	return len(b.traces)
}

// orphanRoots builds one ORPHANED placeholder for every parent ID that is
// referenced in spans without being the ID of any span in it. Placeholders
// have a zero length and sit at the earliest start of their children.
func orphanRoots(traceID trace.TraceID, spans map[trace.SpanID][]SpanRecord) []SpanRecord {
	known := make(map[trace.SpanID]struct{})
	for _, bucket := range spans {
		for _, r := range bucket {
			known[r.SpanID] = struct{}{}
		}
	}

	var roots []SpanRecord
	for parentID, children := range spans {
		if _, ok := known[parentID]; ok || len(children) == 0 {
			continue
		}
		at := earliestStart(children)
		roots = append(roots, SpanRecord{
			TraceID:   traceID,
			SpanID:    parentID,
			Kind:      trace.SpanKindInternal,
			Name:      orphanedSpanName,
			StartTime: at,
			EndTime:   at,
		})
	}

	sort.Slice(roots, func(i, j int) bool {
		if !roots[i].StartTime.Equal(roots[j].StartTime) {
			return roots[i].StartTime.Before(roots[j].StartTime)
		}
		return bytes.Compare(roots[i].SpanID[:], roots[j].SpanID[:]) < 0
	})
	return roots
}

func earliestStart(spans []SpanRecord) time.Time {
	var earliest time.Time
	for i, r := range spans {
		if i == 0 || r.StartTime.Before(earliest) {
			earliest = r.StartTime
		}
	}
	return earliest
}
