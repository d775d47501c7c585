package treeexporter

import (
	"context"
	"io"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

var _ sdktrace.SpanExporter = &Exporter{}

// Exporter is an implementation of sdktrace.SpanExporter that prints every
// trace as an indented tree once its root span has ended.
//
// An Exporter is not safe for concurrent use. The SDK span processors never
// call ExportSpans concurrently and only call Shutdown after the last export;
// callers using Ingest and Drain directly must give the same guarantee.
type Exporter struct {
	// Output the trees are written to, and the writer it wraps, which is
	// the one probed for the terminal width.
	out   io.Writer
	probe io.Writer

	// Fixed terminal width, 0 to probe the output on every trace.
	width          int
	timingFraction float64

	palette *palette
	logger  log.Logger
	metrics *metrics

	buffer  *traceBuffer
	stopped bool
}

// ExportSpans buffers spans and prints the traces whose root is among them.
// It fails only when writing to the output fails, in which case the rest of
// the batch is dropped.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if e.stopped {
		return nil
	}

	batch := make([]SpanRecord, 0, len(spans))
	for _, s := range spans {
		batch = append(batch, RecordFromSpan(s))
	}
	return e.Ingest(batch)
}

// Shutdown prints whatever is still buffered. It never fails; traces that
// cannot be written are logged and dropped.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.stopped {
		return nil
	}
	e.stopped = true
	e.Drain()
	return nil
}

// Ingest is ExportSpans for records built outside of the SDK.
func (e *Exporter) Ingest(batch []SpanRecord) error {
	e.metrics.spansReceived.Add(float64(len(batch)))
	defer func() { e.metrics.bufferedTraces.Set(float64(e.buffer.len())) }()

	return e.buffer.ingest(batch, e.render)
}

// Drain prints every buffered trace, placing spans whose parent never arrived
// under ORPHANED placeholder roots.
func (e *Exporter) Drain() {
	orphans := e.buffer.drain(func(traceID trace.TraceID, spans map[trace.SpanID][]SpanRecord) error {
		_ = level.Debug(e.logger).Log(
			"msg", "printing incomplete trace",
			"trace_id", traceID.String(),
			"orphans", len(spans[rootBucket]),
		)
		if err := e.render(traceID, spans); err != nil {
			_ = level.Warn(e.logger).Log("msg", "dropping buffered trace", "trace_id", traceID.String(), "err", err)
		}
		return nil
	})
	e.metrics.orphans.Add(float64(orphans))
	e.metrics.bufferedTraces.Set(float64(e.buffer.len()))
}

func (e *Exporter) render(traceID trace.TraceID, spans map[trace.SpanID][]SpanRecord) error {
	if err := printTrace(e.out, spans, e.columns(), e.palette); err != nil {
		e.metrics.writeErrors.Inc()
		return err
	}
	e.metrics.tracesRendered.Inc()
	return nil
}

func (e *Exporter) columns() Columns {
	width := e.width
	if width <= 0 {
		width = terminalWidth(e.probe)
	}
	return NewColumns(width, e.timingFraction)
}
