package treeexporter

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"
)

func stub(r SpanRecord) sdktrace.ReadOnlySpan {
	return tracetest.SpanStub{
		Name: r.Name,
		SpanContext: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: r.TraceID,
			SpanID:  r.SpanID,
		}),
		Parent: trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: r.TraceID,
			SpanID:  r.ParentSpanID,
			Remote:  r.RemoteParent,
		}),
		SpanKind:   r.Kind,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Attributes: r.Attributes,
		Events:     r.Events,
		Status:     r.Status,
	}.Snapshot()
}

func stubs(records ...SpanRecord) []sdktrace.ReadOnlySpan {
	out := make([]sdktrace.ReadOnlySpan, 0, len(records))
	for _, r := range records {
		out = append(out, stub(r))
	}
	return out
}

func TestRecordFromSpan(t *testing.T) {
	want := record(2, 1, "child", secs(1), secs(2), attribute.String("k", "v"))
	want.Kind = trace.SpanKindProducer
	want.RemoteParent = true
	want.Status = sdktrace.Status{Code: codes.Error, Description: "boom"}
	want.Events = []sdktrace.Event{{Name: "e", Time: at(secs(1))}}

	got := RecordFromSpan(stub(want))
	assert.Equal(t, want, got)
	assert.True(t, got.IsRoot())
}

func TestExporterExportSpans(t *testing.T) {
	var buf bytes.Buffer
	reg := prometheus.NewPedanticRegistry()
	exp := New().WithWriter(&buf).WithWidth(60).WithColor(ColorNever).WithRegisterer(reg).Build()

	spans := bookTrace()
	root := spans[rootBucket][0]
	children := spans[spanID(1)]

	ctx := context.Background()
	require.NoError(t, exp.ExportSpans(ctx, stubs(children...)))
	assert.Empty(t, buf.String(), "nothing is printed before the root ends")
	assert.Equal(t, 1.0, testutil.ToFloat64(exp.metrics.bufferedTraces))

	require.NoError(t, exp.ExportSpans(ctx, stubs(root)))
	assert.Equal(t, bookTraceOutput, buf.String())

	assert.Equal(t, 3.0, testutil.ToFloat64(exp.metrics.spansReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(exp.metrics.tracesRendered))
	assert.Equal(t, 0.0, testutil.ToFloat64(exp.metrics.bufferedTraces))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}

func TestExporterWriteFailureAbortsBatch(t *testing.T) {
	w := &failingWriter{}
	exp := New().WithWriter(w).WithWidth(80).Build()

	other := record(5, 0, "other root", 0, secs(1))
	other.TraceID = trace.TraceID{1}

	err := exp.ExportSpans(context.Background(), stubs(record(1, 0, "root", 0, secs(1)), other))
	var werr *WriteError
	require.ErrorAs(t, err, &werr)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, 1, w.writes)
	assert.Equal(t, 1.0, testutil.ToFloat64(exp.metrics.writeErrors))
	assert.Equal(t, 0.0, testutil.ToFloat64(exp.metrics.tracesRendered))
}

func TestExporterShutdownPrintsOrphans(t *testing.T) {
	var buf, logs bytes.Buffer
	exp := New().
		WithWriter(&buf).
		WithWidth(40).
		WithTimingFraction(0.25).
		WithLogger(log.NewLogfmtLogger(&logs)).
		Build()

	require.NoError(t, exp.ExportSpans(context.Background(), stubs(
		record(3, 2, "grandchild", secs(3), secs(4)),
		record(2, 1, "child", secs(2), secs(4)),
	)))
	require.Empty(t, buf.String())

	require.NoError(t, exp.Shutdown(context.Background()))
	assert.Equal(t, ""+
		"IN  ORPHANED          0      0  ========\n"+
		"  IN  child           0     2s  ========\n"+
		"    IN  grandchild    0     1s  ========\n",
		buf.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(exp.metrics.orphans))
	assert.Contains(t, logs.String(), "printing incomplete trace")

	// Once shut down, the exporter ignores new spans.
	require.NoError(t, exp.ExportSpans(context.Background(), stubs(record(9, 0, "late", 0, 0))))
	require.NoError(t, exp.Shutdown(context.Background()))
	assert.Equal(t, 3, strings.Count(buf.String(), "\n"))
}

func TestExporterShutdownSwallowsWriteErrors(t *testing.T) {
	var logs bytes.Buffer
	w := &failingWriter{}
	exp := New().WithWriter(w).WithLogger(log.NewLogfmtLogger(&logs)).Build()

	require.NoError(t, exp.Ingest([]SpanRecord{record(2, 1, "child", 0, secs(1))}))
	assert.NoError(t, exp.Shutdown(context.Background()))
	assert.Equal(t, 1, w.writes)
	assert.Contains(t, logs.String(), "dropping buffered trace")
	assert.Contains(t, logs.String(), "broken pipe")
}

func TestExporterWithTracerProvider(t *testing.T) {
	var buf bytes.Buffer
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(
		New().WithWriter(&buf).WithWidth(100).Build(),
	))
	tracer := tp.Tracer("treeexporter_test")

	ctx, root := tracer.Start(context.Background(), "request",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			semconv.HTTPMethodKey.String("GET"),
			semconv.HTTPURLKey.String("http://books.example/authors/1"),
			semconv.HTTPStatusCodeKey.Int(200),
		),
	)
	_, first := tracer.Start(ctx, "first")
	first.AddEvent("cache miss")
	first.End()
	_, second := tracer.Start(ctx, "second", trace.WithAttributes(attribute.Int("n", 2)))
	second.RecordError(assert.AnError)
	second.SetStatus(codes.Error, "failed")
	second.End()

	assert.Empty(t, buf.String())
	root.End()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "SE  books.example  GET /authors/1"))
	assert.True(t, strings.HasPrefix(lines[1], "  IN  first  "))
	assert.True(t, strings.HasPrefix(lines[2], "    cache miss"))
	assert.True(t, strings.HasPrefix(lines[3], "  IN  second  n=2"))
	assert.True(t, strings.HasPrefix(lines[4], "    *errors.errorString: "+assert.AnError.Error()))
	for _, line := range lines {
		assert.Equal(t, 100, len([]rune(line)))
	}

	require.NoError(t, tp.Shutdown(context.Background()))
}

func TestBuilderInstall(t *testing.T) {
	var buf bytes.Buffer
	tp := New().WithWriter(&buf).WithWidth(80).Install()

	_, span := tp.Tracer("treeexporter_test").Start(context.Background(), "lonely")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.True(t, strings.HasPrefix(buf.String(), "IN  lonely  "))
}
