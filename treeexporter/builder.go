package treeexporter

import (
	"io"
	"os"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Builder configures an Exporter.
type Builder struct {
	w              io.Writer
	timingFraction float64
	width          int
	color          ColorMode
	logger         log.Logger
	registerer     prometheus.Registerer
}

// New returns a Builder writing to stdout with the default settings.
func New() *Builder {
	return &Builder{
		w:              os.Stdout,
		timingFraction: DefaultTimingFraction,
		color:          ColorAuto,
		logger:         log.NewNopLogger(),
	}
}

// WithWriter sets the output the trees are printed to.
func (b *Builder) WithWriter(w io.Writer) *Builder {
	b.w = w
	return b
}

// WithTimingFraction sets the share of the line, between 0 and 1, used by the
// timing column.
func (b *Builder) WithTimingFraction(f float64) *Builder {
	b.timingFraction = f
	return b
}

// WithWidth fixes the line width instead of asking the terminal. Zero or
// less restores probing.
func (b *Builder) WithWidth(w int) *Builder {
	b.width = w
	return b
}

// WithColor sets when error lines are printed in red.
func (b *Builder) WithColor(m ColorMode) *Builder {
	b.color = m
	return b
}

// WithLogger sets the logger reporting on buffered traces at shutdown.
func (b *Builder) WithLogger(l log.Logger) *Builder {
	b.logger = l
	return b
}

// WithRegisterer registers the exporter's metrics with reg.
func (b *Builder) WithRegisterer(reg prometheus.Registerer) *Builder {
	b.registerer = reg
	return b
}

// Build returns an Exporter configured by b.
func (b *Builder) Build() *Exporter {
	logger := b.logger
	if logger == nil {
		logger = log.NewNopLogger()
	}

	enabled := colorEnabled(b.color, b.w)
	out := b.w
	if enabled {
		out = colorWriter(b.w)
	}

	return &Exporter{
		out:            out,
		probe:          b.w,
		width:          b.width,
		timingFraction: b.timingFraction,
		palette:        newPalette(enabled),
		logger:         logger,
		metrics:        newMetrics(b.registerer),
		buffer:         newTraceBuffer(),
	}
}

// Install builds the exporter, attaches it to a new tracer provider through a
// synchronous span processor and makes that provider the global one. Shutting
// the provider down prints the traces still buffered.
func (b *Builder) Install(opts ...sdktrace.TracerProviderOption) *sdktrace.TracerProvider {
	opts = append([]sdktrace.TracerProviderOption{sdktrace.WithSyncer(b.Build())}, opts...)
	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	return tp
}
