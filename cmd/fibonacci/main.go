// Command fibonacci traces the computation of the first n fibonacci numbers.
// Setting DEBUG adds an event to every step of the recursion.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/wperron/stdouttree/treeexporter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fibonacci"

var n = flag.Uint64("n", 5, "How many fibonacci numbers to compute.")

func debug(ctx context.Context, msg string) {
	if _, ok := os.LookupEnv("DEBUG"); ok {
		info(ctx, msg)
	}
}

func info(ctx context.Context, msg string) {
	trace.SpanFromContext(ctx).AddEvent(msg)
}

func functionSpan(ctx context.Context, name string, arg1 uint64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(
		attribute.String("arg1", strconv.FormatUint(arg1, 10)),
	))
}

func nthFibonacci(ctx context.Context, n uint64) uint64 {
	ctx, span := functionSpan(ctx, "nth_fibonacci", n)
	defer span.End()

	if n == 0 || n == 1 {
		debug(ctx, "Base case")
		return 1
	}
	debug(ctx, "Recursing")
	return nthFibonacci(ctx, n-1) + nthFibonacci(ctx, n-2)
}

func fibonacciSeq(ctx context.Context, to uint64) []uint64 {
	ctx, span := functionSpan(ctx, "fibonacci_seq", to)
	defer span.End()

	sequence := make([]uint64, 0, to+1)
	for i := uint64(0); i <= to; i++ {
		debug(ctx, fmt.Sprintf("Pushing %d fibonacci", i))
		sequence = append(sequence, nthFibonacci(ctx, i))
	}
	return sequence
}

func main() {
	flag.Parse()

	tp := treeexporter.New().WithTimingFraction(0.5).Install()

	ctx, root := otel.Tracer(tracerName).Start(context.Background(), "root")
	sequence := fibonacciSeq(ctx, *n)
	info(ctx, fmt.Sprintf("The first %d fibonacci numbers are %v", *n, sequence))
	root.End()

	if err := tp.Shutdown(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
