// Command trace-server is an HTTP server printing the trace of every request
// it serves as a tree on stdout. Traces can also be forwarded to an
// OpenTelemetry Collector.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wperron/stdouttree/client"
	"github.com/wperron/stdouttree/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
)

var (
	configPath    = flag.String("config", "", "The location of the config file.")
	addr          = flag.String("addr", "", "Address the api will listen on. Overrides server.addr.")
	traceEndpoint = flag.String("trace", "", "Address for the OpenTelemetry Collector. Overrides collector.endpoint.")
	logger        log.Logger
	tracer        trace.Tracer
	latency       prometheus.Histogram
)

func main() {
	flag.Parse()

	conf, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if *addr != "" {
		conf.Server.Addr = *addr
	}
	if *traceEndpoint != "" {
		conf.Collector.Endpoint = *traceEndpoint
	}

	// Logs go to stderr, stdout belongs to the trees.
	logger, err = conf.Log.NewLogger(os.Stderr)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	ctx := context.Background()
	tp, err := initTracing(ctx, conf)
	if err != nil {
		_ = level.Error(logger).Log("msg", "failed to initialize tracing", "err", err)
		os.Exit(1)
	}
	tracer = tp.Tracer("trace-server")

	// Create and register basic prometheus metrics for the API's usage
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "A counter for requests to the api.",
		},
		[]string{"code", "method"},
	)

	latency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "api_requests_latency",
			Help: "A histogram for api response latencies.",
		},
	)

	inFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_requests_in_flight",
			Help: "A gauge for the number of in-flight requests.",
		},
	)

	prometheus.MustRegister(counter, latency, inFlight)

	mux := http.NewServeMux()
	mux.Handle("/", promhttp.InstrumentHandlerCounter(
		counter, promhttp.InstrumentHandlerInFlight(inFlight, InstrumentedHandler(new(handler), tp)),
	))

	if conf.Server.Upstream != "" {
		fetcher := &fetchHandler{
			client:   client.New("upstream", tp),
			upstream: conf.Server.Upstream,
		}
		mux.Handle("/fetch", promhttp.InstrumentHandlerCounter(counter, InstrumentedHandler(fetcher, tp)))
	}

	mux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.DefaultGatherer,
		promhttp.HandlerOpts{
			// Opt into OpenMetrics to support exemplars
			EnableOpenMetrics: true,
		},
	))

	srv := &http.Server{Addr: conf.Server.Addr, Handler: mux}
	go func() {
		_ = level.Info(logger).Log("msg", "listening", "addr", conf.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			_ = level.Error(logger).Log("msg", "server stopped", "err", err)
			os.Exit(1)
		}
	}()

	// Set up channel on which to send termination signal notifications.
	// We must use a buffered channel or risk missing the signal
	// if we're not ready to receive when the signal is sent.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigs
	_ = level.Info(logger).Log("msg", "shutting down", "signal", s)

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		_ = level.Warn(logger).Log("msg", "failed to stop server", "err", err)
	}
	// Prints the traces that never saw their root.
	if err := tp.Shutdown(shutdownCtx); err != nil {
		_ = level.Warn(logger).Log("msg", "failed to stop tracer provider", "err", err)
	}
}

// initTracing installs the tree exporter, plus an OTLP exporter when a
// collector endpoint is configured.
func initTracing(ctx context.Context, conf *config.Config) (*sdktrace.TracerProvider, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			// the service name used to display traces in backends
			semconv.ServiceNameKey.String("trace-server"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating otel resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	}

	if conf.Collector.Endpoint != "" {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		exp, err := otlptracegrpc.New(dialCtx,
			otlptracegrpc.WithInsecure(),
			otlptracegrpc.WithEndpoint(conf.Collector.Endpoint),
			otlptracegrpc.WithDialOption(grpc.WithBlock()),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	tp := conf.Builder().
		WithLogger(logger).
		WithRegisterer(prometheus.DefaultRegisterer).
		Install(opts...)

	// Incoming trace context makes the server span a remote child, printed
	// as the root of its own tree.
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp, nil
}

type handler struct{}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handler")
	defer span.End()
	randomRecurse(ctx, 0, 5, int(20*time.Millisecond), int(100*time.Millisecond))
	fmt.Fprint(w, "Hello, World!")
}

func randomRecurse(ctx context.Context, curr, max, minDur, maxDur int) {
	dur := time.Duration(rand.Intn(maxDur-minDur) + minDur)
	ctx, span := tracer.Start(ctx, "recurse", trace.WithAttributes(
		attribute.Int("duration", int(dur.Milliseconds())),
		attribute.Int("depth", curr),
	))
	defer span.End()

	time.Sleep(dur)
	if curr == max {
		span.AddEvent("max depth reached")
		return
	}

	if rand.Intn(2)&1 == 1 {
		curr++
		randomRecurse(ctx, curr, max, minDur, maxDur)
	}
}

type fetchHandler struct {
	client   *client.Client
	upstream string
}

func (h *fetchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := h.client.Get(r.Context(), h.upstream)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	fmt.Fprintf(w, "%s %s: %d (%d bytes in %s)\n", res.Method, res.URL, res.Status, res.Bytes, res.Latency)
}

func InstrumentedHandler(next http.Handler, tp trace.TracerProvider) http.Handler {
	handlerFunc := func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		d := newDelegator(w)
		ctx := r.Context()
		traceID := trace.SpanContextFromContext(ctx).TraceID().String()
		next.ServeHTTP(d, r)
		latency.(prometheus.ExemplarObserver).ObserveWithExemplar(
			time.Since(start).Seconds(), prometheus.Labels{"traceID": traceID},
		)
		_ = level.Debug(logger).Log("trace_id", traceID, "path", r.URL.Path, "method", r.Method, "status", d.statusCode, "bytes", d.written)
	}

	return otelhttp.NewHandler(http.HandlerFunc(handlerFunc), "http", otelhttp.WithTracerProvider(tp))
}

type responseWriterDelegator struct {
	http.ResponseWriter
	statusCode  int
	written     int64
	wroteHeader bool
}

func (d *responseWriterDelegator) WriteHeader(statusCode int) {
	d.statusCode = statusCode
	d.wroteHeader = true
	d.ResponseWriter.WriteHeader(statusCode)
}

func (d *responseWriterDelegator) Write(b []byte) (int, error) {
	if !d.wroteHeader {
		d.WriteHeader(http.StatusOK)
	}
	n, err := d.ResponseWriter.Write(b)
	d.written += int64(n)
	return n, err
}

func newDelegator(w http.ResponseWriter) *responseWriterDelegator {
	return &responseWriterDelegator{
		ResponseWriter: w,
	}
}
