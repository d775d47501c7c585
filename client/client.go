// Copyright 2021 William Perron. All rights reserved. MIT License.

// Package client wraps an HTTP client so that every request shows up in a
// trace, as a client span carrying the HTTP semantic attributes, and in the
// Prometheus metrics of the process.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/wperron/stdouttree/client"

var (
	inFlightGauge  *prometheus.GaugeVec
	requestCounter *prometheus.CounterVec
	reqLatencyVec  *prometheus.HistogramVec
)

// Result describes a completed fetch.
type Result struct {
	Method  string
	URL     string
	Status  int
	Bytes   int64
	Latency time.Duration
	TraceID string
}

type Client struct {
	client *http.Client
	tracer trace.Tracer
	target string
}

func init() {
	inFlightGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "client_in_flight_requests",
			Help: "A gauge of in-flight requests for the wrapped client.",
		},
		[]string{"target"},
	)

	requestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "client_api_requests_total",
			Help: "A counter for requests from the wrapped client.",
		},
		[]string{"target", "code", "method"},
	)

	reqLatencyVec = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "A histogram of request latencies.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target"},
	)

	prometheus.MustRegister(requestCounter, reqLatencyVec, inFlightGauge)
}

// New returns a client labelling its metrics with target and creating spans
// with tp. The otelhttp transport sits on top so the client span covers the
// metric middlewares.
func New(target string, tp trace.TracerProvider) *Client {
	roundTripper := InstrumentRoundTripperInFlight(inFlightGauge, target,
		InstrumentRoundTripperCounter(requestCounter, target,
			InstrumentRoundTripperDuration(reqLatencyVec, target, http.DefaultTransport),
		),
	)

	return &Client{
		client: &http.Client{
			Transport: otelhttp.NewTransport(roundTripper, otelhttp.WithTracerProvider(tp)),
			Timeout:   10 * time.Second,
		},
		tracer: tp.Tracer(instrumentationName),
		target: target,
	}
}

// Get fetches url under a "fetch" span, reading the whole body so the client
// span ends before Get returns.
func (c *Client) Get(ctx context.Context, url string) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "fetch",
		trace.WithAttributes(attribute.String("target", c.target)),
	)
	defer span.End()

	res := Result{
		Method:  http.MethodGet,
		URL:     url,
		TraceID: span.SpanContext().TraceID().String(),
	}
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return res, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fmt.Sprintf("client error: %s", err))
		return res, err
	}
	// Reading and closing the body is important to ensure that the file
	// descriptor is not leaked.
	n, err := io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	res.Status = resp.StatusCode
	res.Bytes = n
	res.Latency = time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reading body")
		return res, err
	}
	return res, nil
}

type RoundTripperFunc func(req *http.Request) (*http.Response, error)

// RoundTrip implements the RoundTripper interface.
func (rt RoundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return rt(r)
}

func InstrumentRoundTripperInFlight(gauge *prometheus.GaugeVec, target string, next http.RoundTripper) RoundTripperFunc {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		gauge.WithLabelValues(target).Inc()
		defer gauge.WithLabelValues(target).Dec()
		return next.RoundTrip(r)
	})
}

func InstrumentRoundTripperCounter(counter *prometheus.CounterVec, target string, next http.RoundTripper) RoundTripperFunc {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		resp, err := next.RoundTrip(r)
		if err == nil {
			counter.With(prometheus.Labels{
				"code":   fmt.Sprint(resp.StatusCode),
				"method": r.Method,
				"target": target,
			}).Inc()
		}
		return resp, err
	})
}

func InstrumentRoundTripperDuration(obs prometheus.ObserverVec, target string, next http.RoundTripper) RoundTripperFunc {
	return RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
		start := time.Now()
		resp, err := next.RoundTrip(r)
		if err == nil {
			obs.With(prometheus.Labels{
				"target": target,
			}).Observe(time.Since(start).Seconds())
		}
		return resp, err
	})
}
