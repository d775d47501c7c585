// Command readme prints the sample trace of an HTTP request served by a web
// application: middlewares, a session lookup in postgres and a call to a
// GraphQL service failing on one of its fields.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/wperron/stdouttree/treeexporter"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// span runs f inside a new child span of ctx.
func span(ctx context.Context, name string, kind trace.SpanKind, f func(ctx context.Context, span trace.Span), opts ...trace.SpanStartOption) {
	ctx, s := tracer.Start(ctx, name, append(opts, trace.WithSpanKind(kind))...)
	defer s.End()
	if f != nil {
		f(ctx, s)
	}
}

func main() {
	tp := treeexporter.New().Install()
	tracer = tp.Tracer("readme")

	span(context.Background(), "request", trace.SpanKindServer, handleRequest, trace.WithAttributes(
		semconv.HTTPMethodKey.String("GET"),
		semconv.HTTPFlavorHTTP11,
		semconv.HTTPTargetKey.String("/authors/6d50807b-80e6-4802-b01e-3e78137a0fc9/books/d13d226c-c600-42c9-bb9d-96395c5e9351"),
		semconv.HTTPHostKey.String("my-awesome-books.com:443"),
		semconv.HTTPServerNameKey.String("my-awesome-books.com"),
		semconv.NetHostPortKey.Int(443),
		semconv.HTTPSchemeKey.String("https"),
		semconv.HTTPRouteKey.String("/authors/:authorId/books/:bookId"),
		semconv.HTTPStatusCodeKey.Int(500),
		semconv.HTTPClientIPKey.String("192.0.2.4"),
		semconv.NetPeerIPKey.String("192.0.2.5"),
		semconv.HTTPUserAgentKey.String("Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:72.0) Gecko/20100101 Firefox/72.0"),
	))

	if err := tp.Shutdown(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func handleRequest(ctx context.Context, _ trace.Span) {
	span(ctx, "middleware - expressInit", trace.SpanKindInternal, nil)
	span(ctx, "middleware - query", trace.SpanKindInternal, nil)
	span(ctx, "middleware - session", trace.SpanKindInternal, func(ctx context.Context, _ trace.Span) {
		span(ctx, "pg-pool.connect", trace.SpanKindClient, func(context.Context, trace.Span) {
			time.Sleep(300 * time.Millisecond)
		})
		span(ctx, "get session", trace.SpanKindClient, func(context.Context, trace.Span) {
			time.Sleep(200 * time.Millisecond)
		}, trace.WithAttributes(
			semconv.DBSystemPostgreSQL,
			semconv.DBConnectionStringKey.String("postgresql://user@localhost/sessions"),
			semconv.DBUserKey.String("user"),
			semconv.NetPeerNameKey.String("localhost"),
			semconv.NetPeerIPKey.String("127.0.0.1"),
			semconv.NetPeerPortKey.Int(5432),
			semconv.NetTransportTCP,
			semconv.DBNameKey.String("sessions"),
			semconv.DBStatementKey.String(`SELECT sess FROM "session" WHERE sid = $1 AND expire >= to_timestamp($2)`),
		))
	})
	span(ctx, "middleware - initialize", trace.SpanKindInternal, nil)
	span(ctx, "middleware - authenticate", trace.SpanKindInternal, func(_ context.Context, s trace.Span) {
		s.AddEvent("user authenticated", trace.WithAttributes(semconv.EnduserIDKey.String("42")))
	})
	span(ctx, "request handler - /authors/:authorId/books/:bookId", trace.SpanKindInternal, getBook)
}

func getBook(ctx context.Context, _ trace.Span) {
	span(ctx, "get book", trace.SpanKindClient, func(ctx context.Context, _ trace.Span) {
		time.Sleep(5 * time.Millisecond)
		span(ctx, "request", trace.SpanKindServer, serveGraphQL, trace.WithAttributes(
			semconv.HTTPMethodKey.String("POST"),
			semconv.HTTPFlavorHTTP11,
			semconv.HTTPTargetKey.String("/graphql"),
			semconv.HTTPHostKey.String("book-service.book-service:443"),
			semconv.HTTPServerNameKey.String("book-service.book.service"),
			semconv.NetHostPortKey.Int(80),
			semconv.HTTPSchemeKey.String("http"),
			semconv.HTTPRouteKey.String("/graphql"),
			semconv.HTTPStatusCodeKey.Int(200),
			semconv.HTTPClientIPKey.String("192.0.2.4"),
			semconv.NetPeerIPKey.String("192.0.2.5"),
		))
		time.Sleep(21 * time.Millisecond)
	}, trace.WithAttributes(
		semconv.HTTPMethodKey.String("POST"),
		semconv.HTTPFlavorHTTP11,
		semconv.HTTPURLKey.String("http://book-service.book-service/graphql"),
		semconv.NetPeerIPKey.String("192.0.2.5"),
		semconv.HTTPStatusCodeKey.Int(200),
	))
}

func serveGraphQL(ctx context.Context, _ trace.Span) {
	span(ctx, "query", trace.SpanKindInternal, func(ctx context.Context, _ trace.Span) {
		span(ctx, "field", trace.SpanKindInternal, func(_ context.Context, s trace.Span) {
			s.RecordError(errors.New("something went wrong"))
			s.SetStatus(codes.Error, "something went wrong")
		})
	})
	span(ctx, "parse", trace.SpanKindInternal, nil)
	span(ctx, "validation", trace.SpanKindInternal, nil)
}
