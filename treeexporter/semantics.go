package treeexporter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.7.0"
)

// semanticInfo is what gets printed for a span: a short name, free-form
// details, the numeric status and whether the line is an error.
type semanticInfo struct {
	name    string
	details string
	isErr   bool
	status  int64
}

// A semanticMatcher recognizes a family of spans by their attributes.
type semanticMatcher func(SpanRecord) (semanticInfo, bool)

// Matchers are tried in order, the first one to match wins. Spans nobody
// recognizes fall back to defaultSemanticInfo.
var semanticMatchers = []semanticMatcher{
	httpSemanticInfo,
	dbSemanticInfo,
}

func extractSemanticInfo(r SpanRecord) semanticInfo {
	for _, match := range semanticMatchers {
		if info, ok := match(r); ok {
			return info
		}
	}
	return defaultSemanticInfo(r)
}

func httpSemanticInfo(r SpanRecord) (semanticInfo, bool) {
	method, ok := r.attribute(semconv.HTTPMethodKey)
	if !ok {
		return semanticInfo{}, false
	}

	var u *url.URL
	if raw, ok := r.attribute(semconv.HTTPURLKey); ok {
		parsed, err := url.Parse(raw.Emit())
		if err != nil || parsed.Scheme == "" {
			return semanticInfo{}, false
		}
		u = parsed
	}

	name := r.Name
	if u != nil {
		name = u.Hostname()
	} else if v, ok := firstAttribute(r, semconv.HTTPServerNameKey, semconv.HTTPHostKey); ok {
		name = v
	}

	var path string
	if u != nil {
		path = u.EscapedPath()
		if path == "" && u.Host != "" {
			path = "/"
		}
	} else if v, ok := firstAttribute(r, semconv.HTTPRouteKey, semconv.HTTPTargetKey); ok {
		path = v
	}

	info := semanticInfo{
		name:    name,
		details: method.Emit() + " " + path,
		isErr:   r.Status.Code == codes.Error,
	}
	if v, ok := r.attribute(semconv.HTTPStatusCodeKey); ok {
		if code, ok := parseStatusCode(v); ok {
			info.status = code
			info.isErr = code >= 400
		}
	}
	return info, true
}

func dbSemanticInfo(r SpanRecord) (semanticInfo, bool) {
	if _, ok := r.attribute(semconv.DBSystemKey); !ok {
		return semanticInfo{}, false
	}

	name := r.Name
	if v, ok := r.attribute(semconv.DBNameKey); ok {
		name = v.Emit()
	}
	details, _ := firstAttribute(r, semconv.DBStatementKey, semconv.DBOperationKey)

	return semanticInfo{
		name:    name,
		details: details,
		isErr:   r.Status.Code == codes.Error,
		status:  statusNumber(r.Status),
	}, true
}

func defaultSemanticInfo(r SpanRecord) semanticInfo {
	return semanticInfo{
		name:    r.Name,
		details: kvToString(r.Attributes),
		isErr:   r.Status.Code == codes.Error,
		status:  statusNumber(r.Status),
	}
}

// firstAttribute returns the value of the first key present on the span.
func firstAttribute(r SpanRecord, keys ...attribute.Key) (string, bool) {
	for _, key := range keys {
		if v, ok := r.attribute(key); ok {
			return v.Emit(), true
		}
	}
	return "", false
}

// parseStatusCode accepts the status code as an integer, a float (truncated)
// or a base 10 string.
func parseStatusCode(v attribute.Value) (int64, bool) {
	switch v.Type() {
	case attribute.INT64:
		return v.AsInt64(), true
	case attribute.FLOAT64:
		return int64(v.AsFloat64()), true
	case attribute.STRING:
		code, err := strconv.ParseInt(v.AsString(), 10, 64)
		if err != nil {
			return 0, false
		}
		return code, true
	default:
		return 0, false
	}
}

// statusNumber maps span statuses to unset=0, ok=1, error=2.
func statusNumber(s sdktrace.Status) int64 {
	switch s.Code {
	case codes.Ok:
		return 1
	case codes.Error:
		return 2
	default:
		return 0
	}
}

func kvToString(kv []attribute.KeyValue) string {
	asStrings := make([]string, 0, len(kv))
	for _, pair := range kv {
		asStrings = append(asStrings, fmt.Sprintf("%s=%s", pair.Key, pair.Value.Emit()))
	}
	return strings.Join(asStrings, " ")
}
