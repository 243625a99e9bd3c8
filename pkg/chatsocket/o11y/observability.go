// Package o11y holds the telemetry hooks an EventSocket reports through.
// The socket depends only on these interfaces; the otel package adapts them
// to OpenTelemetry.
package o11y

import (
	"context"
)

// MetricsProvider hands out named instruments. Names follow the
// chatsocket_<what>[_<unit>] convention, e.g. chatsocket_frame_size_bytes.
type MetricsProvider interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
	Gauge(name string) Gauge
}

// TracingProvider starts one span per unit of socket work.
type TracingProvider interface {
	StartSpan(ctx context.Context, name string) (context.Context, Span)
}

// Counter only goes up: connections made, frames seen, handler calls.
type Counter interface {
	Add(ctx context.Context, value int64, labels ...Label)
}

// Histogram records per-event sizes and durations.
type Histogram interface {
	Record(ctx context.Context, value float64, labels ...Label)
}

// Gauge reports the current value of something, such as a listener count.
type Gauge interface {
	Set(ctx context.Context, value float64, labels ...Label)
}

// Span covers the dispatch of a single frame.
type Span interface {
	SetAttributes(labels ...Label)
	SetStatus(code SpanStatusCode, description string)
	End()
}

// Label is a string attribute attached to an observation or a span.
type Label struct {
	Key   string
	Value string
}

func L(key, value string) Label {
	return Label{Key: key, Value: value}
}

type SpanStatusCode int

const (
	SpanStatusUnset SpanStatusCode = iota
	SpanStatusOK
	SpanStatusError
)
