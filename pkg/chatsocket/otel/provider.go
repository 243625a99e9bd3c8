// Package otel reports EventSocket metrics and dispatch spans through
// OpenTelemetry.
package otel

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tsarna/chatsocket/pkg/chatsocket/o11y"
)

// Provider satisfies o11y.MetricsProvider and o11y.TracingProvider. Pass it
// to both EventSocketBuilder.WithMetricsProvider and WithTracingProvider.
type Provider struct {
	meter  metric.Meter
	tracer trace.Tracer
}

// NewProvider uses the globally registered meter and tracer providers.
func NewProvider(serviceName, serviceVersion string) *Provider {
	return &Provider{
		meter:  otel.Meter(serviceName, metric.WithInstrumentationVersion(serviceVersion)),
		tracer: otel.Tracer(serviceName, trace.WithInstrumentationVersion(serviceVersion)),
	}
}

// NewProviderFrom uses explicit providers, as tests and embedding
// applications with their own SDK setup do.
func NewProviderFrom(mp metric.MeterProvider, tp trace.TracerProvider, serviceName string) *Provider {
	return &Provider{
		meter:  mp.Meter(serviceName),
		tracer: tp.Tracer(serviceName),
	}
}

// unitFor maps the suffix of a chatsocket metric name to its UCUM unit.
func unitFor(name string) string {
	switch {
	case strings.HasSuffix(name, "_seconds"):
		return "s"
	case strings.HasSuffix(name, "_bytes"):
		return "By"
	case strings.HasSuffix(name, "_total"):
		return "{event}"
	default:
		return ""
	}
}

func (p *Provider) Counter(name string) o11y.Counter {
	counter, _ := p.meter.Int64Counter(name, metric.WithUnit(unitFor(name)))
	return counterAdapter{counter}
}

func (p *Provider) Histogram(name string) o11y.Histogram {
	histogram, _ := p.meter.Float64Histogram(name, metric.WithUnit(unitFor(name)))
	return histogramAdapter{histogram}
}

// Gauge is synchronous: the socket sets listener counts as they change.
func (p *Provider) Gauge(name string) o11y.Gauge {
	gauge, _ := p.meter.Float64Gauge(name, metric.WithUnit(unitFor(name)))
	return gaugeAdapter{gauge}
}

func (p *Provider) StartSpan(ctx context.Context, name string) (context.Context, o11y.Span) {
	ctx, span := p.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindConsumer))
	return ctx, spanAdapter{span}
}

func attributes(labels []o11y.Label) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, len(labels))
	for i, label := range labels {
		attrs[i] = attribute.String(label.Key, label.Value)
	}
	return attrs
}

type counterAdapter struct{ metric.Int64Counter }

func (c counterAdapter) Add(ctx context.Context, value int64, labels ...o11y.Label) {
	c.Int64Counter.Add(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type histogramAdapter struct{ metric.Float64Histogram }

func (h histogramAdapter) Record(ctx context.Context, value float64, labels ...o11y.Label) {
	h.Float64Histogram.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type gaugeAdapter struct{ metric.Float64Gauge }

func (g gaugeAdapter) Set(ctx context.Context, value float64, labels ...o11y.Label) {
	g.Float64Gauge.Record(ctx, value, metric.WithAttributes(attributes(labels)...))
}

type spanAdapter struct{ span trace.Span }

func (s spanAdapter) SetAttributes(labels ...o11y.Label) {
	s.span.SetAttributes(attributes(labels)...)
}

var statusCodes = map[o11y.SpanStatusCode]codes.Code{
	o11y.SpanStatusUnset: codes.Unset,
	o11y.SpanStatusOK:    codes.Ok,
	o11y.SpanStatusError: codes.Error,
}

func (s spanAdapter) SetStatus(code o11y.SpanStatusCode, description string) {
	s.span.SetStatus(statusCodes[code], description)
}

func (s spanAdapter) End() {
	s.span.End()
}
