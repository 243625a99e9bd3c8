package chatsocket

import (
	"context"
	"fmt"
	"time"

	"github.com/tsarna/chatsocket/pkg/chatsocket/o11y"
	"go.uber.org/zap"
)

const (
	// DefaultDialTimeout bounds how long Connect waits for the handshake.
	DefaultDialTimeout = 30 * time.Second

	// DefaultReadLimit is the largest inbound frame accepted, in bytes.
	DefaultReadLimit = 32768
)

// Monitor receives connection lifecycle notifications from an EventSocket.
// OnDisconnect gets a nil error for a Disconnect call and the transport
// error when the connection was lost.
type Monitor interface {
	OnConnect(ctx context.Context, socket *EventSocket)
	OnDisconnect(ctx context.Context, socket *EventSocket, err error)
}

// EventSocketBuilder provides a fluent interface for building an EventSocket.
type EventSocketBuilder struct {
	url             string
	logger          *zap.Logger
	dialTimeout     time.Duration
	readLimit       int64
	headers         map[string][]string
	monitor         Monitor
	metricsProvider o11y.MetricsProvider
	tracingProvider o11y.TracingProvider
}

// NewEventSocket creates a new EventSocket builder.
//
// Example:
//
//	sock, err := chatsocket.NewEventSocket().
//	    WithURL("ws://localhost:8080/chat").
//	    WithLogger(logger).
//	    WithDialTimeout(10 * time.Second).
//	    Build()
func NewEventSocket() *EventSocketBuilder {
	return &EventSocketBuilder{
		logger:      zap.NewNop(),
		dialTimeout: DefaultDialTimeout,
		readLimit:   DefaultReadLimit,
	}
}

// WithURL sets the WebSocket URL to connect to.
func (b *EventSocketBuilder) WithURL(url string) *EventSocketBuilder {
	b.url = url
	return b
}

// WithLogger sets the logger used for the connection hooks.
func (b *EventSocketBuilder) WithLogger(logger *zap.Logger) *EventSocketBuilder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithDialTimeout sets the timeout for establishing the WebSocket connection.
func (b *EventSocketBuilder) WithDialTimeout(timeout time.Duration) *EventSocketBuilder {
	if timeout > 0 {
		b.dialTimeout = timeout
	}
	return b
}

// WithReadLimit sets the maximum size in bytes of an inbound frame.
func (b *EventSocketBuilder) WithReadLimit(limit int64) *EventSocketBuilder {
	if limit > 0 {
		b.readLimit = limit
	}
	return b
}

// WithHeaders adds custom HTTP headers for the WebSocket handshake.
func (b *EventSocketBuilder) WithHeaders(headers map[string][]string) *EventSocketBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	for key, values := range headers {
		b.headers[key] = values
	}
	return b
}

// WithHeader sets a single HTTP header for the WebSocket handshake.
func (b *EventSocketBuilder) WithHeader(key, value string) *EventSocketBuilder {
	if b.headers == nil {
		b.headers = make(map[string][]string)
	}
	b.headers[key] = []string{value}
	return b
}

// WithAuthorization sets a static Authorization header value for the handshake.
func (b *EventSocketBuilder) WithAuthorization(authHeader string) *EventSocketBuilder {
	if authHeader == "" {
		return b
	}
	return b.WithHeader("Authorization", authHeader)
}

// WithMonitor sets an optional monitor for connect and disconnect events.
func (b *EventSocketBuilder) WithMonitor(monitor Monitor) *EventSocketBuilder {
	b.monitor = monitor
	return b
}

// WithMetricsProvider enables metrics collection.
func (b *EventSocketBuilder) WithMetricsProvider(provider o11y.MetricsProvider) *EventSocketBuilder {
	b.metricsProvider = provider
	return b
}

// WithTracingProvider enables a span per dispatched frame.
func (b *EventSocketBuilder) WithTracingProvider(provider o11y.TracingProvider) *EventSocketBuilder {
	b.tracingProvider = provider
	return b
}

// IsValid checks that all required configuration is present.
func (b *EventSocketBuilder) IsValid() error {
	if b.url == "" {
		return fmt.Errorf("URL is required")
	}

	return nil
}

// Build creates the EventSocket. No connection is opened until Connect.
func (b *EventSocketBuilder) Build() (*EventSocket, error) {
	if err := b.IsValid(); err != nil {
		return nil, err
	}

	return &EventSocket{
		url:         b.url,
		logger:      b.logger,
		dialTimeout: b.dialTimeout,
		readLimit:   b.readLimit,
		headers:     b.headers,
		monitor:     b.monitor,
		metrics:     newSocketMetrics(b.metricsProvider),
		tracer:      b.tracingProvider,
	}, nil
}
