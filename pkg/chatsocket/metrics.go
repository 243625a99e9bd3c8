package chatsocket

import (
	"context"
	"time"

	"github.com/tsarna/chatsocket/pkg/chatsocket/o11y"
)

// Channel names used as metric labels.
const (
	channelJoin    = "join"
	channelLeave   = "leave"
	channelMessage = "message"
)

// socketMetrics holds the metric instruments of an EventSocket. A nil
// *socketMetrics is valid and records nothing.
type socketMetrics struct {
	// Connection metrics
	connections      o11y.Counter
	connectionErrors o11y.Counter

	// Frame metrics
	framesReceived   o11y.Counter   // by frame type
	framesMalformed  o11y.Counter
	frameSize        o11y.Histogram // bytes
	dispatchDuration o11y.Histogram // seconds

	// Listener metrics
	handlerCalls  o11y.Counter // by channel
	handlerPanics o11y.Counter // by channel
	listeners     o11y.Gauge   // by channel

	// Outbound metrics
	messagesSent o11y.Counter
	sendErrors   o11y.Counter
}

func newSocketMetrics(provider o11y.MetricsProvider) *socketMetrics {
	if provider == nil {
		return nil
	}

	return &socketMetrics{
		connections:      provider.Counter("chatsocket_connections_total"),
		connectionErrors: provider.Counter("chatsocket_connection_errors_total"),

		framesReceived:   provider.Counter("chatsocket_frames_received_total"),
		framesMalformed:  provider.Counter("chatsocket_frames_malformed_total"),
		frameSize:        provider.Histogram("chatsocket_frame_size_bytes"),
		dispatchDuration: provider.Histogram("chatsocket_dispatch_duration_seconds"),

		handlerCalls:  provider.Counter("chatsocket_handler_calls_total"),
		handlerPanics: provider.Counter("chatsocket_handler_panics_total"),
		listeners:     provider.Gauge("chatsocket_listeners"),

		messagesSent: provider.Counter("chatsocket_messages_sent_total"),
		sendErrors:   provider.Counter("chatsocket_send_errors_total"),
	}
}

func (m *socketMetrics) recordConnect(ctx context.Context, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.connectionErrors.Add(ctx, 1)
		return
	}
	m.connections.Add(ctx, 1)
}

func (m *socketMetrics) recordFrame(ctx context.Context, frameType string, size int) {
	if m == nil {
		return
	}
	m.framesReceived.Add(ctx, 1, o11y.L("type", frameType))
	m.frameSize.Record(ctx, float64(size))
}

func (m *socketMetrics) recordMalformed(ctx context.Context) {
	if m == nil {
		return
	}
	m.framesMalformed.Add(ctx, 1)
}

func (m *socketMetrics) recordDispatch(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchDuration.Record(ctx, d.Seconds())
}

func (m *socketMetrics) recordHandlerCall(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.handlerCalls.Add(ctx, 1, o11y.L("channel", channel))
}

func (m *socketMetrics) recordHandlerPanic(ctx context.Context, channel string) {
	if m == nil {
		return
	}
	m.handlerPanics.Add(ctx, 1, o11y.L("channel", channel))
}

func (m *socketMetrics) recordListeners(ctx context.Context, channel string, count int) {
	if m == nil {
		return
	}
	m.listeners.Set(ctx, float64(count), o11y.L("channel", channel))
}

func (m *socketMetrics) recordSend(ctx context.Context, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.sendErrors.Add(ctx, 1)
		return
	}
	m.messagesSent.Add(ctx, 1)
}
