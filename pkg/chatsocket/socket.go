package chatsocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/tsarna/chatsocket/pkg/chatsocket/o11y"
	"go.uber.org/zap"
)

// EventSocket owns one WebSocket connection and fans inbound frames out to
// the join, leave and message listeners registered on it.
//
// Listeners run synchronously on the connection's read goroutine, one frame
// at a time. Each frame is dispatched over a snapshot of the registry taken
// when the frame arrives, so listeners may add or remove listeners (their
// own included) without affecting the frame being delivered.
type EventSocket struct {
	// Configuration
	url         string
	logger      *zap.Logger
	dialTimeout time.Duration
	readLimit   int64
	headers     map[string][]string
	monitor     Monitor
	metrics     *socketMetrics
	tracer      o11y.TracingProvider

	// Connection state
	mu         sync.Mutex
	conn       *websocket.Conn
	cancel     context.CancelFunc
	done       chan struct{}
	connecting bool
	abortDial  context.CancelFunc

	// Listener registries
	joinCallbacks    callbackList[func(username string)]
	leaveCallbacks   callbackList[func(username string)]
	messageCallbacks callbackList[func(username, message string)]
}

// New creates an EventSocket for the given endpoint with default settings.
// It does not connect.
func New(endpoint string) *EventSocket {
	return &EventSocket{
		url:         endpoint,
		logger:      zap.NewNop(),
		dialTimeout: DefaultDialTimeout,
		readLimit:   DefaultReadLimit,
	}
}

// URL returns the endpoint address.
func (s *EventSocket) URL() string {
	return s.url
}

// Connected reports whether a connection is currently open.
func (s *EventSocket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn != nil
}

// Connect dials the endpoint and starts delivering inbound frames to the
// registered listeners. It returns ErrAlreadyConnected if a connection is
// open or another Connect is still dialing. ctx bounds the handshake only;
// the connection outlives it.
func (s *EventSocket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil || s.connecting {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}

	dialCtx, dialCancel := context.WithTimeout(ctx, s.dialTimeout)
	defer dialCancel()

	s.connecting = true
	s.abortDial = dialCancel
	s.mu.Unlock()

	dialOptions := &websocket.DialOptions{}
	if s.headers != nil {
		dialOptions.HTTPHeader = make(map[string][]string, len(s.headers))
		for key, values := range s.headers {
			dialOptions.HTTPHeader[key] = values
		}
	}

	conn, _, err := websocket.Dial(dialCtx, s.url, dialOptions)

	s.mu.Lock()
	// Disconnect clears abortDial when it cancels a pending dial.
	aborted := s.abortDial == nil
	s.connecting, s.abortDial = false, nil
	if err == nil && aborted {
		conn.CloseNow()
		err = context.Canceled
	}

	s.metrics.recordConnect(ctx, err)
	if err != nil {
		s.mu.Unlock()
		s.onError(err)
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	conn.SetReadLimit(s.readLimit)

	readCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})

	s.conn = conn
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	s.onOpen()

	if s.monitor != nil {
		s.monitor.OnConnect(ctx, s)
	}

	go s.readLoop(readCtx, conn, done)

	return nil
}

// Disconnect discards every registered listener and then closes the
// connection, or abandons a dial still in progress. It is safe to call on a
// socket that is not connected.
//
// A frame already being dispatched when Disconnect is called finishes
// delivery to the listeners it snapshotted.
func (s *EventSocket) Disconnect() error {
	s.clearCallbacks()

	s.mu.Lock()
	if s.abortDial != nil {
		s.abortDial()
		s.abortDial = nil
	}
	conn, cancel := s.conn, s.cancel
	s.conn, s.cancel = nil, nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	s.logger.Debug("Disconnecting WebSocket", zap.String("url", s.url))

	err := conn.Close(websocket.StatusNormalClosure, "client disconnect")
	cancel()

	if s.monitor != nil {
		s.monitor.OnDisconnect(context.Background(), s, nil)
	}

	if err != nil {
		return fmt.Errorf("failed to close WebSocket: %w", err)
	}
	return nil
}

// Send writes message to the connection as a single text frame, unmodified.
func (s *EventSocket) Send(ctx context.Context, message string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	err := conn.Write(ctx, websocket.MessageText, []byte(message))
	s.metrics.recordSend(ctx, err)
	if err != nil {
		return fmt.Errorf("failed to write to WebSocket: %w", err)
	}

	return nil
}

// Wait blocks until the read loop of the current connection has exited, or
// ctx is done. It returns immediately if the socket was never connected.
func (s *EventSocket) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readLoop is the on-message hook: it runs until the connection fails or is
// closed, dispatching every inbound frame.
func (s *EventSocket) readLoop(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.handleReadError(conn, err)
			return
		}

		if err := s.dispatch(ctx, data); err != nil {
			s.logger.Warn("Failed to dispatch frame", zap.Error(err))
		}
	}
}

// handleReadError runs the on-error and on-close hooks and, if the
// connection was lost rather than closed by Disconnect, releases the handle.
// Listeners are kept either way.
func (s *EventSocket) handleReadError(conn *websocket.Conn, err error) {
	s.mu.Lock()
	owned := s.conn == conn
	if owned {
		s.conn, s.cancel = nil, nil
	}
	s.mu.Unlock()

	if !owned {
		// Disconnect already released the handle.
		s.onClose(websocket.StatusNormalClosure, "client disconnect")
		return
	}

	status := websocket.CloseStatus(err)
	if status == -1 {
		s.onError(err)
		conn.CloseNow()
	}

	var closeErr websocket.CloseError
	if errors.As(err, &closeErr) {
		s.onClose(closeErr.Code, closeErr.Reason)
	} else {
		s.onClose(status, "")
	}

	if s.monitor != nil {
		s.monitor.OnDisconnect(context.Background(), s, err)
	}
}

// Transport hooks. These only log.

func (s *EventSocket) onOpen() {
	s.logger.Info("WebSocket connected", zap.String("url", s.url))
}

func (s *EventSocket) onError(err error) {
	s.logger.Error("WebSocket error", zap.String("url", s.url), zap.Error(err))
}

func (s *EventSocket) onClose(code websocket.StatusCode, reason string) {
	s.logger.Info("WebSocket closed",
		zap.String("url", s.url),
		zap.Int("code", int(code)),
		zap.String("reason", reason))
}

// dispatch decodes one inbound frame and delivers it to the listeners of
// its type. Message frames are logged but not delivered to the message
// registry; unknown types are ignored.
func (s *EventSocket) dispatch(ctx context.Context, data []byte) (err error) {
	start := time.Now()

	var span o11y.Span
	if s.tracer != nil {
		ctx, span = s.tracer.StartSpan(ctx, "chatsocket.dispatch")
		defer func() {
			if err != nil {
				span.SetStatus(o11y.SpanStatusError, err.Error())
			} else {
				span.SetStatus(o11y.SpanStatusOK, "")
			}
			span.End()
		}()
	}

	frame, err := DecodeFrame(data)
	if err != nil {
		s.metrics.recordMalformed(ctx)
		return err
	}

	if span != nil {
		span.SetAttributes(o11y.L("chatsocket.frame.type", frame.Type))
	}
	s.metrics.recordFrame(ctx, frame.Type, len(data))
	defer func() { s.metrics.recordDispatch(ctx, time.Since(start)) }()

	switch frame.Type {
	case FrameTypeJoin:
		return s.dispatchUser(ctx, channelJoin, s.joinCallbacks.snapshot(), frame.Data)
	case FrameTypeLeave:
		return s.dispatchUser(ctx, channelLeave, s.leaveCallbacks.snapshot(), frame.Data)
	case FrameTypeMessage:
		s.logger.Info("Chat message received", zap.String("data", frame.Data))
	default:
		s.logger.Debug("Ignoring frame", zap.String("type", frame.Type))
	}

	return nil
}

// dispatchUser calls each listener in order with username. A panicking
// listener stops delivery of this frame to the listeners after it.
func (s *EventSocket) dispatchUser(ctx context.Context, channel string, callbacks []Callback[func(string)], username string) (err error) {
	var current string
	defer func() {
		if r := recover(); r != nil {
			s.metrics.recordHandlerPanic(ctx, channel)
			err = fmt.Errorf("%w: %s listener %q: %v", ErrHandlerPanic, channel, current, r)
		}
	}()

	for _, cb := range callbacks {
		current = cb.ID
		s.metrics.recordHandlerCall(ctx, channel)
		cb.F(username)
	}

	return nil
}

// Listener registration

// AddOnUserJoinCallback appends cb to the join listeners.
func (s *EventSocket) AddOnUserJoinCallback(cb JoinCallback) {
	n := s.joinCallbacks.add(cb)
	s.metrics.recordListeners(context.Background(), channelJoin, n)
}

// RemoveOnUserJoinCallback removes every join listener registered under id
// and returns how many were removed.
func (s *EventSocket) RemoveOnUserJoinCallback(id string) int {
	removed, n := s.joinCallbacks.remove(id)
	s.metrics.recordListeners(context.Background(), channelJoin, n)
	return removed
}

// AddOnUserLeaveCallback appends cb to the leave listeners.
func (s *EventSocket) AddOnUserLeaveCallback(cb LeaveCallback) {
	n := s.leaveCallbacks.add(cb)
	s.metrics.recordListeners(context.Background(), channelLeave, n)
}

// RemoveOnUserLeaveCallback removes every leave listener registered under id
// and returns how many were removed.
func (s *EventSocket) RemoveOnUserLeaveCallback(id string) int {
	removed, n := s.leaveCallbacks.remove(id)
	s.metrics.recordListeners(context.Background(), channelLeave, n)
	return removed
}

// AddOnNewMessageCallback appends cb to the message listeners.
//
// Message frames are currently logged only and are not delivered to these
// listeners.
func (s *EventSocket) AddOnNewMessageCallback(cb MessageCallback) {
	n := s.messageCallbacks.add(cb)
	s.metrics.recordListeners(context.Background(), channelMessage, n)
}

// RemoveOnNewMessageCallback removes every message listener registered under
// id and returns how many were removed.
func (s *EventSocket) RemoveOnNewMessageCallback(id string) int {
	removed, n := s.messageCallbacks.remove(id)
	s.metrics.recordListeners(context.Background(), channelMessage, n)
	return removed
}

// JoinCallbacks returns a copy of the join listeners in dispatch order.
func (s *EventSocket) JoinCallbacks() []JoinCallback {
	return s.joinCallbacks.snapshot()
}

// LeaveCallbacks returns a copy of the leave listeners in dispatch order.
func (s *EventSocket) LeaveCallbacks() []LeaveCallback {
	return s.leaveCallbacks.snapshot()
}

// MessageCallbacks returns a copy of the message listeners.
func (s *EventSocket) MessageCallbacks() []MessageCallback {
	return s.messageCallbacks.snapshot()
}

func (s *EventSocket) clearCallbacks() {
	s.joinCallbacks.clear()
	s.leaveCallbacks.clear()
	s.messageCallbacks.clear()

	ctx := context.Background()
	s.metrics.recordListeners(ctx, channelJoin, 0)
	s.metrics.recordListeners(ctx, channelLeave, 0)
	s.metrics.recordListeners(ctx, channelMessage, 0)
}
