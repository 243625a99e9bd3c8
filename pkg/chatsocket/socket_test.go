package chatsocket

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// chatServer is a WebSocket test server that hands each accepted connection
// to the test and records the text frames it receives.
type chatServer struct {
	*httptest.Server
	conns    chan *websocket.Conn
	received chan string
	headers  chan http.Header
}

func newChatServer(t *testing.T) *chatServer {
	t.Helper()

	srv := &chatServer{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan string, 16),
		headers:  make(chan http.Header, 4),
	}

	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		srv.headers <- r.Header.Clone()

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		srv.conns <- conn

		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			srv.received <- string(data)
		}
	}))
	t.Cleanup(srv.Close)

	return srv
}

func (s *chatServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *chatServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for value")
		var zero T
		return zero
	}
}

// testMonitor records lifecycle notifications.
type testMonitor struct {
	mu          sync.Mutex
	connects    int
	disconnects []error
	disconnect  chan error
}

func newTestMonitor() *testMonitor {
	return &testMonitor{disconnect: make(chan error, 4)}
}

func (m *testMonitor) OnConnect(ctx context.Context, socket *EventSocket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
}

func (m *testMonitor) OnDisconnect(ctx context.Context, socket *EventSocket, err error) {
	m.mu.Lock()
	m.disconnects = append(m.disconnects, err)
	m.mu.Unlock()
	m.disconnect <- err
}

func TestEventSocketConnection(t *testing.T) {
	ctx := context.Background()

	t.Run("send before connect fails", func(t *testing.T) {
		s := New("ws://localhost:8080/chat")
		err := s.Send(ctx, "hello")
		assert.True(t, errors.Is(err, ErrNotConnected))
	})

	t.Run("connect fails with unreachable endpoint", func(t *testing.T) {
		s, err := NewEventSocket().
			WithURL("ws://127.0.0.1:1/chat").
			WithDialTimeout(2 * time.Second).
			Build()
		require.NoError(t, err)

		err = s.Connect(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to WebSocket")
		assert.False(t, s.Connected())
	})

	t.Run("connect, send and disconnect", func(t *testing.T) {
		srv := newChatServer(t)
		s, err := NewEventSocket().
			WithURL(srv.wsURL()).
			WithLogger(zap.NewNop()).
			WithHeader("X-Client", "test").
			WithAuthorization("Bearer token123").
			Build()
		require.NoError(t, err)

		require.NoError(t, s.Connect(ctx))
		assert.True(t, s.Connected())
		srv.accept(t)

		header := receive(t, srv.headers)
		assert.Equal(t, "test", header.Get("X-Client"))
		assert.Equal(t, "Bearer token123", header.Get("Authorization"))

		raw := `{"type":"message","data":"hi"} not validated`
		require.NoError(t, s.Send(ctx, raw))
		assert.Equal(t, raw, receive(t, srv.received))

		s.Disconnect()
		assert.False(t, s.Connected())
		assert.True(t, errors.Is(s.Send(ctx, "late"), ErrNotConnected))
	})

	t.Run("second connect fails while connected", func(t *testing.T) {
		srv := newChatServer(t)
		s := New(srv.wsURL())

		require.NoError(t, s.Connect(ctx))
		srv.accept(t)

		err := s.Connect(ctx)
		assert.True(t, errors.Is(err, ErrAlreadyConnected))
		assert.True(t, s.Connected())

		s.Disconnect()
	})

	t.Run("connect is allowed again after disconnect", func(t *testing.T) {
		srv := newChatServer(t)
		s := New(srv.wsURL())

		require.NoError(t, s.Connect(ctx))
		srv.accept(t)
		s.Disconnect()

		require.NoError(t, s.Connect(ctx))
		srv.accept(t)
		assert.True(t, s.Connected())
		s.Disconnect()
	})
}

// newSilentListener accepts TCP connections and never answers the
// WebSocket handshake, leaving any dial pending until it is cancelled.
func newSilentListener(t *testing.T) (net.Listener, chan net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- conn
		}
	}()

	t.Cleanup(func() {
		ln.Close()
		for {
			select {
			case conn := <-accepted:
				conn.Close()
			default:
				return
			}
		}
	})

	return ln, accepted
}

func TestEventSocketPendingDial(t *testing.T) {
	ctx := context.Background()
	ln, accepted := newSilentListener(t)

	s, err := NewEventSocket().
		WithURL("ws://" + ln.Addr().String() + "/chat").
		WithDialTimeout(10 * time.Second).
		Build()
	require.NoError(t, err)

	connectErr := make(chan error, 1)
	go func() { connectErr <- s.Connect(ctx) }()

	// The TCP connection is up; the handshake is now pending.
	accepted <- receive(t, accepted)

	t.Run("state queries do not wait for the dial", func(t *testing.T) {
		connected := make(chan bool, 1)
		go func() { connected <- s.Connected() }()

		select {
		case c := <-connected:
			assert.False(t, c)
		case <-time.After(time.Second):
			t.Fatal("Connected blocked while a dial was pending")
		}

		assert.True(t, errors.Is(s.Send(ctx, "early"), ErrNotConnected))
	})

	t.Run("second connect is rejected while dialing", func(t *testing.T) {
		assert.True(t, errors.Is(s.Connect(ctx), ErrAlreadyConnected))
	})

	t.Run("disconnect abandons the dial", func(t *testing.T) {
		require.NoError(t, s.Disconnect())

		select {
		case err := <-connectErr:
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to connect to WebSocket")
		case <-time.After(5 * time.Second):
			t.Fatal("Connect did not return after Disconnect")
		}
		assert.False(t, s.Connected())
	})
}

func TestEventSocketDispatchOverWire(t *testing.T) {
	ctx := context.Background()

	t.Run("frames reach listeners in order", func(t *testing.T) {
		srv := newChatServer(t)
		s := New(srv.wsURL())

		events := make(chan string, 16)
		require.NoError(t, s.Connect(ctx))
		serverConn := srv.accept(t)

		s.AddOnUserJoinCallback(JoinCallback{ID: "a", F: func(username string) { events <- "a:" + username }})
		s.AddOnUserJoinCallback(JoinCallback{ID: "b", F: func(username string) { events <- "b:" + username }})
		s.AddOnUserLeaveCallback(LeaveCallback{ID: "l", F: func(username string) { events <- "leave:" + username }})
		s.AddOnNewMessageCallback(MessageCallback{ID: "m", F: func(username, message string) { events <- "message:" + message }})

		writeFrame(t, serverConn, `{"type":"message","data":"hello"}`)
		writeFrame(t, serverConn, `{"type":"ping","data":""}`)
		writeFrame(t, serverConn, `{"type":"join","data":"alice"}`)
		writeFrame(t, serverConn, `{"type":"leave","data":"alice"}`)

		// Frames are handled in order, so the message and ping frames have
		// been processed by the time the join arrives.
		assert.Equal(t, "a:alice", receive(t, events))
		assert.Equal(t, "b:alice", receive(t, events))
		assert.Equal(t, "leave:alice", receive(t, events))

		s.Disconnect()
		assert.Empty(t, events)
	})

	t.Run("malformed frame keeps the connection open", func(t *testing.T) {
		srv := newChatServer(t)
		s := New(srv.wsURL())

		events := make(chan string, 4)
		require.NoError(t, s.Connect(ctx))
		serverConn := srv.accept(t)
		s.AddOnUserJoinCallback(JoinCallback{ID: "j", F: func(username string) { events <- username }})

		writeFrame(t, serverConn, `{this is not json`)
		writeFrame(t, serverConn, `{"type":"join","data":"bob"}`)

		assert.Equal(t, "bob", receive(t, events))
		assert.True(t, s.Connected())
		s.Disconnect()
	})

	t.Run("panicking listener does not stop later frames", func(t *testing.T) {
		srv := newChatServer(t)
		s := New(srv.wsURL())

		events := make(chan string, 4)
		require.NoError(t, s.Connect(ctx))
		serverConn := srv.accept(t)
		s.AddOnUserJoinCallback(JoinCallback{ID: "boom", F: func(username string) {
			if username == "mallory" {
				panic("bad user")
			}
		}})
		s.AddOnUserJoinCallback(JoinCallback{ID: "j", F: func(username string) { events <- username }})

		writeFrame(t, serverConn, `{"type":"join","data":"mallory"}`)
		writeFrame(t, serverConn, `{"type":"join","data":"bob"}`)

		assert.Equal(t, "bob", receive(t, events))
		s.Disconnect()
	})

	t.Run("disconnect clears listeners; reconnect requires registering again", func(t *testing.T) {
		srv := newChatServer(t)
		s := New(srv.wsURL())

		events := make(chan string, 4)
		require.NoError(t, s.Connect(ctx))
		srv.accept(t)
		s.AddOnUserJoinCallback(JoinCallback{ID: "j", F: func(username string) { events <- "old:" + username }})

		s.Disconnect()
		assert.Empty(t, s.JoinCallbacks())
		assert.Empty(t, s.LeaveCallbacks())
		assert.Empty(t, s.MessageCallbacks())

		require.NoError(t, s.Connect(ctx))
		serverConn := srv.accept(t)
		s.AddOnUserLeaveCallback(LeaveCallback{ID: "l", F: func(username string) { events <- "new:" + username }})

		writeFrame(t, serverConn, `{"type":"join","data":"alice"}`)
		writeFrame(t, serverConn, `{"type":"leave","data":"alice"}`)

		assert.Equal(t, "new:alice", receive(t, events))
		s.Disconnect()
	})
}

func TestEventSocketRemoteClose(t *testing.T) {
	ctx := context.Background()
	srv := newChatServer(t)
	monitor := newTestMonitor()

	s, err := NewEventSocket().
		WithURL(srv.wsURL()).
		WithMonitor(monitor).
		Build()
	require.NoError(t, err)

	require.NoError(t, s.Connect(ctx))
	serverConn := srv.accept(t)
	s.AddOnUserJoinCallback(JoinCallback{ID: "j", F: noopUser})

	serverConn.Close(websocket.StatusGoingAway, "server shutdown")

	err = receive(t, monitor.disconnect)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(waitCtx))

	assert.False(t, s.Connected())
	// Transport-driven closure keeps the listeners.
	assert.Len(t, s.JoinCallbacks(), 1)
	assert.True(t, errors.Is(s.Send(ctx, "hello"), ErrNotConnected))

	monitor.mu.Lock()
	assert.Equal(t, 1, monitor.connects)
	monitor.mu.Unlock()

	// A fresh connection can be opened on the same socket.
	require.NoError(t, s.Connect(ctx))
	srv.accept(t)
	s.Disconnect()
	assert.Nil(t, receive(t, monitor.disconnect))
}
