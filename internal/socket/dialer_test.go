package socket

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/conduit/internal/codec"
	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/danmuck/conduit/internal/stream/streamtest"
	"github.com/danmuck/conduit/internal/testutil/testlog"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 3 * time.Second

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.HandshakeTimeout = time.Second
	cfg.Backoff = BackoffConfig{InitialDelay: 10 * time.Millisecond, Multiplier: 1, MaxDelay: 10 * time.Millisecond}
	return cfg
}

// echoServer upgrades every request and echoes frames back. handle, when set,
// takes over the connection instead.
func echoServer(t *testing.T, handle func(n int64, ws *websocket.Conn)) (*httptest.Server, string) {
	t.Helper()
	var accepted atomic.Int64
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"chat.v1"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		n := accepted.Add(1)
		if handle != nil {
			handle(n, ws)
			return
		}
		for {
			mt, payload, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, payload); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func openEvents(rec *streamtest.Recorder[conn.Event]) []conn.Event {
	var out []conn.Event
	for _, ev := range rec.Values() {
		if ev.IsOpen() {
			out = append(out, ev)
		}
	}
	return out
}

func waitOpen(t *testing.T, rec *streamtest.Recorder[conn.Event], n int) conn.Event {
	t.Helper()
	ok := rec.WaitFor(func() bool { return len(openEvents(rec)) >= n }, waitTimeout)
	require.True(t, ok, "expected %d open events, got %+v", n, rec.Values())
	return openEvents(rec)[n-1]
}

func TestDialEmitsDefaultThenOpen(t *testing.T) {
	testlog.Start(t)
	_, url := echoServer(t, nil)

	d := NewDialer(fastConfig())
	rec, sub := streamtest.Record(d.Dial(conn.Target{URL: url, Protocols: []string{"chat.v1"}}))
	defer sub.Unsubscribe()

	open := waitOpen(t, rec, 1)
	first := rec.Values()[0]
	require.Nil(t, first.Socket)
	require.False(t, first.IsOpen())
	require.NotEmpty(t, open.SocketID())
	require.Equal(t, conn.Open, open.Socket.ReadyState())
}

func TestSendAndConsumeRoundTrip(t *testing.T) {
	testlog.Start(t)
	_, url := echoServer(t, nil)

	conns := stream.ShareLatest(NewDialer(fastConfig()).Dial(conn.Target{URL: url}))
	events, evSub := streamtest.Record(conns)
	defer evSub.Unsubscribe()
	inbound, inSub := streamtest.Record(Consume[string](codec.TextDecode)(conns))
	defer inSub.Unsubscribe()
	waitOpen(t, events, 1)

	messages := stream.NewSubject[string]()
	sendSub := Send[string](conns, codec.TextEncode)(messages).Subscribe(stream.Observer[struct{}]{})
	defer sendSub.Unsubscribe()

	messages.Next("ping")
	messages.Next("pong")
	require.True(t, inbound.WaitLen(2, waitTimeout), "inbound=%v", inbound.Values())
	require.Equal(t, []string{"ping", "pong"}, inbound.Values())
}

func TestServerDropReportsUnexpectedCloseAndReconnects(t *testing.T) {
	testlog.Start(t)
	_, url := echoServer(t, func(n int64, ws *websocket.Conn) {
		if n == 1 {
			_ = ws.UnderlyingConn().Close()
			return
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	rec, sub := streamtest.Record(NewDialer(fastConfig()).Dial(conn.Target{URL: url}))
	defer sub.Unsubscribe()

	first := waitOpen(t, rec, 1)
	second := waitOpen(t, rec, 2)
	require.NotEqual(t, first.SocketID(), second.SocketID())

	var closed *conn.Event
	for _, ev := range rec.Values() {
		if ev.State == conn.Closed && ev.SocketID() == first.SocketID() {
			closed = &ev
			break
		}
	}
	require.NotNil(t, closed, "expected a closed event for the dropped socket")
	require.Error(t, closed.Err)
	require.True(t, errors.Is(closed.Err, conn.ErrUnexpectedClose), "err=%v", closed.Err)
	require.Equal(t, conn.Closed, first.Socket.ReadyState())
}

func TestServerNormalCloseCarriesNoError(t *testing.T) {
	testlog.Start(t)
	_, url := echoServer(t, func(n int64, ws *websocket.Conn) {
		if n == 1 {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			_, _, _ = ws.ReadMessage()
			return
		}
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	})

	rec, sub := streamtest.Record(NewDialer(fastConfig()).Dial(conn.Target{URL: url}))
	defer sub.Unsubscribe()

	first := waitOpen(t, rec, 1)
	ok := rec.WaitFor(func() bool {
		for _, ev := range rec.Values() {
			if ev.State == conn.Closed && ev.SocketID() == first.SocketID() {
				return true
			}
		}
		return false
	}, waitTimeout)
	require.True(t, ok)
	for _, ev := range rec.Values() {
		if ev.SocketID() == first.SocketID() && ev.State == conn.Closed {
			require.NoError(t, ev.Err)
		}
	}
}

func TestDialFailuresCompleteAfterMaxAttempts(t *testing.T) {
	testlog.Start(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfg := fastConfig()
	cfg.MaxAttempts = 2
	rec, sub := streamtest.Record(NewDialer(cfg).Dial(conn.Target{URL: "ws://" + addr + "/socket"}))
	defer sub.Unsubscribe()

	require.True(t, rec.WaitFor(rec.Completed, waitTimeout), "events=%+v", rec.Values())
	values := rec.Values()
	require.Len(t, values, 3)
	for _, ev := range values[1:] {
		require.Equal(t, conn.Closed, ev.State)
		require.True(t, errors.Is(ev.Err, conn.ErrDialFailed), "err=%v", ev.Err)
	}
}

func TestDialRejectsInvalidOptions(t *testing.T) {
	testlog.Start(t)
	rec, _ := streamtest.Record(NewDialer(fastConfig()).Dial(conn.Target{
		URL:     "ws://127.0.0.1:1/socket",
		Options: conn.Options{"binary": "yes"},
	}))
	require.ErrorIs(t, rec.Err(), ErrInvalidOptions)
	require.Empty(t, rec.Values())
}

func TestUnsubscribeClosesSocket(t *testing.T) {
	testlog.Start(t)
	serverDone := make(chan error, 1)
	_, url := echoServer(t, func(_ int64, ws *websocket.Conn) {
		_, _, err := ws.ReadMessage()
		serverDone <- err
	})

	rec, sub := streamtest.Record(NewDialer(fastConfig()).Dial(conn.Target{URL: url}))
	open := waitOpen(t, rec, 1)
	sub.Unsubscribe()

	select {
	case err := <-serverDone:
		require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "err=%v", err)
	case <-time.After(waitTimeout):
		t.Fatalf("server did not observe close")
	}
	require.Eventually(t, func() bool {
		return open.Socket.ReadyState() == conn.Closed
	}, waitTimeout, 10*time.Millisecond)
	require.ErrorIs(t, open.Socket.Write([]byte("late")), ErrSocketNotOpen)
}

func TestWriteUsesBinaryFramesWhenConfigured(t *testing.T) {
	testlog.Start(t)
	frames := make(chan int, 1)
	_, url := echoServer(t, func(_ int64, ws *websocket.Conn) {
		mt, _, err := ws.ReadMessage()
		if err == nil {
			frames <- mt
		}
		_, _, _ = ws.ReadMessage()
	})

	rec, sub := streamtest.Record(NewDialer(fastConfig()).Dial(conn.Target{
		URL:     url,
		Options: conn.Options{OptionBinary: true},
	}))
	defer sub.Unsubscribe()

	open := waitOpen(t, rec, 1)
	require.NoError(t, open.Socket.Write([]byte{0x01, 0x02}))
	select {
	case mt := <-frames:
		require.Equal(t, websocket.BinaryMessage, mt)
	case <-time.After(waitTimeout):
		t.Fatalf("server did not receive frame")
	}
}
