package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/danmuck/conduit/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

type stubSocket struct{ id string }

func (s stubSocket) ID() string                     { return s.id }
func (s stubSocket) ReadyState() conn.ReadyState    { return conn.Open }
func (s stubSocket) Write([]byte) error             { return nil }
func (s stubSocket) Inbound() stream.Stream[[]byte] { return stream.Never[[]byte]() }

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	testlog.Start(t)
	s := New("conduit-test", nil)
	rr := get(t, s, "/health")
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "ok", body["status"])
	require.Equal(t, "conduit-test", body["service"])
}

func TestReadyFollowsConnectionEvents(t *testing.T) {
	testlog.Start(t)
	s := New("conduit-test", nil)
	events := stream.NewSubject[conn.Event]()
	sub := s.Track(events)
	defer sub.Unsubscribe()

	rr := get(t, s, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	require.Equal(t, "idle", st.State)

	sock := stubSocket{id: "sock.a"}
	events.Next(conn.Event{Socket: sock, State: conn.Open})
	rr = get(t, s, "/ready")
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	require.True(t, st.Ready)
	require.Equal(t, "open", st.State)
	require.Equal(t, "sock.a", st.SocketID)
	require.Equal(t, 1, st.Opens)

	events.Next(conn.Event{Socket: sock, State: conn.Closed, Err: errors.New("read: unexpected EOF")})
	rr = get(t, s, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	require.False(t, st.Ready)
	require.Equal(t, "closed", st.State)
	require.Contains(t, st.LastError, "unexpected EOF")
}

func TestMetricsExposed(t *testing.T) {
	testlog.Start(t)
	s := New("conduit-test", nil)
	_ = get(t, s, "/health")
	rr := get(t, s, "/metrics")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), "conduit_http_requests_total")
}

func TestCorsAllowsConfiguredOrigin(t *testing.T) {
	testlog.Start(t)
	s := New("conduit-test", []string{"http://dashboard.local"})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	rr := httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	require.Equal(t, "http://dashboard.local", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://elsewhere.local")
	rr = httptest.NewRecorder()
	s.HTTPRouter().ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestServeStopsWithContext(t *testing.T) {
	testlog.Start(t)
	s := New("conduit-test", nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	var resp *http.Response
	require.Eventually(t, func() bool {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.True(t, strings.Contains(string(body), `"status":"ok"`))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatalf("serve did not stop")
	}
}
