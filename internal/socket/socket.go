package socket

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrSocketNotOpen = errors.New("socket: not open")

// wsSocket adapts one gorilla websocket connection to conn.Socket.
type wsSocket struct {
	id      string
	ws      *websocket.Conn
	cfg     Config
	state   atomic.Int32
	writeMu sync.Mutex
	inbound *stream.Subject[[]byte]
	closed  sync.Once
}

var _ conn.Socket = (*wsSocket)(nil)

func newSocket(ws *websocket.Conn, cfg Config) *wsSocket {
	s := &wsSocket{
		id:      uuid.NewString(),
		ws:      ws,
		cfg:     cfg,
		inbound: stream.NewSubject[[]byte](),
	}
	if cfg.ReadLimit > 0 {
		ws.SetReadLimit(cfg.ReadLimit)
	}
	s.state.Store(int32(conn.Open))
	return s
}

func (s *wsSocket) ID() string {
	return s.id
}

func (s *wsSocket) ReadyState() conn.ReadyState {
	return conn.ReadyState(s.state.Load())
}

func (s *wsSocket) Inbound() stream.Stream[[]byte] {
	return s.inbound
}

func (s *wsSocket) Write(payload []byte) error {
	if s.ReadyState() != conn.Open {
		return ErrSocketNotOpen
	}
	msgType := websocket.TextMessage
	if s.cfg.Binary {
		msgType = websocket.BinaryMessage
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.ws.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.ws.WriteMessage(msgType, payload)
}

// readLoop publishes inbound payloads until the connection fails or closes.
func (s *wsSocket) readLoop() error {
	for {
		_, payload, err := s.ws.ReadMessage()
		if err != nil {
			s.state.Store(int32(conn.Closed))
			s.inbound.Complete()
			return err
		}
		s.inbound.Next(payload)
	}
}

// close sends a close frame with code and releases the connection.
func (s *wsSocket) close(code int, text string) {
	s.closed.Do(func() {
		s.state.Store(int32(conn.Closing))
		s.writeMu.Lock()
		_ = s.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(code, text),
			time.Now().Add(s.cfg.WriteTimeout),
		)
		s.writeMu.Unlock()
		_ = s.ws.Close()
		s.state.Store(int32(conn.Closed))
	})
}
