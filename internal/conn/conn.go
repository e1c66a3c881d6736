// Package conn defines the connection lifecycle vocabulary shared by the
// conduit core and the socket adapters.
package conn

import (
	"github.com/danmuck/conduit/internal/stream"
)

// ReadyState mirrors the WebSocket readyState values.
type ReadyState int

const (
	Connecting ReadyState = iota
	Open
	Closing
	Closed
)

func (s ReadyState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Socket is a live connection handle.
type Socket interface {
	ID() string
	ReadyState() ReadyState
	Write(payload []byte) error
	// Inbound streams raw payloads read from the connection.
	Inbound() stream.Stream[[]byte]
}

// Event reports the connection handle and its readiness. The zero value is the
// unconnected default: no socket, not open.
type Event struct {
	Socket Socket
	State  ReadyState
	// Err is set for abnormal events: dial failures, unexpected closes,
	// protocol errors.
	Err error
}

func (e Event) IsOpen() bool {
	return e.Socket != nil && e.State == Open
}

func (e Event) SocketID() string {
	if e.Socket == nil {
		return ""
	}
	return e.Socket.ID()
}

// Options are forwarded opaquely to the connection factory.
type Options map[string]any

// Target is everything a connection factory needs to open a connection.
type Target struct {
	URL       string
	Protocols []string
	Options   Options
}
