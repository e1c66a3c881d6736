package conn

import (
	"errors"
	"fmt"
)

var (
	ErrDialFailed      = errors.New("conn: dial failed")
	ErrUnexpectedClose = errors.New("conn: unexpected close")
	ErrProtocol        = errors.New("conn: protocol error")
)

// Error is a connection-level failure surfaced on the error channel.
type Error struct {
	SocketID string
	State    ReadyState
	Kind     error
	Err      error
}

func (e *Error) Error() string {
	if e.SocketID == "" {
		return fmt.Sprintf("%v: state=%s: %v", e.Kind, e.State, e.Err)
	}
	return fmt.Sprintf("%v: socket=%s state=%s: %v", e.Kind, e.SocketID, e.State, e.Err)
}

// Is matches the error kind, so errors.Is(err, ErrDialFailed) works.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the sentinel kind of err, or ErrProtocol when err is not a
// classified connection error.
func KindOf(err error) error {
	var ce *Error
	if errors.As(err, &ce) && ce.Kind != nil {
		return ce.Kind
	}
	for _, kind := range []error{ErrDialFailed, ErrUnexpectedClose, ErrProtocol} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrProtocol
}

// KindLabel is a short label for metrics and logs.
func KindLabel(kind error) string {
	switch {
	case errors.Is(kind, ErrDialFailed):
		return "dial_failed"
	case errors.Is(kind, ErrUnexpectedClose):
		return "unexpected_close"
	default:
		return "protocol"
	}
}
