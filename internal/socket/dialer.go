package socket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/observability"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Dialer is the websocket connection factory. Each subscription to Dial owns
// one connect/read loop that reconnects with backoff until unsubscribed.
type Dialer struct {
	cfg   Config
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{
		cfg: cfg.WithDefaults(),
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Dial returns the connection event stream for target. It emits the
// unconnected default first, then one event per lifecycle change. The stream
// completes when MaxAttempts consecutive dials fail.
func (d *Dialer) Dial(target conn.Target) stream.Stream[conn.Event] {
	return stream.Create(func(o stream.Observer[conn.Event], sub *stream.Subscription) {
		cfg, err := d.cfg.WithOptions(target.Options)
		if err != nil {
			o.Error(err)
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		sub.Add(cancel)

		o.Next(conn.Event{})
		go d.run(ctx, cfg, target, o)
	})
}

func (d *Dialer) run(ctx context.Context, cfg Config, target conn.Target, o stream.Observer[conn.Event]) {
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: cfg.HandshakeTimeout,
		Subprotocols:     target.Protocols,
	}

	attempt := 0
	for {
		attempt++
		ws, _, err := dialer.DialContext(ctx, target.URL, cfg.Header)
		if ctx.Err() != nil {
			if ws != nil {
				_ = ws.Close()
			}
			return
		}
		if err != nil {
			log.Warn().
				Str("url", target.URL).
				Int("attempt", attempt).
				Err(err).
				Msg("socket dial failed")
			emit(o, conn.Event{
				State: conn.Closed,
				Err:   &conn.Error{State: conn.Closed, Kind: conn.ErrDialFailed, Err: err},
			})
			if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
				log.Error().
					Str("url", target.URL).
					Int("attempts", attempt).
					Msg("socket giving up")
				o.Complete()
				return
			}
			if !d.sleepBackoff(ctx, cfg.Backoff, attempt) {
				return
			}
			continue
		}

		attempt = 0
		sock := newSocket(ws, cfg)
		log.Info().
			Str("url", target.URL).
			Str("socket", sock.ID()).
			Str("protocol", ws.Subprotocol()).
			Msg("socket open")
		emit(o, conn.Event{Socket: sock, State: conn.Open})

		readErr := d.serve(ctx, sock)
		if ctx.Err() != nil {
			return
		}
		emit(o, closedEvent(sock, readErr))
		if !d.sleepBackoff(ctx, cfg.Backoff, 1) {
			return
		}
	}
}

// serve runs the read loop and closes the socket when ctx is cancelled.
func (d *Dialer) serve(ctx context.Context, sock *wsSocket) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			sock.close(websocket.CloseNormalClosure, "")
		case <-done:
		}
	}()

	err := sock.readLoop()
	sock.close(websocket.CloseNormalClosure, "")
	return err
}

func (d *Dialer) sleepBackoff(ctx context.Context, cfg BackoffConfig, attempt int) bool {
	d.rngMu.Lock()
	delay := cfg.Delay(attempt, d.rng)
	d.rngMu.Unlock()

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// closedEvent classifies why a socket stopped reading. Normal closes carry no
// error.
func closedEvent(sock *wsSocket, readErr error) conn.Event {
	ev := conn.Event{Socket: sock, State: conn.Closed}
	if readErr == nil || websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		log.Info().Str("socket", sock.ID()).Msg("socket closed")
		return ev
	}

	kind := conn.ErrProtocol
	var closeErr *websocket.CloseError
	var netErr net.Error
	switch {
	case errors.As(readErr, &closeErr):
		if websocket.IsUnexpectedCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
			closeErr.Code != websocket.CloseProtocolError && closeErr.Code != websocket.CloseUnsupportedData {
			kind = conn.ErrUnexpectedClose
		}
	case errors.Is(readErr, io.EOF), errors.Is(readErr, io.ErrUnexpectedEOF), errors.As(readErr, &netErr):
		kind = conn.ErrUnexpectedClose
	}

	log.Warn().
		Str("socket", sock.ID()).
		Str("kind", conn.KindLabel(kind)).
		Err(readErr).
		Msg("socket closed abnormally")
	ev.Err = &conn.Error{
		SocketID: sock.ID(),
		State:    conn.Closed,
		Kind:     kind,
		Err:      fmt.Errorf("read: %w", readErr),
	}
	return ev
}

func emit(o stream.Observer[conn.Event], ev conn.Event) {
	observability.RecordConnectionEvent(ev.State.String(), ev.IsOpen())
	if ev.Err != nil {
		observability.RecordConnectionError(conn.KindLabel(conn.KindOf(ev.Err)))
	}
	o.Next(ev)
}
