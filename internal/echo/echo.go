// Package echo is a websocket echo endpoint used to exercise conduits by hand.
package echo

import (
	"net/http"
	"sync/atomic"

	"github.com/danmuck/conduit/internal/auth"
	"github.com/danmuck/conduit/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Handler upgrades requests and echoes every frame back with its type.
type Handler struct {
	upgrader websocket.Upgrader
	active   atomic.Int64
}

func NewHandler(protocols []string) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			Subprotocols: protocols,
			CheckOrigin:  func(*http.Request) bool { return true },
		},
	}
}

// Mount registers the echo endpoint on path behind guards.
func Mount(r *gin.Engine, path string, h *Handler, guards ...gin.HandlerFunc) {
	handlers := append(guards, func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	})
	r.GET(path, handlers...)
}

// NewRouter returns a gin engine serving only the echo endpoint. A non-nil
// validator requires a bearer token on the upgrade request.
func NewRouter(service, path string, h *Handler, v auth.Validator) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Logger("echo")))
	r.Use(observability.RequestMetricsMiddleware(service))
	if v != nil {
		Mount(r, path, h, auth.Require(v))
	} else {
		Mount(r, path, h)
	}
	return r
}

// Active reports the number of open echo connections.
func (h *Handler) Active() int64 {
	return h.active.Load()
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("echo upgrade failed")
		return
	}
	defer ws.Close()

	active := h.active.Add(1)
	log.Info().
		Str("remote", r.RemoteAddr).
		Str("protocol", ws.Subprotocol()).
		Int64("active", active).
		Msg("echo client connected")
	defer func() {
		remaining := h.active.Add(-1)
		log.Info().Str("remote", r.RemoteAddr).Int64("active", remaining).Msg("echo client disconnected")
	}()

	for {
		mt, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("echo read failed")
			}
			return
		}
		if err := ws.WriteMessage(mt, payload); err != nil {
			log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("echo write failed")
			return
		}
	}
}
