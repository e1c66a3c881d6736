// Package admin serves health, readiness and metrics for a running conduit.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/observability"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const version = "0.1.0"

// Server is the admin HTTP surface of one conduit process.
type Server struct {
	ID      string
	Started time.Time

	router *gin.Engine

	mu      sync.RWMutex
	last    conn.Event
	lastErr error
	seen    bool
	opens   int
}

func New(id string, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Logger("admin")))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		ID:      id,
		Started: time.Now(),
		router:  r,
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

// Track records connection events for /ready until the returned subscription
// is unsubscribed.
func (s *Server) Track(events stream.Stream[conn.Event]) *stream.Subscription {
	return events.Subscribe(stream.Observer[conn.Event]{
		Next: s.observe,
	})
}

func (s *Server) observe(ev conn.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = ev
	s.seen = true
	if ev.Err != nil {
		s.lastErr = ev.Err
	}
	if ev.IsOpen() {
		s.opens++
	}
}

// Status is the readiness snapshot served on /ready.
type Status struct {
	Ready     bool   `json:"ready"`
	State     string `json:"state"`
	SocketID  string `json:"socket_id,omitempty"`
	Opens     int    `json:"opens"`
	LastError string `json:"last_error,omitempty"`
	Uptime    string `json:"uptime"`
	Service   string `json:"service"`
}

func (s *Server) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{
		Ready:    s.last.IsOpen(),
		State:    "idle",
		SocketID: s.last.SocketID(),
		Opens:    s.opens,
		Uptime:   time.Since(s.Started).String(),
		Service:  s.ID,
	}
	if s.seen {
		st.State = s.last.State.String()
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"service": s.ID,
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		st := s.Status()
		code := http.StatusOK
		if !st.Ready {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, st)
	})
}

// Serve runs the admin router on ln until ctx is done.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("service", s.ID).Str("addr", ln.Addr().String()).Msg("admin listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
