package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/conduit/internal/admin"
	"github.com/danmuck/conduit/internal/auth"
	"github.com/danmuck/conduit/internal/config"
	"github.com/danmuck/conduit/internal/echo"
	"github.com/danmuck/conduit/internal/logging"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "server config TOML (defaults when empty)")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := config.DefaultServerConfig()
	if *configPath != "" {
		loaded, err := config.LoadServerConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "echoserver: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "echoserver: %v\n", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg config.ServerConfig) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	return serveOn(ctx, cfg, ln)
}

// serveOn runs the echo endpoint on ln, plus the admin server when configured.
// Either server failing stops both.
func serveOn(ctx context.Context, cfg config.ServerConfig, ln net.Listener) error {
	var validator auth.Validator
	if cfg.AuthToken != "" {
		validator = auth.StaticToken{Token: cfg.AuthToken}
	}

	handler := echo.NewHandler(cfg.Protocols)
	httpSrv := &http.Server{
		Handler:           echo.NewRouter("echoserver", cfg.Path, handler, validator),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.AdminAddr != "" {
		srv := admin.New("echoserver", cfg.CorsOrigins)
		g.Go(func() error {
			if err := srv.ListenAndServe(gctx, cfg.AdminAddr); err != nil {
				return fmt.Errorf("admin %s: %w", cfg.AdminAddr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		log.Info().
			Str("addr", ln.Addr().String()).
			Str("path", cfg.Path).
			Strs("protocols", cfg.Protocols).
			Bool("auth", validator != nil).
			Msg("echoserver listening")
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err := g.Wait()
	log.Info().Int64("active", handler.Active()).Msg("echoserver stopped")
	return err
}
