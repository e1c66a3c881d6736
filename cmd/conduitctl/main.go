package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/danmuck/conduit/internal/admin"
	"github.com/danmuck/conduit/internal/conduit"
	"github.com/danmuck/conduit/internal/config"
	"github.com/danmuck/conduit/internal/conn"
	"github.com/danmuck/conduit/internal/logging"
	"github.com/danmuck/conduit/internal/stream"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "client config TOML (defaults when empty)")
	url := flag.String("url", "", "override the configured websocket url")
	flag.Parse()

	logging.ConfigureRuntime()

	cfg := config.DefaultClientConfig()
	if *configPath != "" {
		loaded, err := config.LoadClientConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "conduitctl: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if strings.TrimSpace(*url) != "" {
		cfg.URL = strings.TrimSpace(*url)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "conduitctl: %v\n", err)
		os.Exit(1)
	}
}

// run pipes lines from in through a conduit and writes inbound messages to
// out, one per line, until ctx is done.
func run(ctx context.Context, cfg config.ClientConfig, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts, err := config.ConduitOptions(cfg, ctx.Done())
	if err != nil {
		return err
	}

	lines := make(chan string)
	go readLines(ctx, in, lines)
	res := conduit.Connect(opts, stream.FromChan(lines))

	errSub := res.Errors.Subscribe(stream.Observer[error]{
		Next: func(err error) {
			log.Warn().Err(err).Msg("conduit connection error")
		},
	})
	defer errSub.Unsubscribe()

	// Outside of shutdown the connection stream only completes once the
	// dialer gives up.
	connSub := res.Connections.Subscribe(stream.Observer[conn.Event]{
		Complete: func() {
			if ctx.Err() == nil {
				log.Error().Str("url", cfg.URL).Msg("connect attempts exhausted")
				cancel()
			}
		},
	})
	defer connSub.Unsubscribe()

	if cfg.AdminAddr != "" {
		srv := admin.New("conduitctl", cfg.CorsOrigins)
		trackSub := srv.Track(res.Connections)
		defer trackSub.Unsubscribe()
		go func() {
			if err := srv.ListenAndServe(ctx, cfg.AdminAddr); err != nil {
				log.Error().Err(err).Str("addr", cfg.AdminAddr).Msg("admin server failed")
			}
		}()
	}

	var mu sync.Mutex
	err = stream.Wait[string](context.Background(), res, func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintln(out, msg)
	})
	if errors.Is(err, conduit.ErrNoURL) {
		return err
	}
	if err != nil {
		return fmt.Errorf("conduit failed: %w", err)
	}
	log.Info().Str("url", cfg.URL).Msg("conduit stopped")
	return nil
}

// readLines hands every non-empty line of in to lines. lines is never closed:
// end of input leaves the conduit running so buffered messages can still be
// delivered.
func readLines(ctx context.Context, in io.Reader, lines chan<- string) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case lines <- line:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		log.Warn().Err(err).Msg("stdin read failed")
	}
}
