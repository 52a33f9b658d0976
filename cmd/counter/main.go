package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/jfyne/counter"
	"github.com/jfyne/counter/internal/config"
	"github.com/jfyne/counter/internal/notify"
	"github.com/jfyne/counter/live"
	"github.com/jfyne/counter/repl"
)

const usage = `usage: counter <command> [flags]

commands:
  serve   serve the counter over http
  repl    drive a counter from the terminal
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = serve(os.Args[2:])
	case "repl":
		err = runRepl(os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		slog.Error("counter failed", "err", err)
		os.Exit(1)
	}
}

// parseServe builds the serve config. Flags only override the loaded
// config when they are given, so -initial 0 still wins over a file value.
func parseServe(args []string, envFiles ...string) (config.Config, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	addr := fs.String("addr", "", "listen address, overrides config")
	initial := fs.Int("initial", 0, "initial count, overrides config when set")
	maxMessage := fs.Int64("max-message-size", 0, "websocket message limit in bytes, -1 for none")
	if err := fs.Parse(args); err != nil {
		return config.Config{}, err
	}

	cfg, err := config.Load(*configPath, envFiles...)
	if err != nil {
		return cfg, err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "initial":
			cfg.Initial = *initial
		case "max-message-size":
			cfg.MaxMessageSize = *maxMessage
		}
	})
	return cfg, cfg.Validate()
}

func serve(args []string) error {
	cfg, err := parseServe(args, ".env")
	if err != nil {
		return err
	}

	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub, err := notify.OpenPublisher(ctx, cfg.NotifyURL)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := pub.Shutdown(shutdownCtx); err != nil {
			slog.Warn("notify shutdown", "err", err)
		}
	}()
	publish := pub.Hook()

	h := counter.NewHandler(
		counter.WithStart(cfg.Initial),
		counter.WithTitle(cfg.Title),
		counter.WithScript(cfg.ScriptPath),
		counter.WithChangeHook(func(ctx context.Context, s live.Socket, value int) {
			slog.Info("count changed", "socket", s.ID(), "value", value)
			publish(ctx, s, value)
		}),
	)
	engineOpts := []live.EngineConfig{live.WithWebsocketMaxMessageSize(cfg.MaxMessageSize)}
	if len(cfg.AllowedOrigins) > 0 {
		engineOpts = append(engineOpts, live.WithWebsocketAcceptOptions(&websocket.AcceptOptions{
			OriginPatterns: cfg.AllowedOrigins,
		}))
	}
	e := live.NewHttpHandler(live.NewCookieStore(cfg.SessionName, []byte(cfg.SessionSecret)), h, engineOpts...)
	h.UnmountHandler = func(s live.Socket) error {
		slog.Debug("socket closed", "socket", s.ID(), "connected", e.Sockets())
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/", e)
	mux.Handle(cfg.ScriptPath, live.Javascript{})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errC := make(chan error, 1)
	go func() {
		slog.Info("server", "link", "http://localhost"+cfg.Addr, "initial", cfg.Initial)
		errC <- srv.ListenAndServe()
	}()

	select {
	case err := <-errC:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func runRepl(args []string) error {
	initial, err := parseRepl(args)
	if err != nil {
		return err
	}
	repl.New(counter.New(counter.WithInitial(initial)), os.Stdout).Run()
	return nil
}

func parseRepl(args []string) (int, error) {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	initial := fs.Int("initial", 0, "initial count")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	return *initial, nil
}
