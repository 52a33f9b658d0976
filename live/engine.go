package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// writeTimeoutDuration the time allowed for a single websocket write.
const writeTimeoutDuration = 5 * time.Second

// EngineConfig applies configuration to an engine.
type EngineConfig func(e *Engine) error

// WithWebsocketAcceptOptions apply websocket accept options to the HTTP engine.
func WithWebsocketAcceptOptions(options *websocket.AcceptOptions) EngineConfig {
	return func(e *Engine) error {
		e.acceptOptions = options
		return nil
	}
}

// WithWebsocketMaxMessageSize sets the maximum inbound message size, -1
// disables the limit.
func WithWebsocketMaxMessageSize(n int64) EngineConfig {
	return func(e *Engine) error {
		e.MaxMessageSize = max(n, -1)
		return nil
	}
}

// WithEventRateLimit limits how fast a single socket may send events.
func WithEventRateLimit(limit rate.Limit, burst int) EngineConfig {
	return func(e *Engine) error {
		if burst < 1 {
			return fmt.Errorf("event burst must be positive, got %d", burst)
		}
		e.EventLimit = limit
		e.EventBurst = burst
		return nil
	}
}

// Engine serves a Handler over http and websockets.
type Engine struct {
	// Handler implements all the developer defined logic.
	Handler *Handler

	// IgnoreFaviconRequest setting to ignore requests for /favicon.ico.
	IgnoreFaviconRequest bool

	// MaxMessageSize is the maximum size of websocket messages before they
	// are rejected. Defaults to 32K (32768). Can be set to -1 to disable.
	MaxMessageSize int64

	// EventLimit and EventBurst configure the per socket event limiter.
	EventLimit rate.Limit
	EventBurst int

	sessionStore  SessionStore
	acceptOptions *websocket.AcceptOptions

	socketsMu sync.Mutex
	sockets   map[SocketID]Socket
}

// NewHttpHandler creates an engine serving h.
func NewHttpHandler(store SessionStore, h *Handler, configs ...EngineConfig) *Engine {
	e := &Engine{
		Handler:              h,
		IgnoreFaviconRequest: true,
		MaxMessageSize:       32768,
		EventLimit:           rate.Every(10 * time.Millisecond),
		EventBurst:           50,
		sessionStore:         store,
		sockets:              map[SocketID]Socket{},
	}
	for _, conf := range configs {
		if err := conf(e); err != nil {
			slog.Warn("could not apply config to engine", "err", err)
		}
	}
	return e
}

// AddSocket add a socket to the engine.
func (e *Engine) AddSocket(sock Socket) {
	e.socketsMu.Lock()
	defer e.socketsMu.Unlock()
	e.sockets[sock.ID()] = sock
}

// Sockets returns the number of connected sockets.
func (e *Engine) Sockets() int {
	e.socketsMu.Lock()
	defer e.socketsMu.Unlock()
	return len(e.sockets)
}

// DeleteSocket remove a socket from the engine.
func (e *Engine) DeleteSocket(sock Socket) {
	e.socketsMu.Lock()
	delete(e.sockets, sock.ID())
	e.socketsMu.Unlock()
	if err := e.Handler.UnmountHandler(sock); err != nil {
		slog.Error("socket unmount error", "socket", sock.ID(), "err", err)
	}
}

// ServeHTTP serves this handler.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/favicon.ico" && e.IgnoreFaviconRequest {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	// Check if we are going to upgrade to a websocket.
	if !slices.Contains(r.Header["Upgrade"], "websocket") {
		e.get(contextWithWriter(r.Context(), w), w, r)
		return
	}
	// The writer is hijacked by the upgrade, so it stays out of the context.
	e.serveWS(r.Context(), w, r)
}

// get renders the full page.
func (e *Engine) get(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	session, err := e.sessionStore.Get(r)
	if err != nil {
		slog.Warn("session decode failed, starting a new one", "err", err)
	}
	if err := e.sessionStore.Save(w, r, session); err != nil {
		e.Handler.ErrorHandler(ctx, fmt.Errorf("session save error: %w", err))
		return
	}

	sock := NewBaseSocket(session, false)

	// Run mount, this generates the state for the page we are on.
	data, err := e.Handler.MountHandler(ctx, sock)
	if err != nil {
		e.Handler.ErrorHandler(ctx, fmt.Errorf("mount error: %w", err))
		return
	}
	sock.Assign(data)

	render, err := RenderSocket(ctx, e.Handler, sock)
	if err != nil {
		e.Handler.ErrorHandler(ctx, err)
		return
	}

	var rendered bytes.Buffer
	if err := html.Render(&rendered, render); err != nil {
		e.Handler.ErrorHandler(ctx, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, &rendered)
}

// serveWS serve a websocket request to the handler.
func (e *Engine) serveWS(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	opts := e.acceptOptions
	if strings.Contains(r.UserAgent(), "Safari") {
		o := websocket.AcceptOptions{}
		if opts != nil {
			o = *opts
		}
		o.CompressionMode = websocket.CompressionDisabled
		opts = &o
	}

	c, err := websocket.Accept(w, r, opts)
	if err != nil {
		slog.Error("websocket accept failed", "err", err)
		return
	}
	defer c.Close(websocket.StatusInternalError, "")
	c.SetReadLimit(e.MaxMessageSize)

	err = e._serveWS(ctx, r, c)
	if errors.Is(err, context.Canceled) {
		return
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, -1:
		return
	default:
		slog.Error("ws closed", "err", fmt.Errorf("ws closed with status (%d): %w", websocket.CloseStatus(err), err))
	}
}

// _serveWS implement the logic for a web socket connection.
func (e *Engine) _serveWS(ctx context.Context, r *http.Request, c *websocket.Conn) error {
	session, err := e.sessionStore.Get(r)
	if err != nil {
		return fmt.Errorf("failed precondition: %w", err)
	}
	sock := NewBaseSocket(session, true)
	sock.closeSlow = func() {
		c.Close(websocket.StatusPolicyViolation, "socket too slow to keep up with messages")
	}
	e.AddSocket(sock)
	defer e.DeleteSocket(sock)

	// Mount again now that the socket is connected.
	data, err := e.Handler.MountHandler(ctx, sock)
	if err != nil {
		return fmt.Errorf("socket mount error: %w", err)
	}
	sock.Assign(data)

	render, err := RenderSocket(ctx, e.Handler, sock)
	if err != nil {
		return fmt.Errorf("socket render error: %w", err)
	}
	sock.UpdateRender(render)

	if err := writeTimeout(ctx, c, Event{T: EventConnect}); err != nil {
		return fmt.Errorf("writing to socket error: %w", err)
	}

	internalErrors := make(chan error, 1)
	go func() {
		internalErrors <- e.readLoop(ctx, c, sock)
	}()

	// Send events to the websocket connection.
	for {
		select {
		case msg := <-sock.msgs:
			if err := writeTimeout(ctx, c, msg); err != nil {
				return fmt.Errorf("writing to socket error: %w", err)
			}
		case err := <-internalErrors:
			return err
		case <-ctx.Done():
			return nil
		}
	}
}

// readLoop handles events coming from the websocket connection until it
// fails or closes.
func (e *Engine) readLoop(ctx context.Context, c *websocket.Conn, sock *BaseSocket) error {
	limiter := rate.NewLimiter(e.EventLimit, e.EventBurst)
	for {
		t, d, err := c.Read(ctx)
		if err != nil {
			return err
		}
		if t != websocket.MessageText {
			slog.Warn("binary messages unhandled", "socket", sock.ID())
			continue
		}
		var m Event
		if err := json.Unmarshal(d, &m); err != nil {
			sock.Send(EventError, ErrorEvent{Err: fmt.Errorf("%w: %s", ErrMessageMalformed, err).Error()})
			continue
		}
		if !limiter.Allow() {
			sock.Send(EventError, ErrorEvent{Source: m, Err: ErrRateLimited.Error()}, WithID(m.ID))
			continue
		}
		if err := e.Handler.CallEvent(ctx, sock, m); err != nil {
			switch {
			case errors.Is(err, ErrNoEventHandler):
				slog.Error("event error", "socket", sock.ID(), "event", m.T, "err", err)
			default:
				slog.Warn("event handler error", "socket", sock.ID(), "event", m.T, "err", err)
			}
			sock.Send(EventError, ErrorEvent{Source: m, Err: err.Error()}, WithID(m.ID))
		}
		render, err := RenderSocket(ctx, e.Handler, sock)
		if err != nil {
			return fmt.Errorf("socket handle error: %w", err)
		}
		sock.UpdateRender(render)
		if err := sock.Send(EventAck, nil, WithID(m.ID)); err != nil {
			return fmt.Errorf("socket send error: %w", err)
		}
	}
}

func writeTimeout(ctx context.Context, c *websocket.Conn, msg Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeoutDuration)
	defer cancel()

	data, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("failed writeTimeout: %w", err)
	}

	return c.Write(ctx, websocket.MessageText, data)
}
