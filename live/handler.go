package live

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// MountHandler the func that is called by a handler to gather data to
// be rendered. This is called on first GET and then again when the
// websocket connects.
type MountHandler func(ctx context.Context, s Socket) (any, error)

// UnmountHandler the func called when a socket disconnects.
type UnmountHandler func(s Socket) error

// RenderHandler the func that is called to render the current state of the
// data for the socket.
type RenderHandler func(ctx context.Context, rc *RenderContext) (io.Reader, error)

// ErrorHandler if an error occurs during the mount and render cycle
// a handler of this type will be called.
type ErrorHandler func(ctx context.Context, err error)

// EventHandler a function to handle events, returns the data that should
// be set to the socket after handling.
type EventHandler func(ctx context.Context, s Socket, p Params) (any, error)

// Handler implements all the developer defined logic.
type Handler struct {
	// MountHandler a user should provide the mount function. This is what
	// is called on initial GET request and later when the websocket connects.
	// Data to render the handler should be fetched here and returned.
	MountHandler MountHandler
	// UnmountHandler used to track websocket disconnections.
	UnmountHandler UnmountHandler
	// RenderHandler is called to generate the HTML of a Socket.
	RenderHandler RenderHandler
	// ErrorHandler is called when an error occurs during the mount and
	// render stages of the handler lifecycle.
	ErrorHandler ErrorHandler

	// eventHandlers the map of client event handlers.
	eventHandlers map[string]EventHandler
}

// NewHandler sets up a base handler for live.
func NewHandler() *Handler {
	h := &Handler{
		eventHandlers: make(map[string]EventHandler),
		MountHandler: func(ctx context.Context, s Socket) (any, error) {
			return nil, nil
		},
		UnmountHandler: func(s Socket) error {
			return nil
		},
		RenderHandler: func(ctx context.Context, rc *RenderContext) (io.Reader, error) {
			return nil, ErrNoRenderer
		},
		ErrorHandler: func(ctx context.Context, err error) {
			slog.Error("handler error", "err", err)
			if w := Writer(ctx); w != nil {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(err.Error()))
			}
		},
	}
	return h
}

// HandleRender set the render handler.
func (h *Handler) HandleRender(f RenderHandler) {
	h.RenderHandler = f
}

// HandleEvent handles an event that comes from the client. For example a click
// from `live-click="myevent"`.
func (h *Handler) HandleEvent(t string, handler EventHandler) {
	h.eventHandlers[t] = handler
}

func (h *Handler) getEvent(t string) (EventHandler, error) {
	handler, ok := h.eventHandlers[t]
	if !ok {
		return nil, fmt.Errorf("no event handler for %s: %w", t, ErrNoEventHandler)
	}
	return handler, nil
}

// CallEvent route an event to the correct handler and assign the result.
// On error the socket keeps its current data.
func (h *Handler) CallEvent(ctx context.Context, sock Socket, msg Event) error {
	handler, err := h.getEvent(msg.T)
	if err != nil {
		return err
	}
	params, err := msg.Params()
	if err != nil {
		return fmt.Errorf("received message and could not extract params: %w", err)
	}
	data, err := handler(ctx, sock, params)
	if err != nil {
		return err
	}
	sock.Assign(data)
	return nil
}
