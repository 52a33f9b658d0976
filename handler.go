package counter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jfyne/counter/live"
	g "github.com/maragudk/gomponents"
	c "github.com/maragudk/gomponents/components"
	h "github.com/maragudk/gomponents/html"
)

var (
	// ErrNoCounter returned when a socket has no counter assigned.
	ErrNoCounter = errors.New("socket has no counter")

	// ErrHookPanic returned to the client when the change hook panics
	// during an increment.
	ErrHookPanic = errors.New("change hook panicked")
)

// ChangeHook is told about every new value of a socket's counter.
type ChangeHook func(ctx context.Context, s live.Socket, value int)

// HandlerOption configures the live handler hosting counters.
type HandlerOption func(hc *handlerConfig)

type handlerConfig struct {
	start  int
	title  string
	script string
	hook   ChangeHook
}

// WithStart sets the initial value of every new counter.
func WithStart(n int) HandlerOption {
	return func(hc *handlerConfig) {
		hc.start = n
	}
}

// WithTitle sets the page title.
func WithTitle(title string) HandlerOption {
	return func(hc *handlerConfig) {
		hc.title = title
	}
}

// WithScript sets where the page loads the live client from.
func WithScript(src string) HandlerOption {
	return func(hc *handlerConfig) {
		hc.script = src
	}
}

// WithChangeHook sets the hook every counter reports to.
func WithChangeHook(hook ChangeHook) HandlerOption {
	return func(hc *handlerConfig) {
		hc.hook = hook
	}
}

// NewHandler creates a live handler where every socket owns one counter.
func NewHandler(opts ...HandlerOption) *live.Handler {
	hc := &handlerConfig{
		title:  "Counter",
		script: "/live.js",
	}
	for _, o := range opts {
		o(hc)
	}

	lh := live.NewHandler()

	lh.MountHandler = func(ctx context.Context, s live.Socket) (any, error) {
		if existing, ok := s.Assigns().(*Counter); ok {
			return existing, nil
		}
		copts := []Option{WithInitial(hc.start)}
		if hc.hook != nil {
			hook := hc.hook
			copts = append(copts, WithOnChange(func(v int) {
				hook(ctx, s, v)
			}))
		}
		return New(copts...), nil
	}

	lh.HandleEvent(EventIncrement, func(ctx context.Context, s live.Socket, _ live.Params) (data any, err error) {
		cnt, ok := s.Assigns().(*Counter)
		if !ok {
			return nil, ErrNoCounter
		}
		defer func() {
			if r := recover(); r != nil {
				data, err = cnt, fmt.Errorf("%w: %v", ErrHookPanic, r)
			}
		}()
		cnt.Increment()
		return cnt, nil
	})

	lh.HandleRender(func(ctx context.Context, rc *live.RenderContext) (io.Reader, error) {
		cnt, ok := rc.Assigns.(*Counter)
		if !ok {
			return nil, ErrNoCounter
		}
		var buf bytes.Buffer
		if err := page(hc, cnt).Render(&buf); err != nil {
			return nil, err
		}
		return &buf, nil
	})

	return lh
}

// page renders the full document around a counter.
func page(hc *handlerConfig, cnt *Counter) g.Node {
	return c.HTML5(c.HTML5Props{
		Title:    hc.title,
		Language: "en",
		Head: []g.Node{
			h.StyleEl(h.Type("text/css"),
				g.Raw(`body {font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; } .card {padding: 2em;}`),
			),
		},
		Body: []g.Node{
			cnt.Node(),
			h.Script(h.Src(hc.script)),
		},
	})
}
