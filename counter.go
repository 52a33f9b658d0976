// Package counter is a live counter widget. It holds a single integer,
// increments it on request, tells an optional hook about every new value
// and renders itself as a clickable button.
package counter

import (
	"fmt"
	"io"
	"sync"

	g "github.com/maragudk/gomponents"
	h "github.com/maragudk/gomponents/html"
)

// EventIncrement is the client event that increments a counter.
const EventIncrement = "inc"

// helpFile is named in the help line under the button.
const helpFile = "counter.go"

// Option configures a counter on construction.
type Option func(c *Counter)

// WithInitial sets the starting value. Any int is accepted.
func WithInitial(n int) Option {
	return func(c *Counter) {
		c.value = n
	}
}

// WithOnChange sets the hook called with the new value after every
// increment. A nil hook is ignored.
func WithOnChange(fn func(int)) Option {
	return func(c *Counter) {
		c.onChange = fn
	}
}

type subscriber struct {
	id int
	fn func(int)
}

// Counter is a single component instance. The zero value is not usable,
// create one with New.
type Counter struct {
	// incMu serialises increments so the hook sees values in order.
	incMu sync.Mutex

	mu      sync.Mutex
	value   int
	subs    []subscriber
	nextSub int

	onChange func(int)
}

// New creates a counter, starting at 0 unless WithInitial says otherwise.
func New(opts ...Option) *Counter {
	c := &Counter{}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Value returns the current value.
func (c *Counter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Increment adds one to the value. The change hook, if any, is called
// exactly once with the new value before Increment returns, followed by
// any subscribers. The hook must not call Increment on the same counter.
//
// If the hook panics the panic is not recovered here, the new value has
// already been committed.
func (c *Counter) Increment() int {
	c.incMu.Lock()
	defer c.incMu.Unlock()

	c.mu.Lock()
	c.value++
	next := c.value
	subs := make([]subscriber, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()

	if c.onChange != nil {
		c.onChange(next)
	}
	for _, s := range subs {
		s.fn(next)
	}
	return next
}

// Subscribe registers fn to be called after every increment, hosts use
// it to redraw. The returned func removes the subscription.
func (c *Counter) Subscribe(fn func(int)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs = append(c.subs, subscriber{id: id, fn: fn})
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

// Label is the text shown on the button.
func (c *Counter) Label() string {
	return fmt.Sprintf("count is %d", c.Value())
}

// Node returns the widget as a gomponents node so it can be composed into
// a larger page.
func (c *Counter) Node() g.Node {
	return h.Div(h.Class("card"),
		h.Button(g.Attr("live-click", EventIncrement), g.Text(c.Label())),
		h.P(
			g.Text("Edit "),
			h.Code(g.Text(helpFile)),
			g.Text(" and save to test live reload"),
		),
	)
}

// Render writes the widget html to w.
func (c *Counter) Render(w io.Writer) error {
	return c.Node().Render(w)
}
