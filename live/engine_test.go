package live

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"
)

func newTallyHandler() *Handler {
	h := NewHandler()
	h.MountHandler = func(ctx context.Context, s Socket) (any, error) {
		return 0, nil
	}
	h.HandleRender(func(ctx context.Context, rc *RenderContext) (io.Reader, error) {
		n, _ := rc.Assigns.(int)
		return strings.NewReader(fmt.Sprintf(`<div id="tally">%d</div>`, n)), nil
	})
	h.HandleEvent("add", func(ctx context.Context, s Socket, p Params) (any, error) {
		n, _ := s.Assigns().(int)
		return n + p.Int("by"), nil
	})
	return h
}

func dialEngine(t *testing.T, e *Engine) (*websocket.Conn, context.Context) {
	t.Helper()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })

	if ev := readEvent(ctx, t, c); ev.T != EventConnect {
		t.Fatalf("expected connect event, got %s", ev.T)
	}
	return c, ctx
}

func readEvent(ctx context.Context, t *testing.T, c *websocket.Conn) Event {
	t.Helper()
	_, d, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var ev Event
	if err := json.Unmarshal(d, &ev); err != nil {
		t.Fatal(err)
	}
	return ev
}

func sendEvent(ctx context.Context, t *testing.T, c *websocket.Conn, ev Event) {
	t.Helper()
	d, err := json.Marshal(ev)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Write(ctx, websocket.MessageText, d); err != nil {
		t.Fatal(err)
	}
}

func TestEngineEventPatch(t *testing.T) {
	e := NewHttpHandler(NewTestStore("test"), newTallyHandler())
	c, ctx := dialEngine(t, e)

	sendEvent(ctx, t, c, Event{T: "add", ID: 1, Data: json.RawMessage(`{"by":2}`)})

	patch := readEvent(ctx, t, c)
	if patch.T != EventPatch {
		t.Fatalf("expected patch event, got %s", patch.T)
	}
	var patches []Patch
	if err := json.Unmarshal(patch.Data, &patches); err != nil {
		t.Fatal(err)
	}
	want := []Patch{
		{Anchor: "_l_0_1_0", Action: Replace, HTML: `<div id="tally" _l_0_1_0="">2</div>`},
	}
	if diff := cmp.Diff(want, patches); diff != "" {
		t.Errorf("patches mismatch (-want +got):\n%s", diff)
	}

	ack := readEvent(ctx, t, c)
	if ack.T != EventAck || ack.ID != 1 {
		t.Errorf("expected ack for event 1, got %s %d", ack.T, ack.ID)
	}
	if e.Sockets() != 1 {
		t.Errorf("expected one connected socket, got %d", e.Sockets())
	}
}

func TestEngineUnknownEvent(t *testing.T) {
	e := NewHttpHandler(NewTestStore("test"), newTallyHandler())
	c, ctx := dialEngine(t, e)

	sendEvent(ctx, t, c, Event{T: "nope", ID: 7})

	ev := readEvent(ctx, t, c)
	if ev.T != EventError || ev.ID != 7 {
		t.Fatalf("expected error event for 7, got %s %d", ev.T, ev.ID)
	}
	var ee ErrorEvent
	if err := json.Unmarshal(ev.Data, &ee); err != nil {
		t.Fatal(err)
	}
	if ee.Source.T != "nope" || !strings.Contains(ee.Err, ErrNoEventHandler.Error()) {
		t.Errorf("unexpected error event %+v", ee)
	}

	ack := readEvent(ctx, t, c)
	if ack.T != EventAck || ack.ID != 7 {
		t.Errorf("expected ack for event 7, got %s %d", ack.T, ack.ID)
	}
}

func TestEngineRateLimit(t *testing.T) {
	e := NewHttpHandler(NewTestStore("test"), newTallyHandler(), WithEventRateLimit(rate.Every(time.Hour), 1))
	c, ctx := dialEngine(t, e)

	sendEvent(ctx, t, c, Event{T: "add", ID: 1, Data: json.RawMessage(`{"by":1}`)})
	if ev := readEvent(ctx, t, c); ev.T != EventPatch {
		t.Fatalf("expected patch, got %s", ev.T)
	}
	if ev := readEvent(ctx, t, c); ev.T != EventAck {
		t.Fatalf("expected ack, got %s", ev.T)
	}

	sendEvent(ctx, t, c, Event{T: "add", ID: 2, Data: json.RawMessage(`{"by":1}`)})
	ev := readEvent(ctx, t, c)
	if ev.T != EventError || ev.ID != 2 {
		t.Fatalf("expected rate limit error for 2, got %s %d", ev.T, ev.ID)
	}
	var ee ErrorEvent
	if err := json.Unmarshal(ev.Data, &ee); err != nil {
		t.Fatal(err)
	}
	if ee.Err != ErrRateLimited.Error() {
		t.Errorf("unexpected error %q", ee.Err)
	}
}

func TestEngineUnmountOnClose(t *testing.T) {
	h := newTallyHandler()
	unmounted := make(chan SocketID, 1)
	h.UnmountHandler = func(s Socket) error {
		unmounted <- s.ID()
		return nil
	}
	e := NewHttpHandler(NewTestStore("test"), h)
	c, _ := dialEngine(t, e)
	c.Close(websocket.StatusNormalClosure, "")

	select {
	case <-unmounted:
	case <-time.After(5 * time.Second):
		t.Fatal("socket was not unmounted")
	}
	if e.Sockets() != 0 {
		t.Errorf("expected no sockets after close, got %d", e.Sockets())
	}
}

func TestEngineMaxMessageSize(t *testing.T) {
	e := NewHttpHandler(NewTestStore("test"), newTallyHandler(), WithWebsocketMaxMessageSize(64))
	c, ctx := dialEngine(t, e)

	sendEvent(ctx, t, c, Event{T: "add", ID: 1, Data: json.RawMessage(`{"by":1,"pad":"` + strings.Repeat("x", 128) + `"}`)})

	_, _, err := c.Read(ctx)
	if got := websocket.CloseStatus(err); got != websocket.StatusMessageTooBig {
		t.Errorf("expected close status %d, got %d (%v)", websocket.StatusMessageTooBig, got, err)
	}
}

func TestEngineAcceptOrigins(t *testing.T) {
	tests := []struct {
		name    string
		configs []EngineConfig
		wantErr bool
	}{
		{name: "cross origin rejected by default", wantErr: true},
		{
			name:    "allowed origin pattern",
			configs: []EngineConfig{WithWebsocketAcceptOptions(&websocket.AcceptOptions{OriginPatterns: []string{"example.com"}})},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewHttpHandler(NewTestStore("test"), newTallyHandler(), tt.configs...)
			srv := httptest.NewServer(e)
			t.Cleanup(srv.Close)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
				HTTPHeader: http.Header{"Origin": {"http://example.com"}},
			})
			if c != nil {
				defer c.Close(websocket.StatusNormalClosure, "")
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("dial error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEngineWebsocketMountHasNoWriter(t *testing.T) {
	h := newTallyHandler()
	writers := make(chan bool, 2)
	h.MountHandler = func(ctx context.Context, s Socket) (any, error) {
		writers <- Writer(ctx) != nil
		return 0, nil
	}
	e := NewHttpHandler(NewTestStore("test"), h)

	rr := httptest.NewRecorder()
	e.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if !<-writers {
		t.Error("expected a writer during the initial GET")
	}

	dialEngine(t, e)
	if <-writers {
		t.Error("expected no writer in a websocket mount")
	}
}
