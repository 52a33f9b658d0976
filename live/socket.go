package live

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/xid"
	"golang.org/x/net/html"
)

// maxMessageBufferSize the maximum number of messages per socket in a buffer.
const maxMessageBufferSize = 16

// SocketID identifies a socket.
type SocketID string

// Socket describes a connected user, and the state that they
// are in.
type Socket interface {
	// ID return an ID for this socket.
	ID() SocketID
	// Assigns returns the data currently assigned to this
	// socket.
	Assigns() any
	// Assign set data to this socket. This will happen automatically
	// if you return data from an `EventHandler`.
	Assign(data any)
	// Connected returns true if this socket is connected via the websocket.
	Connected() bool
	// Send an event to this socket's client, to be handled there.
	Send(event string, data any, options ...EventConfig) error
	// Session returns the sockets session.
	Session() Session
	// LatestRender return the latest render that this socket generated.
	LatestRender() *html.Node
	// UpdateRender set the latest render.
	UpdateRender(render *html.Node)
}

var _ Socket = &BaseSocket{}

// BaseSocket the default socket implementation.
type BaseSocket struct {
	session   Session
	id        SocketID
	connected bool
	msgs      chan Event
	closeSlow func()

	mu            sync.Mutex
	data          any
	currentRender *html.Node
}

// NewBaseSocket creates a new default socket.
func NewBaseSocket(s Session, connected bool) *BaseSocket {
	return &BaseSocket{
		session:   s,
		id:        SocketID(xid.New().String()),
		connected: connected,
		msgs:      make(chan Event, maxMessageBufferSize),
	}
}

// ID of this socket.
func (s *BaseSocket) ID() SocketID {
	return s.id
}

// Assigns returns the data currently assigned to this
// socket.
func (s *BaseSocket) Assigns() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// Assign set data to this socket.
func (s *BaseSocket) Assign(data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

// Connected returns if this socket is connected via the websocket.
func (s *BaseSocket) Connected() bool {
	return s.connected
}

// Send an event to this socket's client. If the client is not keeping up
// and the buffer is full the connection is closed.
func (s *BaseSocket) Send(event string, data any, options ...EventConfig) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("could not encode data for send: %w", err)
	}
	msg := Event{T: event, Data: payload}
	for _, o := range options {
		if err := o(&msg); err != nil {
			return fmt.Errorf("could not configure event: %w", err)
		}
	}
	select {
	case s.msgs <- msg:
	default:
		if s.closeSlow != nil {
			go s.closeSlow()
		}
	}
	return nil
}

func (s *BaseSocket) LatestRender() *html.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRender
}

func (s *BaseSocket) UpdateRender(render *html.Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentRender = render
}

func (s *BaseSocket) Session() Session {
	return s.session
}
