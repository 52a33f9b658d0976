package live

import (
	"encoding/json"
	"fmt"
)

// Events sent by the server to the client.
const (
	EventConnect = "connect"
	EventPatch   = "patch"
	EventAck     = "ack"
	EventError   = "err"
)

// Event messages that are sent and received by the
// socket.
type Event struct {
	T    string          `json:"t"`
	ID   int             `json:"i,omitempty"`
	Data json.RawMessage `json:"d,omitempty"`
}

// Params extract params from an inbound message.
func (e Event) Params() (Params, error) {
	if len(e.Data) == 0 {
		return Params{}, nil
	}
	var p Params
	if err := json.Unmarshal(e.Data, &p); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMessageMalformed, err)
	}
	if p == nil {
		return Params{}, nil
	}
	return p, nil
}

// ErrorEvent the payload of an EventError sent to the client.
type ErrorEvent struct {
	Source Event  `json:"source"`
	Err    string `json:"err"`
}

// EventConfig configures an outbound event.
type EventConfig func(e *Event) error

// WithID sets the ID of an event, used to ack the client event it
// answers.
func WithID(ID int) EventConfig {
	return func(e *Event) error {
		e.ID = ID
		return nil
	}
}
