package pairclient

import (
	"encoding/json"
	"sync"
)

// Message is one inbound channel frame
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Handler processes one inbound event payload
type Handler func(data json.RawMessage)

// Dispatcher routes inbound typed messages to at most one handler per event
// type. Register overwrites any existing handler for that type: one listener
// per concern, callers unregister/re-register rather than stack. Dispatch
// without a registered handler is a no-op, never an error. Holds no business
// state.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatcher
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register sets the handler for an event type, replacing any previous one
func (d *Dispatcher) Register(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = h
}

// Unregister removes the handler for an event type
func (d *Dispatcher) Unregister(eventType string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, eventType)
}

// Dispatch routes a payload to the registered handler, if any
func (d *Dispatcher) Dispatch(eventType string, data json.RawMessage) {
	d.mu.RLock()
	h := d.handlers[eventType]
	d.mu.RUnlock()

	if h != nil {
		h(data)
	}
}
