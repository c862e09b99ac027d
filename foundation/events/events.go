// Package events allows for the registering and receiving of events. Clients
// connected over a websocket receive background log lines and toasts.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Set of toast statuses understood by the front end.
const (
	StatusInfo    = "info"
	StatusSuccess = "success"
	StatusError   = "error"
)

// Toast is a transient notice shown to the user of the page.
type Toast struct {
	Status      string `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// marshal encodes toast envelopes.
var marshal = json.Marshal

// envelope is the wire form of a toast sent down the websocket.
type envelope struct {
	Type  string `json:"type"`
	Toast Toast  `json:"toast"`
}

// =============================================================================

// Events maintains a mapping of unique id and channels so goroutines
// can register and receive events.
type Events struct {
	m  map[string]chan string
	mu sync.RWMutex
}

// New constructs an events for registering and receiving events.
func New() *Events {
	return &Events{
		m: make(map[string]chan string),
	}
}

// Shutdown closes and removes all channels that were provided by
// the call to Acquire.
func (evt *Events) Shutdown() {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	for id, ch := range evt.m {
		delete(evt.m, id)
		close(ch)
	}
}

// Acquire takes a unique id and returns a channel that can be used
// to receive events.
func (evt *Events) Acquire(id string) chan string {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if exists {
		return ch
	}

	// Since a message will be dropped if the websocket receiver is
	// not ready to receive, this arbitrary buffer should give the receiver
	// enough time to not lose a message. Websocket send could take long.
	const messageBuffer = 100

	evt.m[id] = make(chan string, messageBuffer)
	return evt.m[id]
}

// Release closes and removes the channel that was provided by
// the call to Acquire.
func (evt *Events) Release(id string) error {
	evt.mu.Lock()
	defer evt.mu.Unlock()

	ch, exists := evt.m[id]
	if !exists {
		return fmt.Errorf("id %q does not exist", id)
	}

	delete(evt.m, id)
	close(ch)
	return nil
}

// Send signals a message to ever registered channel. Send will not block
// waiting for a receiver on any given channel.
func (evt *Events) Send(s string) {
	evt.mu.RLock()
	defer evt.mu.RUnlock()

	for _, ch := range evt.m {
		select {
		case ch <- s:
		default:
		}
	}
}

// Toast encodes the toast and sends it to every registered channel. A toast
// that can't be encoded is reported on the channels as an error line.
func (evt *Events) Toast(t Toast) {
	data, err := marshal(envelope{Type: "toast", Toast: t})
	if err != nil {
		evt.Send(fmt.Sprintf("events: toast: %s: ERROR: %s", t.Title, err))
		return
	}

	evt.Send(string(data))
}
