package producer

import (
	"sync"

	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/atomicstack/inkd/internal/loop"
)

// Closer ends the application.
type Closer interface {
	CloseApp()
}

// Relay forwards SDK events into the loop. Handle is registered as the SDK
// event callback and may run on any goroutine.
type Relay struct {
	tx     *loop.Sender
	closer Closer

	mu      sync.Mutex
	stopped bool
}

// NewRelay takes ownership of tx.
func NewRelay(tx *loop.Sender, closer Closer) *Relay {
	return &Relay{tx: tx, closer: closer}
}

// Handle enqueues evt without blocking. If the loop is gone the relay
// closes the application itself, since it has no other way to reach the
// loop, and drops every later event.
func (r *Relay) Handle(evt device.Event) {
	events.Device.Event(evt.Type.String(), evt.Key.String())
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	if err := r.tx.Send(loop.HardwareEvent{Event: evt}); err != nil {
		r.stopped = true
		r.tx.Close()
		logging.Error(err, "producer", "relay", "event", evt.String())
		events.Producer.Stopped("relay", err)
		r.closer.CloseApp()
	}
}

// Close releases the relay's sender. Later events are dropped.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	r.tx.Close()
}
