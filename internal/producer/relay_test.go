package producer

import (
	"sync/atomic"
	"testing"

	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/loop"
)

type countingCloser struct {
	closes atomic.Int32
}

func (c *countingCloser) CloseApp() { c.closes.Add(1) }

func TestRelayForwardsEventsInOrder(t *testing.T) {
	tx, rx := loop.NewQueue()
	closer := &countingCloser{}
	relay := NewRelay(tx, closer)

	relay.Handle(device.Event{Type: device.EventInit})
	relay.Handle(device.Press(device.KeyRight))
	relay.Close()

	var got []device.Event
	for {
		msg, ok := rx.Recv()
		if !ok {
			break
		}
		got = append(got, msg.(loop.HardwareEvent).Event)
	}
	if len(got) != 2 || got[0].Type != device.EventInit || got[1].Key != device.KeyRight {
		t.Fatalf("unexpected events %v", got)
	}
	if closer.closes.Load() != 0 {
		t.Fatalf("expected no CloseApp, got %d", closer.closes.Load())
	}
}

func TestRelayClosesAppWhenLoopIsGone(t *testing.T) {
	tx, rx := loop.NewQueue()
	rx.Close()
	closer := &countingCloser{}
	relay := NewRelay(tx, closer)

	relay.Handle(device.Event{Type: device.EventShow})
	relay.Handle(device.Event{Type: device.EventShow})
	relay.Handle(device.Press(device.KeyLeft))

	if closer.closes.Load() != 1 {
		t.Fatalf("expected exactly one CloseApp, got %d", closer.closes.Load())
	}
}
