package loop

import (
	"fmt"

	"github.com/atomicstack/inkd/internal/device"
)

// Message is the closed set of values the dispatch loop consumes:
// HardwareEvent, PeriodicTick, RPCCommand and Terminate.
type Message interface {
	// Kind names the message for logs and traces.
	Kind() string
	message()
}

// HardwareEvent relays an SDK event.
type HardwareEvent struct {
	Event device.Event
}

// PeriodicTick asks the loop to keep the network alive.
type PeriodicTick struct{}

// Command identifies an action requested over RPC.
type Command int

const (
	CommandPrintStatus Command = iota
	CommandNetUp
	CommandNetDown
)

func (c Command) String() string {
	switch c {
	case CommandPrintStatus:
		return "print-status"
	case CommandNetUp:
		return "net-up"
	case CommandNetDown:
		return "net-down"
	}
	return fmt.Sprintf("command(%d)", int(c))
}

// RPCCommand carries an RPC-triggered action into the loop.
type RPCCommand struct {
	Command Command
	// Hourglass applies to CommandNetUp only.
	Hourglass bool
}

// Terminate stops the loop.
type Terminate struct {
	Reason string
}

func (m HardwareEvent) Kind() string { return "hardware:" + m.Event.String() }
func (PeriodicTick) Kind() string    { return "tick" }
func (m RPCCommand) Kind() string    { return "rpc:" + m.Command.String() }
func (Terminate) Kind() string       { return "terminate" }

func (HardwareEvent) message() {}
func (PeriodicTick) message()  {}
func (RPCCommand) message()    {}
func (Terminate) message()     {}
