package device

import (
	"context"
	"io"
)

// Handler receives hardware events.
type Handler func(Event)

// Surface is a drawable, cell-addressed output. Drawing is buffered until
// Flush pushes the frame to the physical display.
type Surface interface {
	Width() int
	Height() int
	Clear()
	DrawText(x, y int, text string)
	Flush() error
}

// Network is the set of network-control primitives the device exposes.
type Network interface {
	// Activate brings the network up. showHourglass asks the SDK to show its
	// busy indicator while connecting.
	Activate(ctx context.Context, showHourglass bool) error
	Deactivate(ctx context.Context) error
	// KeepAlive tells the device the connection is still in use so the power
	// manager does not drop it.
	KeepAlive(ctx context.Context) error
	// Status returns a human readable description of the connection.
	Status(ctx context.Context) (string, error)
}

// SDK is the hardware SDK as the daemon sees it.
type SDK interface {
	Network
	// Main registers handler as the event callback and pumps events until
	// CloseApp is called or ctx is cancelled.
	Main(ctx context.Context, handler Handler) error
	// OpenSurface constructs the drawable surface. Only valid once Init has
	// been delivered.
	OpenSurface() (Surface, error)
	// CloseApp asks the SDK to end the application. Safe to call from any
	// goroutine and more than once.
	CloseApp()
	// Console is where user-facing output (status prints) should go while
	// the SDK owns the terminal.
	Console() io.Writer
}
