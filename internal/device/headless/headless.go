// Package headless is a device backend without a display. It drives the
// daemon on hosts with no terminal: Init is delivered at start, Exit when the
// context ends, and frames are kept in memory and traced.
package headless

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/logging/events"
)

// Device implements device.SDK.
type Device struct {
	*device.HostNetwork

	width  int
	height int
	out    io.Writer

	closeOnce sync.Once
	closed    chan struct{}

	mu     sync.Mutex
	frame  []string
	frames int
}

// New returns a headless device with a width x height surface. Zero sizes
// use the default panel geometry.
func New(width, height int, console io.Writer) *Device {
	if width <= 0 {
		width = device.PanelWidth
	}
	if height <= 0 {
		height = device.PanelHeight
	}
	if console == nil {
		console = os.Stdout
	}
	return &Device{
		HostNetwork: device.NewHostNetwork(),
		width:       width,
		height:      height,
		out:         console,
		closed:      make(chan struct{}),
	}
}

// Main delivers Init, then waits for CloseApp. Cancelling ctx delivers Exit
// and keeps waiting, so the daemon still shuts down through its loop.
func (d *Device) Main(ctx context.Context, handler device.Handler) error {
	emit(handler, device.Event{Type: device.EventInit})
	select {
	case <-d.closed:
		return nil
	case <-ctx.Done():
	}
	emit(handler, device.Event{Type: device.EventExit})
	<-d.closed
	return nil
}

func emit(handler device.Handler, evt device.Event) {
	events.Device.Event(evt.Type.String(), evt.Key.String())
	handler(evt)
}

func (d *Device) OpenSurface() (device.Surface, error) {
	return &surface{Buffer: device.NewBuffer(d.width, d.height), dev: d}, nil
}

func (d *Device) CloseApp() {
	d.closeOnce.Do(func() {
		events.Device.CloseApp()
		close(d.closed)
	})
}

func (d *Device) Console() io.Writer {
	return d.out
}

// Frame returns the most recently flushed frame.
func (d *Device) Frame() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.frame...)
}

// Frames counts flushes so far.
func (d *Device) Frames() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.frames
}

type surface struct {
	*device.Buffer
	dev *Device
}

func (s *surface) Flush() error {
	lines := s.Lines()
	s.dev.mu.Lock()
	s.dev.frame = lines
	s.dev.frames++
	s.dev.mu.Unlock()
	events.Device.Flush(len(lines))
	return nil
}
