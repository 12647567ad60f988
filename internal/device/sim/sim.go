// Package sim is a terminal simulator for the device SDK. The panel is drawn
// inside a Bubble Tea program and the keyboard stands in for the hardware
// keys, so the daemon can be run and poked at on a workstation.
package sim

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/logging/events"
	tea "github.com/charmbracelet/bubbletea"
)

// Device implements device.SDK on top of a Bubble Tea program.
type Device struct {
	*device.HostNetwork

	width  int
	height int
	opts   []tea.ProgramOption

	mu      sync.Mutex
	program *tea.Program
	closed  bool
}

// New returns a simulator for a width x height panel. Zero sizes use the
// default panel geometry. opts are passed to the Bubble Tea program.
func New(width, height int, opts ...tea.ProgramOption) *Device {
	if width <= 0 {
		width = device.PanelWidth
	}
	if height <= 0 {
		height = device.PanelHeight
	}
	d := &Device{
		HostNetwork: device.NewHostNetwork(),
		width:       width,
		height:      height,
		opts:        opts,
	}
	d.HostNetwork.Hourglass = func(visible bool) {
		d.send(hourglassMsg(visible))
	}
	return d
}

// Main runs the program until CloseApp or ctx ends. If the program stops for
// any other reason the daemon is sent Exit so its loop winds down too.
func (d *Device) Main(ctx context.Context, handler device.Handler) error {
	model := NewModel(d.width, d.height, handler)
	opts := append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithReportFocus()}, d.opts...)
	p := tea.NewProgram(model, opts...)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.program = p
	d.mu.Unlock()

	_, err := p.Run()

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if !closed {
		handler(device.Event{Type: device.EventExit})
	}
	if errors.Is(err, tea.ErrProgramKilled) {
		return nil
	}
	return err
}

func (d *Device) send(msg tea.Msg) {
	d.mu.Lock()
	p := d.program
	d.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (d *Device) OpenSurface() (device.Surface, error) {
	return &surface{Buffer: device.NewBuffer(d.width, d.height), dev: d}, nil
}

// CloseApp stops the program. It is called from key handlers running inside
// the program's own Update, so the quit is delivered asynchronously.
func (d *Device) CloseApp() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	p := d.program
	d.mu.Unlock()
	events.Device.CloseApp()
	if p != nil {
		go p.Quit()
	}
}

// Console prints above the panel while the program runs.
func (d *Device) Console() io.Writer {
	return consoleWriter{d: d}
}

type consoleWriter struct {
	d *Device
}

func (w consoleWriter) Write(b []byte) (int, error) {
	w.d.mu.Lock()
	p := w.d.program
	w.d.mu.Unlock()
	if p == nil {
		return os.Stdout.Write(b)
	}
	p.Println(strings.TrimRight(string(b), "\n"))
	return len(b), nil
}

type surface struct {
	*device.Buffer
	dev *Device
}

func (s *surface) Flush() error {
	lines := s.Lines()
	events.Device.Flush(len(lines))
	s.dev.send(frameMsg{lines: lines})
	return nil
}
