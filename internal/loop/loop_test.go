package loop

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/screen"
)

type fakeSurface struct {
	*device.Buffer
	flushes  int
	flushErr error
	panicky  bool
}

func (s *fakeSurface) Flush() error {
	s.flushes++
	if s.panicky {
		panic("display flush exploded")
	}
	return s.flushErr
}

// captureLog routes log records into a buffer for the rest of the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	logging.SetConsole(buf)
	t.Cleanup(func() { logging.SetConsole(nil) })
	return buf
}

type fakeDevice struct {
	mu      sync.Mutex
	opens   int
	closes  int
	surface *fakeSurface
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{surface: &fakeSurface{Buffer: device.NewBuffer(40, 12)}}
}

func (d *fakeDevice) OpenSurface() (device.Surface, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	return d.surface, nil
}

func (d *fakeDevice) CloseApp() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
}

type fakeNetwork struct {
	mu           sync.Mutex
	keepAliveErr error
	keepAlives   int
	activations  []bool
	deactivated  int
	status       string
}

func (n *fakeNetwork) Activate(_ context.Context, hourglass bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activations = append(n.activations, hourglass)
	return nil
}

func (n *fakeNetwork) Deactivate(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.deactivated++
	return nil
}

func (n *fakeNetwork) KeepAlive(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.keepAlives++
	return n.keepAliveErr
}

func (n *fakeNetwork) Status(context.Context) (string, error) {
	return n.status, nil
}

type harness struct {
	tx      *Sender
	loop    *Loop
	dev     *fakeDevice
	net     *fakeNetwork
	console *bytes.Buffer
	inits   int
}

func newHarness() *harness {
	tx, rx := NewQueue()
	h := &harness{
		tx:      tx,
		dev:     newFakeDevice(),
		net:     &fakeNetwork{status: "network: up"},
		console: new(bytes.Buffer),
	}
	h.loop = New(rx, Deps{
		Device:  h.dev,
		Network: h.net,
		Init: func(context.Context) error {
			h.inits++
			return nil
		},
		Console: h.console,
	})
	return h
}

func (h *harness) send(t *testing.T, msgs ...Message) {
	t.Helper()
	for _, m := range msgs {
		if err := h.tx.Send(m); err != nil {
			t.Fatalf("send %s: %v", m.Kind(), err)
		}
	}
}

func (h *harness) run(t *testing.T) ExitReason {
	t.Helper()
	done := make(chan ExitReason, 1)
	go func() { done <- h.loop.Run() }()
	select {
	case reason := <-done:
		return reason
	case <-time.After(2 * time.Second):
		t.Fatalf("loop did not exit")
	}
	return 0
}

func hw(evt device.Event) HardwareEvent {
	return HardwareEvent{Event: evt}
}

func TestInitKeyRightShowScenario(t *testing.T) {
	h := newHarness()
	h.send(t,
		hw(device.Event{Type: device.EventInit}),
		hw(device.Press(device.KeyRight)),
		hw(device.Event{Type: device.EventShow}),
		Terminate{},
	)
	if reason := h.run(t); reason != ExitTerminate {
		t.Fatalf("expected terminate exit, got %v", reason)
	}
	if h.dev.opens != 1 {
		t.Fatalf("expected one surface construction, got %d", h.dev.opens)
	}
	if h.loop.Page() != screen.PageStatus {
		t.Fatalf("expected status page, got %v", h.loop.Page())
	}
	// Init, KeyRight and Show each trigger a render pass.
	if h.dev.surface.flushes != 3 {
		t.Fatalf("expected 3 render passes, got %d", h.dev.surface.flushes)
	}
	out := h.dev.surface.String()
	if !strings.Contains(out, "Status") || !strings.Contains(out, "2/2") {
		t.Fatalf("expected status page on surface, got:\n%s", out)
	}
	if h.inits != 1 {
		t.Fatalf("expected daemon init once, got %d", h.inits)
	}
}

func TestDoubleInitConstructsSurfaceOnce(t *testing.T) {
	h := newHarness()
	h.send(t,
		hw(device.Event{Type: device.EventInit}),
		hw(device.Event{Type: device.EventInit}),
		Terminate{},
	)
	h.run(t)
	if h.dev.opens != 1 {
		t.Fatalf("expected one surface construction, got %d", h.dev.opens)
	}
	if h.inits != 1 {
		t.Fatalf("expected daemon init once, got %d", h.inits)
	}
	if h.dev.surface.flushes != 2 {
		t.Fatalf("expected both inits to render, got %d", h.dev.surface.flushes)
	}
}

func TestDoubleInitLogsWarning(t *testing.T) {
	logs := captureLog(t)
	h := newHarness()
	h.send(t,
		hw(device.Event{Type: device.EventInit}),
		hw(device.Event{Type: device.EventInit}),
		Terminate{},
	)
	h.run(t)
	out := logs.String()
	if strings.Count(out, "surface already initialized") != 1 {
		t.Fatalf("expected one repeat-init warning, got:\n%s", out)
	}
	if !strings.Contains(out, `"level":"WARN"`) {
		t.Fatalf("expected warning level record, got:\n%s", out)
	}
}

func TestPanickingRenderDoesNotStopLoop(t *testing.T) {
	logs := captureLog(t)
	h := newHarness()
	h.dev.surface.panicky = true
	h.send(t,
		hw(device.Event{Type: device.EventInit}),
		hw(device.Press(device.KeyRight)),
		Terminate{},
	)
	if reason := h.run(t); reason != ExitTerminate {
		t.Fatalf("expected terminate, got %v", reason)
	}
	if h.loop.Page() != screen.PageStatus {
		t.Fatalf("expected messages after the panic to be handled, got %v", h.loop.Page())
	}
	if h.dev.surface.flushes != 2 {
		t.Fatalf("expected a render attempt per message, got %d", h.dev.surface.flushes)
	}
	if h.dev.closes != 1 {
		t.Fatalf("expected one CloseApp, got %d", h.dev.closes)
	}
	if !strings.Contains(logs.String(), "display flush exploded") {
		t.Fatalf("expected panic to be logged, got:\n%s", logs.String())
	}
}

func TestFailingRenderIsLogged(t *testing.T) {
	logs := captureLog(t)
	h := newHarness()
	h.dev.surface.flushErr = errors.New("panel busy")
	h.send(t,
		hw(device.Event{Type: device.EventInit}),
		hw(device.Event{Type: device.EventShow}),
		Terminate{},
	)
	if reason := h.run(t); reason != ExitTerminate {
		t.Fatalf("expected terminate, got %v", reason)
	}
	if got := strings.Count(logs.String(), "panel busy"); got != 2 {
		t.Fatalf("expected both render failures logged, got %d:\n%s", got, logs.String())
	}
}

func TestRenderBeforeInitIsNoOp(t *testing.T) {
	h := newHarness()
	h.send(t,
		hw(device.Event{Type: device.EventShow}),
		hw(device.Press(device.KeyNext)),
		Terminate{},
	)
	h.run(t)
	if h.dev.opens != 0 {
		t.Fatalf("expected no surface, got %d opens", h.dev.opens)
	}
	if h.loop.Page() != screen.PageStatus {
		t.Fatalf("expected navigation to still apply, got %v", h.loop.Page())
	}
}

func TestTerminateClosesAppOnce(t *testing.T) {
	h := newHarness()
	h.send(t, Terminate{Reason: "signal"}, hw(device.Event{Type: device.EventShow}))
	if reason := h.run(t); reason != ExitTerminate {
		t.Fatalf("expected terminate, got %v", reason)
	}
	if h.dev.closes != 1 {
		t.Fatalf("expected one CloseApp, got %d", h.dev.closes)
	}
	if err := h.tx.Send(PeriodicTick{}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected sends to fail after exit, got %v", err)
	}
}

func TestHardwareExitStopsLoop(t *testing.T) {
	h := newHarness()
	h.send(t, hw(device.Event{Type: device.EventExit}))
	if reason := h.run(t); reason != ExitHardware {
		t.Fatalf("expected hardware exit, got %v", reason)
	}
	if h.dev.closes != 1 {
		t.Fatalf("expected one CloseApp, got %d", h.dev.closes)
	}
}

func TestDroppingAllSendersStopsLoop(t *testing.T) {
	h := newHarness()
	other := h.tx.Clone()
	h.send(t, PeriodicTick{})
	h.tx.Close()
	other.Close()
	if reason := h.run(t); reason != ExitQueueClosed {
		t.Fatalf("expected queue-closed exit, got %v", reason)
	}
	if h.dev.closes != 1 {
		t.Fatalf("expected one CloseApp, got %d", h.dev.closes)
	}
	if h.net.keepAlives != 1 {
		t.Fatalf("expected queued tick to be handled, got %d", h.net.keepAlives)
	}
}

func TestFailingKeepAliveDoesNotStopLoop(t *testing.T) {
	h := newHarness()
	h.net.keepAliveErr = errors.New("radio off")
	h.send(t,
		PeriodicTick{},
		PeriodicTick{},
		RPCCommand{Command: CommandPrintStatus},
		Terminate{},
	)
	if reason := h.run(t); reason != ExitTerminate {
		t.Fatalf("expected terminate, got %v", reason)
	}
	if h.net.keepAlives != 2 {
		t.Fatalf("expected 2 keepalive attempts, got %d", h.net.keepAlives)
	}
	if got := h.console.String(); got != "network: up\n" {
		t.Fatalf("expected status printed after failures, got %q", got)
	}
}

func TestPanicInHandlerIsRecovered(t *testing.T) {
	h := newHarness()
	h.loop.deps.Init = func(context.Context) error { panic("init exploded") }
	h.send(t,
		hw(device.Event{Type: device.EventInit}),
		hw(device.Press(device.KeyRight)),
		Terminate{},
	)
	if reason := h.run(t); reason != ExitTerminate {
		t.Fatalf("expected terminate, got %v", reason)
	}
	if h.loop.Page() != screen.PageStatus {
		t.Fatalf("expected loop to keep processing after panic, got %v", h.loop.Page())
	}
}

func TestIgnoredKeysDoNotRender(t *testing.T) {
	h := newHarness()
	h.send(t,
		hw(device.Event{Type: device.EventInit}),
		hw(device.Press(device.KeyMenu)),
		hw(device.Event{Type: device.EventKeyRelease, Key: device.KeyRight}),
		Terminate{},
	)
	h.run(t)
	if h.dev.surface.flushes != 1 {
		t.Fatalf("expected only the init render, got %d", h.dev.surface.flushes)
	}
	if h.loop.Page() != screen.PageGreet {
		t.Fatalf("expected greet page, got %v", h.loop.Page())
	}
}

func TestNetCommandsDriveNetwork(t *testing.T) {
	h := newHarness()
	h.send(t,
		hw(device.Event{Type: device.EventInit}),
		RPCCommand{Command: CommandNetUp, Hourglass: true},
		hw(device.Press(device.KeyNext)),
		RPCCommand{Command: CommandNetDown},
		Terminate{},
	)
	h.run(t)
	if len(h.net.activations) != 1 || !h.net.activations[0] {
		t.Fatalf("expected one activation with hourglass, got %v", h.net.activations)
	}
	if h.net.deactivated != 1 {
		t.Fatalf("expected one deactivation, got %d", h.net.deactivated)
	}
	// Init and KeyNext render; net-down redraws the status page, net-up on
	// the greet page does not.
	if h.dev.surface.flushes != 3 {
		t.Fatalf("expected 3 render passes, got %d", h.dev.surface.flushes)
	}
}
