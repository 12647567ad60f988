// Package loop implements the daemon's single-consumer dispatch loop. The
// Loop owns the presentation state (the current page and the drawable
// surface) outright; producers reach it only by sending Messages through the
// queue, so no state here is ever guarded by a lock.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/atomicstack/inkd/internal/screen"
	"github.com/atomicstack/inkd/internal/sentry"
)

const defaultCallTimeout = 10 * time.Second

// ExitReason records why Run returned.
type ExitReason int

const (
	ExitTerminate ExitReason = iota
	ExitHardware
	ExitQueueClosed
)

func (r ExitReason) String() string {
	switch r {
	case ExitTerminate:
		return "terminate"
	case ExitHardware:
		return "hardware-exit"
	case ExitQueueClosed:
		return "queue-closed"
	}
	return fmt.Sprintf("exit(%d)", int(r))
}

// Device is the part of the SDK the loop drives directly.
type Device interface {
	OpenSurface() (device.Surface, error)
	CloseApp()
}

// Deps are the collaborators the loop calls synchronously.
type Deps struct {
	Device  Device
	Network device.Network
	// Init runs once, on the first Init event, after the surface exists.
	Init func(ctx context.Context) error
	// Console receives printed status reports. Defaults to stdout.
	Console io.Writer
	// Content is the static part of every render pass.
	Content screen.Content
	// CallTimeout bounds each collaborator call made from the loop.
	CallTimeout time.Duration
}

// Loop is the dispatch loop. Build one with New and call Run exactly once.
type Loop struct {
	rx   *Receiver
	deps Deps

	page     screen.Page
	slot     screen.Slot
	initDone bool

	closeOnce sync.Once
}

// New returns a loop reading from rx.
func New(rx *Receiver, deps Deps) *Loop {
	if deps.Console == nil {
		deps.Console = os.Stdout
	}
	if deps.CallTimeout <= 0 {
		deps.CallTimeout = defaultCallTimeout
	}
	return &Loop{rx: rx, deps: deps, page: screen.PageGreet}
}

// Page reports the current page. Only call it from the loop goroutine or
// after Run has returned.
func (l *Loop) Page() screen.Page {
	return l.page
}

// result is what one message asks of the loop.
type result struct {
	render bool
	stop   bool
	reason ExitReason
}

// Run processes messages one at a time until a terminal message arrives or
// the queue closes, then closes the application exactly once. Render calls
// may block the thread, so Run keeps its goroutine on a dedicated OS thread.
func (l *Loop) Run() ExitReason {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	reason := ExitQueueClosed
	for {
		msg, ok := l.rx.Recv()
		if !ok {
			break
		}
		events.Loop.Message(msg.Kind())
		res := l.dispatch(msg)
		if res.stop {
			reason = res.reason
			break
		}
	}
	events.Loop.Stop(reason.String())
	l.rx.Close()
	l.closeOnce.Do(l.deps.Device.CloseApp)
	return reason
}

// dispatch handles msg and runs the render pass it asks for. Errors and
// panics from either step become log records so one bad message never stops
// the loop.
func (l *Loop) dispatch(msg Message) result {
	var res result
	l.guard("handling "+msg.Kind(), func() {
		var err error
		res, err = l.handle(msg)
		if err != nil {
			logging.Error(err, "message", msg.Kind())
		}
	})
	if res.render {
		l.guard("rendering "+l.page.String(), l.render)
	}
	return res
}

func (l *Loop) guard(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic %s: %v", what, r)
			logging.Error(err)
			sentry.CaptureError(err)
		}
	}()
	fn()
}

func (l *Loop) handle(msg Message) (result, error) {
	switch m := msg.(type) {
	case HardwareEvent:
		return l.handleHardware(m.Event)
	case PeriodicTick:
		ctx, cancel := l.callContext()
		defer cancel()
		if err := l.deps.Network.KeepAlive(ctx); err != nil {
			return result{}, fmt.Errorf("network keepalive: %w", err)
		}
		return result{}, nil
	case RPCCommand:
		return l.handleCommand(m)
	case Terminate:
		if m.Reason != "" {
			logging.Info("terminating", "reason", m.Reason)
		}
		return result{stop: true, reason: ExitTerminate}, nil
	}
	return result{}, fmt.Errorf("unhandled message %T", msg)
}

func (l *Loop) handleHardware(evt device.Event) (result, error) {
	switch evt.Type {
	case device.EventInit:
		if err := l.slot.Init(l.deps.Device.OpenSurface); err != nil {
			if errors.Is(err, screen.ErrSurfaceInitialized) {
				logging.Warn("surface already initialized, ignoring init")
			} else {
				logging.Error(fmt.Errorf("open surface: %w", err))
			}
		}
		if !l.initDone {
			l.initDone = true
			if l.deps.Init != nil {
				ctx, cancel := l.callContext()
				defer cancel()
				if err := l.deps.Init(ctx); err != nil {
					logging.Error(fmt.Errorf("daemon init: %w", err))
				}
			}
		}
		return result{render: true}, nil
	case device.EventShow, device.EventRepaint:
		return result{render: true}, nil
	case device.EventKeyPress:
		switch evt.Key {
		case device.KeyLeft, device.KeyPrev:
			l.setPage(l.page.Prev())
			return result{render: true}, nil
		case device.KeyRight, device.KeyNext:
			l.setPage(l.page.Next())
			return result{render: true}, nil
		}
	case device.EventExit:
		return result{stop: true, reason: ExitHardware}, nil
	}
	events.Loop.Ignored(evt.String())
	return result{}, nil
}

// handleCommand runs an RPC-triggered action. Network changes redraw the
// status page when it is showing.
func (l *Loop) handleCommand(m RPCCommand) (result, error) {
	ctx, cancel := l.callContext()
	defer cancel()
	onStatus := result{render: l.page == screen.PageStatus}
	switch m.Command {
	case CommandPrintStatus:
		status, err := l.deps.Network.Status(ctx)
		if err != nil {
			return result{}, fmt.Errorf("query status: %w", err)
		}
		_, err = fmt.Fprintln(l.deps.Console, status)
		return result{}, err
	case CommandNetUp:
		if err := l.deps.Network.Activate(ctx, m.Hourglass); err != nil {
			return onStatus, fmt.Errorf("activate network: %w", err)
		}
		return onStatus, nil
	case CommandNetDown:
		if err := l.deps.Network.Deactivate(ctx); err != nil {
			return onStatus, fmt.Errorf("deactivate network: %w", err)
		}
		return onStatus, nil
	}
	return result{}, fmt.Errorf("unknown command %v", m.Command)
}

func (l *Loop) setPage(next screen.Page) {
	if next != l.page {
		events.Loop.Page(l.page.String(), next.String())
	}
	l.page = next
}

func (l *Loop) render() {
	if _, ok := l.slot.Get(); !ok {
		logging.Warn("render skipped, surface not initialized", "page", l.page.String())
		events.Render.Skip(l.page.String())
		return
	}
	content := l.deps.Content
	if l.page == screen.PageStatus {
		ctx, cancel := l.callContext()
		content.Status, content.StatusErr = l.deps.Network.Status(ctx)
		cancel()
	}
	if err := screen.Render(&l.slot, l.page, content); err != nil {
		logging.Error(fmt.Errorf("render %s: %w", l.page, err))
		return
	}
	events.Render.Pass(l.page.String())
}

func (l *Loop) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), l.deps.CallTimeout)
}
