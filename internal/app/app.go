package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/atomicstack/inkd/internal/clock"
	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/atomicstack/inkd/internal/loop"
	"github.com/atomicstack/inkd/internal/producer"
	"github.com/atomicstack/inkd/internal/rshell"
	"github.com/atomicstack/inkd/internal/screen"
)

// Config describes the daemon's collaborators.
type Config struct {
	RPCAddr           string
	SSHPort           int
	SSHConfigDir      string
	KeepaliveInterval time.Duration
}

// Daemon wires the device SDK, the dispatch loop and the producers together.
type Daemon struct {
	cfg   Config
	sdk   device.SDK
	clock clock.Clock

	ready   chan struct{}
	rpcAddr net.Addr
	wg      sync.WaitGroup
}

// New returns a daemon for sdk.
func New(cfg Config, sdk device.SDK) *Daemon {
	return &Daemon{cfg: cfg, sdk: sdk, clock: clock.Real(), ready: make(chan struct{})}
}

// Run bootstraps and runs the daemon until its loop exits.
func Run(ctx context.Context, cfg Config, sdk device.SDK) error {
	return New(cfg, sdk).Run(ctx)
}

// Ready is closed once the first Init has started the producers.
func (d *Daemon) Ready() <-chan struct{} {
	return d.ready
}

// RPCAddr is the bound RPC address. Only valid after Ready, and nil when the
// RPC server could not start.
func (d *Daemon) RPCAddr() net.Addr {
	return d.rpcAddr
}

// Run registers the hardware relay, starts the loop and hands the calling
// goroutine to the SDK. ctx stops the device and the collaborator servers;
// the loop itself only ends on a terminal message or queue closure.
func (d *Daemon) Run(ctx context.Context) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tx, rx := loop.NewQueue()
	relay := producer.NewRelay(tx.Clone(), d.sdk)
	spawn := tx.Clone()

	l := loop.New(rx, loop.Deps{
		Device:  d.sdk,
		Network: d.sdk,
		Init: func(initCtx context.Context) error {
			defer spawn.Close()
			return d.start(initCtx, serveCtx, spawn)
		},
		Console: d.sdk.Console(),
		Content: screen.Content{RPCAddr: d.cfg.RPCAddr, SSHPort: d.cfg.SSHPort},
	})

	done := make(chan loop.ExitReason, 1)
	go func() {
		done <- l.Run()
	}()

	mainErr := d.sdk.Main(ctx, relay.Handle)
	relay.Close()
	// Normally the loop has already closed the app. If the SDK returned on
	// its own, make sure the loop still winds down.
	if err := tx.Send(loop.Terminate{Reason: "device main returned"}); err != nil && !errors.Is(err, loop.ErrQueueClosed) {
		logging.Error(err)
	}
	tx.Close()

	reason := <-done
	events.App.Exit(reason.String())
	cancel()
	spawn.Close()
	d.wg.Wait()

	if mainErr != nil {
		return fmt.Errorf("device main: %w", mainErr)
	}
	return nil
}

// start runs on the loop goroutine for the first Init: bring the network up,
// then start every producer that needs it. Each producer gets its own
// sender clone. When the network cannot be activated the network-facing
// producers are abandoned; the signal watcher still runs so the daemon can
// be stopped cleanly.
func (d *Daemon) start(initCtx, serveCtx context.Context, spawn *loop.Sender) error {
	defer close(d.ready)

	if err := d.sdk.Activate(initCtx, true); err != nil {
		d.watchSignals(serveCtx, spawn)
		events.App.InitAbandoned(err)
		return fmt.Errorf("activate network, daemon init abandoned: %w", err)
	}

	var errs []error
	ln, err := net.Listen("tcp", d.cfg.RPCAddr)
	if err != nil {
		errs = append(errs, fmt.Errorf("rpc listen: %w", err))
	} else {
		d.rpcAddr = ln.Addr()
		rpcTx := spawn.Clone()
		d.spawn(func() {
			producer.ServeRPC(serveCtx, rpcTx, ln, d.sdk.Status)
		})
	}

	if d.cfg.SSHPort > 0 {
		srv := &rshell.Server{
			ConfigDir: d.cfg.SSHConfigDir,
			Port:      d.cfg.SSHPort,
			Logger:    logging.Logger(),
		}
		d.spawn(func() {
			if err := srv.ListenAndServe(serveCtx); err != nil {
				logging.Error(err, "collaborator", "rshell")
			}
		})
	}

	keepalive := spawn.Clone()
	go producer.Keepalive(keepalive, d.clock, d.cfg.KeepaliveInterval)

	d.watchSignals(serveCtx, spawn)

	events.App.DaemonInit(addrString(d.rpcAddr), d.cfg.SSHPort)
	return errors.Join(errs...)
}

func (d *Daemon) watchSignals(ctx context.Context, spawn *loop.Sender) {
	signals := spawn.Clone()
	d.spawn(func() {
		producer.WatchSignals(ctx, signals)
	})
}

func (d *Daemon) spawn(fn func()) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
}

func addrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}
