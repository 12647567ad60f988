package producer

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/atomicstack/inkd/internal/loop"
)

// TerminationSignals are the signals that stop the daemon.
var TerminationSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// WatchSignals waits for the first termination signal and sends one
// Terminate. It returns without sending when ctx ends first. It owns tx and
// closes it on return.
func WatchSignals(ctx context.Context, tx *loop.Sender) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, TerminationSignals...)
	defer signal.Stop(ch)
	watch(ctx, tx, ch)
}

func watch(ctx context.Context, tx *loop.Sender, ch <-chan os.Signal) {
	defer tx.Close()
	events.Producer.Started("signals")
	var sig os.Signal
	select {
	case sig = <-ch:
	case <-ctx.Done():
		events.Producer.Stopped("signals", nil)
		return
	}
	logging.Info("received signal", "signal", sig.String())
	if err := tx.Send(loop.Terminate{Reason: sig.String()}); err != nil {
		logging.Error(err, "producer", "signals")
		events.Producer.Stopped("signals", err)
		return
	}
	events.Producer.Stopped("signals", nil)
}
