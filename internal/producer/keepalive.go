package producer

import (
	"time"

	"github.com/atomicstack/inkd/internal/clock"
	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/atomicstack/inkd/internal/loop"
)

// DefaultKeepaliveInterval is how often the keepalive ticker fires.
const DefaultKeepaliveInterval = 30 * time.Second

// Keepalive sends a PeriodicTick, sleeps for interval, and repeats until a
// send fails. It owns tx and closes it on return.
func Keepalive(tx *loop.Sender, clk clock.Clock, interval time.Duration) {
	defer tx.Close()
	if interval <= 0 {
		interval = DefaultKeepaliveInterval
	}
	events.Producer.Started("keepalive")
	for {
		if err := tx.Send(loop.PeriodicTick{}); err != nil {
			logging.Error(err, "producer", "keepalive")
			events.Producer.Stopped("keepalive", err)
			return
		}
		events.Producer.Sent("keepalive", "tick")
		clk.Sleep(interval)
	}
}
