package producer

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/atomicstack/inkd/internal/loop"
	"github.com/atomicstack/inkd/internal/rpc"
)

// RPC action names.
const (
	ActionPrintStatus = "print_status"
	ActionStatus      = "status"
	ActionNetUp       = "net_up"
	ActionNetDown     = "net_down"
)

// StatusFunc answers status queries.
type StatusFunc func(ctx context.Context) (string, error)

// NewRPCServer registers the daemon's actions. print_status is forwarded to
// the loop and acknowledged without waiting for it to run, even when the
// loop is gone. status is answered directly and never touches the loop.
// net_up and net_down are forwarded to the loop; they fail only when the loop
// can no longer take them.
func NewRPCServer(tx *loop.Sender, status StatusFunc, logger *slog.Logger) *rpc.Server {
	s := rpc.NewServer(logger)
	s.Handle(ActionPrintStatus, func(ctx context.Context, _ []byte) (any, error) {
		if err := tx.Send(loop.RPCCommand{Command: loop.CommandPrintStatus}); err != nil {
			logging.Error(fmt.Errorf("forward print_status: %w", err), "producer", "rpc")
			return nil, nil
		}
		events.Producer.Sent("rpc", "print-status")
		return nil, nil
	})
	s.Handle(ActionNetUp, func(ctx context.Context, raw []byte) (any, error) {
		var req struct {
			Hourglass bool `cbor:"hourglass"`
		}
		if err := rpc.Unmarshal(raw, &req); err != nil {
			return nil, fmt.Errorf("decode net_up: %w", err)
		}
		return nil, forward(tx, loop.RPCCommand{Command: loop.CommandNetUp, Hourglass: req.Hourglass})
	})
	s.Handle(ActionNetDown, func(ctx context.Context, _ []byte) (any, error) {
		return nil, forward(tx, loop.RPCCommand{Command: loop.CommandNetDown})
	})
	s.Handle(ActionStatus, func(ctx context.Context, _ []byte) (any, error) {
		return status(ctx)
	})
	return s
}

func forward(tx *loop.Sender, cmd loop.RPCCommand) error {
	if err := tx.Send(cmd); err != nil {
		return fmt.Errorf("forward %s: %w", cmd.Command, err)
	}
	events.Producer.Sent("rpc", cmd.Command.String())
	return nil
}

// ServeRPC runs the RPC server on ln until the transport fails or ctx is
// cancelled. A transport failure sends one Terminate. It owns tx and closes
// it on return.
func ServeRPC(ctx context.Context, tx *loop.Sender, ln net.Listener, status StatusFunc) {
	defer tx.Close()
	events.Producer.Started("rpc")
	s := NewRPCServer(tx, status, logging.Logger())
	err := s.Serve(ctx, ln)
	if err == nil {
		events.Producer.Stopped("rpc", nil)
		return
	}
	logging.Error(err, "producer", "rpc")
	if sendErr := tx.Send(loop.Terminate{Reason: "rpc transport failed"}); sendErr != nil {
		logging.Error(sendErr, "producer", "rpc")
	}
	events.Producer.Stopped("rpc", err)
}
