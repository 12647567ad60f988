// Command inkctl talks to a running inkd over its RPC port.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atomicstack/inkd/internal/producer"
	"github.com/atomicstack/inkd/internal/rpc"
	"github.com/spf13/cobra"
)

const defaultAddr = "127.0.0.1:50051"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string
	var timeout time.Duration
	root := &cobra.Command{
		Use:           "inkctl",
		Short:         "inkctl - control a running inkd",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&addr, "addr", defaultAddr, "daemon RPC address (host:port)")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "request timeout")

	call := func(cmd *cobra.Command, action string, result any) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return rpc.NewClient(addr).Call(ctx, action, result)
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "print-status",
			Short: "Ask the daemon to print its status on its own console",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := call(cmd, producer.ActionPrintStatus, nil); err != nil {
					return err
				}
				return printReply(cmd.OutOrStdout(), "")
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Fetch the daemon's status report",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				var status string
				if err := call(cmd, producer.ActionStatus, &status); err != nil {
					var serverErr *rpc.ServerError
					if errors.As(err, &serverErr) && errors.Is(err, rpc.ErrInternal) {
						return fmt.Errorf("daemon could not read status: %s", serverErr.Message)
					}
					return err
				}
				return printReply(cmd.OutOrStdout(), status)
			},
		},
	)
	return root
}

// printReply writes the reply text, or the acknowledgement line for empty
// replies.
func printReply(w io.Writer, reply string) error {
	if reply == "" {
		reply = "Status printed!"
	}
	_, err := fmt.Fprintln(w, reply)
	return err
}
