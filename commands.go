package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/atomicstack/inkd/internal/debugsession"
	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/producer"
	"github.com/atomicstack/inkd/internal/receive"
	"github.com/atomicstack/inkd/internal/rpc"
	"github.com/atomicstack/inkd/internal/rshell"
	"github.com/spf13/cobra"
)

// interruptible stops the returned context on SIGINT or SIGTERM.
func interruptible(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

const daemonTimeout = 10 * time.Second

// daemon returns a client for the running daemon's RPC endpoint. A listen
// address without a host is dialled on loopback.
func (c *cli) daemon() *rpc.Client {
	return rpc.NewClient(dialAddr(c.cfg.Daemon.RPCAddr))
}

func dialAddr(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return listen
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func (c *cli) callDaemon(ctx context.Context, action string, fields map[string]any, result any) error {
	ctx, cancel := context.WithTimeout(ctx, daemonTimeout)
	defer cancel()
	return c.daemon().CallWith(ctx, action, fields, result)
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the running daemon's network status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var status string
			if err := c.callDaemon(cmd.Context(), producer.ActionStatus, nil, &status); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}
}

// activateNetwork asks the daemon to bring the network up.
func (c *cli) activateNetwork(ctx context.Context, hourglass bool) error {
	fields := map[string]any{"hourglass": hourglass}
	if err := c.callDaemon(ctx, producer.ActionNetUp, fields, nil); err != nil {
		return fmt.Errorf("activate network: %w", err)
	}
	return nil
}

func (c *cli) netCmd() *cobra.Command {
	netCmd := &cobra.Command{
		Use:   "net",
		Short: "Bring the daemon's network up or down",
	}

	var hourglass bool
	up := &cobra.Command{
		Use:   "up",
		Short: "Activate the network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.activateNetwork(cmd.Context(), hourglass); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "network activation requested")
			return nil
		},
	}
	up.Flags().BoolVar(&hourglass, "hourglass", false, "show the busy indicator while connecting")

	down := &cobra.Command{
		Use:   "down",
		Short: "Deactivate the network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.callDaemon(cmd.Context(), producer.ActionNetDown, nil, nil); err != nil {
				return fmt.Errorf("deactivate network: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "network deactivation requested")
			return nil
		},
	}

	netCmd.AddCommand(up, down)
	return netCmd
}

func (c *cli) sshdCmd() *cobra.Command {
	var configDir string
	var port int
	cmd := &cobra.Command{
		Use:   "sshd",
		Short: "Run the remote shell server in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd.Context())
			defer stop()
			srv := &rshell.Server{
				ConfigDir: c.cfg.Daemon.SSHConfigDir,
				Port:      c.cfg.Daemon.SSHPort,
				Logger:    logging.Logger(),
			}
			if cmd.Flags().Changed("config-dir") {
				srv.ConfigDir = configDir
			}
			if cmd.Flags().Changed("port") {
				srv.Port = port
			}
			return srv.ListenAndServe(ctx)
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "directory holding the host key and authorized_keys")
	cmd.Flags().IntVar(&port, "port", rshell.DefaultPort, "port to listen on")
	return cmd
}

func (c *cli) debugCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "debug EXE",
		Short: "Start a gdbserver session for an executable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd.Context())
			defer stop()
			if err := c.activateNetwork(ctx, false); err != nil {
				return err
			}
			session, err := debugsession.Start(ctx, args[0], port)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "debug server listening on :%d (pid %d)\n", port, session.PID())
			return session.Wait()
		},
	}
	cmd.Flags().IntVar(&port, "port", debugsession.DefaultPort, "port for the debug server")
	return cmd
}

func (c *cli) receiveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "receive PATH",
		Short: "Accept one TCP upload and write it to PATH",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := interruptible(cmd.Context())
			defer stop()
			fmt.Fprintf(cmd.OutOrStdout(), "waiting for upload on :%d\n", port)
			n, err := receive.File(ctx, port, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "received %d bytes into %s\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&port, "port", receive.DefaultPort, "port to listen on")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of inkd",
		// Skip config loading so version always works.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "inkd version %s\n", version)
		},
	}
}
