package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/atomicstack/inkd/internal/app"
	"github.com/atomicstack/inkd/internal/config"
	"github.com/atomicstack/inkd/internal/device"
	"github.com/atomicstack/inkd/internal/device/headless"
	"github.com/atomicstack/inkd/internal/device/sim"
	"github.com/atomicstack/inkd/internal/lock"
	"github.com/atomicstack/inkd/internal/logging"
	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/atomicstack/inkd/internal/sentry"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var version = "0.1.0"

// Exit statuses.
const (
	exitOK             = 0
	exitRuntime        = 1
	exitConfig         = 2
	exitAlreadyRunning = 3
)

// configError marks failures to load or validate configuration.
type configError struct {
	err error
}

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(context.Background())
	code := exitCode(err)
	switch code {
	case exitOK:
	case exitConfig:
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
	case exitAlreadyRunning:
		fmt.Fprintln(stderr, "inkd is already running")
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

func exitCode(err error) int {
	var cfgErr configError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, lock.ErrAlreadyRunning):
		return exitAlreadyRunning
	case errors.As(err, &cfgErr):
		return exitConfig
	}
	return exitRuntime
}

// cli carries state shared between the root command and its subcommands.
type cli struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "inkd",
		Short:         "inkd - background agent for an e-ink reader",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDaemon(cmd.Context())
		},
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		c.statusCmd(),
		c.netCmd(),
		c.sshdCmd(),
		c.debugCmd(),
		c.receiveCmd(),
		versionCmd(),
	)
	return root
}

func (c *cli) load(cmd *cobra.Command) error {
	flags := cmd.Flags()
	cfg, err := config.LoadEnv(config.ConfigPath(flags), os.Environ())
	if err != nil {
		return configError{err}
	}
	if err := config.ApplyFlags(&cfg, flags); err != nil {
		return configError{err}
	}
	if err := config.Validate(cfg); err != nil {
		return configError{err}
	}
	cfg.Args = os.Args[1:]
	c.cfg = cfg

	logging.Configure(cfg.Logging.FilePath)
	logging.SetTraceEnabled(cfg.Logging.Trace)
	return nil
}

func (c *cli) runDaemon(ctx context.Context) error {
	defer logging.Close()
	if err := sentry.Init(c.cfg.SentryDSN, version); err != nil {
		// Crash reporting is optional.
		logging.Warn("sentry init failed", "error", err)
	}
	defer sentry.Flush()
	defer sentry.RecoverPanic()

	l, err := lock.Acquire(c.cfg.LockPath)
	if err != nil {
		return err
	}
	defer l.Release()

	tty := collectTTYDetails()
	traceStartup(c.cfg, tty)

	kind := resolveDevice(c.cfg.Device, tty)
	sentry.SetDevice(kind)
	sdk := newDevice(kind)
	if kind == config.DeviceSim {
		// Log records would tear the simulated panel.
		logging.SetConsole(io.Discard)
	}
	logging.Info("inkd starting", "version", version, "device", kind, "rpc", c.cfg.Daemon.RPCAddr)
	if err := app.Run(ctx, c.cfg.Daemon, sdk); err != nil {
		logging.Error(err)
		sentry.CaptureError(err)
		return err
	}
	return nil
}

// resolveDevice picks a concrete backend. auto means the simulator when both
// stdin and stdout are terminals.
func resolveDevice(kind string, tty ttyDetails) string {
	if kind != config.DeviceAuto {
		return kind
	}
	interactive := 0
	for _, p := range tty.Probes {
		if (p.Name == "stdin" || p.Name == "stdout") && p.IsTerminal {
			interactive++
		}
	}
	if interactive == 2 {
		return config.DeviceSim
	}
	return config.DeviceHeadless
}

func newDevice(kind string) device.SDK {
	if kind == config.DeviceSim {
		return sim.New(device.PanelWidth, device.PanelHeight)
	}
	return headless.New(device.PanelWidth, device.PanelHeight, os.Stdout)
}

func traceStartup(cfg config.Config, tty ttyDetails) {
	events.App.Start(startupTracePayload(cfg, tty))
}

// startupTracePayload bundles runtime context for trace logging.
func startupTracePayload(cfg config.Config, tty ttyDetails) map[string]interface{} {
	flags := make(map[string]interface{}, len(cfg.Flags))
	for k, v := range cfg.Flags {
		flags[k] = v
	}
	flags["trace"] = cfg.Logging.Trace
	flags["logFile"] = cfg.Logging.FilePath
	payload := map[string]interface{}{
		"argv":    cfg.Args,
		"flags":   flags,
		"config":  cfg,
		"version": version,
	}
	if cfg.Source != "" {
		payload["configFile"] = cfg.Source
	}
	if exe, err := os.Executable(); err == nil {
		payload["executable"] = exe
	} else {
		payload["executableError"] = err.Error()
	}
	if cwd, err := os.Getwd(); err == nil {
		payload["cwd"] = cwd
	} else {
		payload["cwdError"] = err.Error()
	}
	payload["tty"] = tty
	return payload
}

type ttyDetails struct {
	Detected *ttyDetected     `json:"detected,omitempty"`
	Probes   []ttyProbeResult `json:"probes"`
}

type ttyDetected struct {
	Source string `json:"source"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type ttyProbeResult struct {
	Name       string `json:"name"`
	IsTerminal bool   `json:"is_terminal"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Error      string `json:"error,omitempty"`
}

// collectTTYDetails inspects standard descriptors for terminal support and dimensions.
func collectTTYDetails() ttyDetails {
	probes := []struct {
		name string
		fd   uintptr
	}{
		{"stdin", os.Stdin.Fd()},
		{"stdout", os.Stdout.Fd()},
		{"stderr", os.Stderr.Fd()},
	}
	results := make([]ttyProbeResult, 0, len(probes))
	var detected *ttyDetected
	for _, probe := range probes {
		entry := ttyProbeResult{Name: probe.name}
		fd := int(probe.fd)
		if fd >= 0 && term.IsTerminal(fd) {
			entry.IsTerminal = true
			if width, height, err := term.GetSize(fd); err == nil {
				entry.Width = width
				entry.Height = height
				if detected == nil {
					detected = &ttyDetected{Source: probe.name, Width: width, Height: height}
				}
			} else {
				entry.Error = err.Error()
			}
		}
		results = append(results, entry)
	}
	return ttyDetails{Detected: detected, Probes: results}
}
