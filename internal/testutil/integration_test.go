package testutil

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/atomicstack/inkd/internal/rpc"
)

func waitForStatus(t *testing.T, ctx context.Context, addr string, exited <-chan error) string {
	t.Helper()
	client := rpc.NewClient(addr)
	for {
		var status string
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		err := client.Call(callCtx, "status", &status)
		cancel()
		if err == nil {
			return status
		}
		select {
		case <-ctx.Done():
			t.Fatalf("timeout waiting for daemon: %v", err)
		case err := <-exited:
			t.Fatalf("inkd exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestHeadlessDaemonLifecycle(t *testing.T) {
	bin := BuildBinary(t)
	dir := t.TempDir()
	rpcAddr := fmt.Sprintf("127.0.0.1:%d", FreePort(t))
	args := []string{
		"--device", "headless",
		"--rpc-addr", rpcAddr,
		"--ssh-port", fmt.Sprint(FreePort(t)),
		"--ssh-config-dir", filepath.Join(dir, "ssh"),
		"--lock-file", filepath.Join(dir, "inkd.lock"),
		"--log-file", filepath.Join(dir, "inkd.log"),
	}

	cmd := exec.Command(bin, args...)
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start inkd: %v", err)
	}
	exited := make(chan error, 1)
	go func() { exited <- cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	status := waitForStatus(t, ctx, rpcAddr, exited)
	if !strings.HasPrefix(status, "network: up") {
		t.Fatalf("unexpected status %q", status)
	}

	cli := func(sub ...string) string {
		t.Helper()
		base := []string{"--rpc-addr", rpcAddr, "--log-file", filepath.Join(dir, "cli.log")}
		out, err := exec.Command(bin, append(base, sub...)...).CombinedOutput()
		if err != nil {
			t.Fatalf("inkd %v: %v\n%s", sub, err, out)
		}
		return string(out)
	}
	awaitState := func(prefix string) {
		t.Helper()
		for !strings.Contains(cli("status"), prefix) {
			select {
			case <-ctx.Done():
				t.Fatalf("timeout waiting for %q", prefix)
			case <-time.After(50 * time.Millisecond):
			}
		}
	}
	cli("net", "down")
	awaitState("network: down")
	cli("net", "up")
	awaitState("network: up")

	second := exec.Command(bin, args...)
	err := second.Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("expected second instance to exit 3, got %v", err)
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("failed to signal inkd: %v", err)
	}
	select {
	case err := <-exited:
		if err != nil {
			t.Fatalf("expected clean exit after SIGTERM, got %v", err)
		}
	case <-ctx.Done():
		t.Fatalf("inkd did not exit after SIGTERM")
	}
}
