package debugsession

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func script(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-gdbserver")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func executable(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app")
	if err := os.WriteFile(path, []byte("\x7fELF"), 0o755); err != nil {
		t.Fatalf("write executable: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("resolve executable: %v", err)
	}
	return resolved
}

func TestArgs(t *testing.T) {
	got := Args("/mnt/ext1/app", 10003)
	want := []string{":10003", "/mnt/ext1/app"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestStartPassesPortAndExecutable(t *testing.T) {
	out := filepath.Join(t.TempDir(), "argv")
	exe := executable(t)
	l := Launcher{Program: script(t, `echo "$1 $2" > `+out)}
	s, err := l.Start(context.Background(), exe, 4242)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read argv: %v", err)
	}
	if string(data) != ":4242 "+exe+"\n" {
		t.Fatalf("unexpected argv %q", data)
	}
	if s.Executable() != exe || s.Port() != 4242 {
		t.Fatalf("unexpected session %s:%d", s.Executable(), s.Port())
	}
}

func TestWaitReportsExitStatus(t *testing.T) {
	s, err := Launcher{Program: script(t, "exit 3")}.Start(context.Background(), executable(t), 1234)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	err = s.Wait()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 3 {
		t.Fatalf("expected exit status 3, got %v", err)
	}
	if err2 := s.Wait(); err2 != err {
		t.Fatalf("second wait returned %v, want %v", err2, err)
	}
}

func TestKillStopsSession(t *testing.T) {
	s, err := Launcher{Program: script(t, "exec sleep 30")}.Start(context.Background(), executable(t), 1234)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatalf("session still running after kill")
	}
	if s.Wait() == nil {
		t.Fatalf("expected killed session to report an error")
	}
	if err := s.Kill(); err != nil {
		t.Fatalf("second kill: %v", err)
	}
}

func TestStartRejectsBadInput(t *testing.T) {
	if _, err := Start(context.Background(), "", 1234); err == nil {
		t.Fatalf("expected error for empty executable")
	}
	if _, err := Start(context.Background(), executable(t), 70000); err == nil {
		t.Fatalf("expected error for invalid port")
	}
}

func TestStartMissingProgram(t *testing.T) {
	l := Launcher{Program: filepath.Join(t.TempDir(), "missing")}
	if _, err := l.Start(context.Background(), executable(t), 1234); err == nil {
		t.Fatalf("expected error for missing debug server")
	}
}

func TestStartMissingExecutable(t *testing.T) {
	l := Launcher{Program: script(t, "exit 0")}
	if _, err := l.Start(context.Background(), filepath.Join(t.TempDir(), "gone"), 1234); err == nil {
		t.Fatalf("expected error for missing executable")
	}
}
