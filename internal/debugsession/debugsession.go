// Package debugsession launches a remote debugging server for an on-device
// executable.
package debugsession

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
)

const (
	DefaultProgram = "gdbserver"
	DefaultPort    = 10003
)

// Launcher starts debug servers. The zero value runs gdbserver from PATH.
type Launcher struct {
	Program string
	Stdout  *os.File
	Stderr  *os.File
}

// Session is a running debug server process.
type Session struct {
	exe  string
	port int
	cmd  *exec.Cmd
	done chan struct{}
	err  error
	once sync.Once
}

// Start runs `gdbserver :PORT EXE` with the default launcher.
func Start(ctx context.Context, exe string, port int) (*Session, error) {
	return Launcher{}.Start(ctx, exe, port)
}

// Args returns the debug server argument vector for exe on port.
func Args(exe string, port int) []string {
	return []string{":" + strconv.Itoa(port), exe}
}

func (l Launcher) Start(ctx context.Context, exe string, port int) (*Session, error) {
	if exe == "" {
		return nil, errors.New("debug session: no executable given")
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("debug session: invalid port %d", port)
	}
	exe, err := canonical(exe)
	if err != nil {
		return nil, fmt.Errorf("debug session: %w", err)
	}
	program := l.Program
	if program == "" {
		program = DefaultProgram
	}
	cmd := exec.CommandContext(ctx, program, Args(exe, port)...)
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("debug session: start %s: %w", program, err)
	}
	s := &Session{exe: exe, port: port, cmd: cmd, done: make(chan struct{})}
	go func() {
		s.err = cmd.Wait()
		close(s.done)
	}()
	return s, nil
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

// Executable is the resolved path being debugged.
func (s *Session) Executable() string {
	return s.exe
}

func (s *Session) Port() int {
	return s.port
}

// PID of the debug server process.
func (s *Session) PID() int {
	return s.cmd.Process.Pid
}

// Wait blocks until the debug server exits. It is safe to call from several
// goroutines; all see the same result.
func (s *Session) Wait() error {
	<-s.done
	return s.err
}

// Done is closed once the process has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Kill stops the debug server. Killing an exited session is not an error.
func (s *Session) Kill() error {
	var err error
	s.once.Do(func() {
		err = s.cmd.Process.Kill()
		if errors.Is(err, os.ErrProcessDone) {
			err = nil
		}
	})
	return err
}
