package rshell

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/creack/pty"
	"golang.org/x/crypto/ssh"
)

type ptyRequest struct {
	Term    string
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
	Modes   string
}

type windowChange struct {
	Columns uint32
	Rows    uint32
	Width   uint32
	Height  uint32
}

type envRequest struct {
	Name  string
	Value string
}

type execRequest struct {
	Command string
}

type exitStatus struct {
	Status uint32
}

// session is one SSH "session" channel.
type session struct {
	server *Server
	ch     ssh.Channel

	mu      sync.Mutex
	env     []string
	pty     *ptyRequest
	ptmx    *os.File
	started bool
}

func newSession(s *Server, ch ssh.Channel) *session {
	return &session{server: s, ch: ch}
}

func (s *session) serve(requests <-chan *ssh.Request) {
	for req := range requests {
		ok := s.handle(req)
		if req.WantReply {
			req.Reply(ok, nil)
		}
	}
}

func (s *session) handle(req *ssh.Request) bool {
	switch req.Type {
	case "pty-req":
		var p ptyRequest
		if err := ssh.Unmarshal(req.Payload, &p); err != nil {
			return false
		}
		s.mu.Lock()
		s.pty = &p
		s.mu.Unlock()
		return true
	case "window-change":
		var w windowChange
		if err := ssh.Unmarshal(req.Payload, &w); err != nil {
			return false
		}
		s.resize(w.Columns, w.Rows)
		return true
	case "env":
		var e envRequest
		if err := ssh.Unmarshal(req.Payload, &e); err != nil {
			return false
		}
		s.mu.Lock()
		s.env = append(s.env, e.Name+"="+e.Value)
		s.mu.Unlock()
		return true
	case "shell":
		return s.start(exec.Command(s.server.shell(), "-l"))
	case "exec":
		var e execRequest
		if err := ssh.Unmarshal(req.Payload, &e); err != nil {
			return false
		}
		return s.start(exec.Command(s.server.shell(), "-c", e.Command))
	}
	return false
}

func (s *session) resize(cols, rows uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pty != nil {
		s.pty.Columns, s.pty.Rows = cols, rows
	}
	if s.ptmx != nil {
		pty.Setsize(s.ptmx, &pty.Winsize{Cols: uint16(cols), Rows: uint16(rows)})
	}
}

func (s *session) start(cmd *exec.Cmd) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return false
	}
	cmd.Env = append(os.Environ(), s.env...)
	if home, err := os.UserHomeDir(); err == nil {
		cmd.Dir = home
	}

	if s.pty != nil {
		cmd.Env = append(cmd.Env, "TERM="+s.pty.Term)
		ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: uint16(s.pty.Columns), Rows: uint16(s.pty.Rows)})
		if err != nil {
			s.server.logger().Warn("start pty session failed", "error", err)
			return false
		}
		s.ptmx = ptmx
		s.started = true
		go io.Copy(ptmx, s.ch)
		go s.finish(cmd, func() {
			io.Copy(s.ch, ptmx)
		}, ptmx)
		return true
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return false
	}
	cmd.Stdout = s.ch
	cmd.Stderr = s.ch.Stderr()
	if err := cmd.Start(); err != nil {
		s.server.logger().Warn("start session failed", "error", err)
		return false
	}
	s.started = true
	go func() {
		io.Copy(stdin, s.ch)
		stdin.Close()
	}()
	go s.finish(cmd, nil, nil)
	return true
}

// finish waits for the process, drains its output and reports the exit
// status before closing the channel.
func (s *session) finish(cmd *exec.Cmd, drain func(), closer io.Closer) {
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		if drain != nil {
			drain()
		}
	}()
	err := cmd.Wait()
	<-drained
	if closer != nil {
		closer.Close()
	}
	code := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
		if code < 0 {
			code = 255
		}
	} else if err != nil {
		s.server.logger().Warn("session wait failed", "error", fmt.Errorf("wait: %w", err))
		code = 255
	}
	s.ch.SendRequest("exit-status", false, ssh.Marshal(exitStatus{Status: uint32(code)}))
	s.ch.Close()
}
