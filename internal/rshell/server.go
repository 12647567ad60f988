// Package rshell is the on-device remote login server: an SSH server that
// authenticates against an authorized_keys file in its configuration
// directory and runs shells and commands, on a PTY when the client asks for
// one.
package rshell

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/ssh"
)

const (
	HostKeyFile        = "ssh_host_ed25519_key"
	AuthorizedKeysFile = "authorized_keys"
	DefaultPort        = 2345
	DefaultShell       = "/bin/sh"
)

// Error is returned for every remote-shell failure so callers can tell them
// apart from other daemon errors.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("remote shell %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrNoAuthorizedKeys is wrapped in an *Error when the configuration
// directory grants nobody access.
var ErrNoAuthorizedKeys = errors.New("no authorized keys")

// Server is an SSH login server.
type Server struct {
	ConfigDir string
	Port      int
	Shell     string
	Logger    *slog.Logger

	wg sync.WaitGroup
}

// ListenAndServe loads the keys, binds the configured port and serves until
// ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	cfg, err := s.serverConfig()
	if err != nil {
		return &Error{Op: "config", Err: err}
	}
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return &Error{Op: "listen", Err: err}
	}
	return s.serve(ctx, ln, cfg)
}

// Serve loads the keys and accepts connections on ln. It returns nil once
// ctx is cancelled. The listener is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	cfg, err := s.serverConfig()
	if err != nil {
		ln.Close()
		return &Error{Op: "config", Err: err}
	}
	return s.serve(ctx, ln, cfg)
}

func (s *Server) serve(ctx context.Context, ln net.Listener, cfg *ssh.ServerConfig) error {
	defer ln.Close()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()

	s.logger().Info("remote shell listening", "addr", ln.Addr().String())
	var serveErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil {
				serveErr = &Error{Op: "accept", Err: err}
			}
			break
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn, cfg)
		}()
	}
	s.wg.Wait()
	return serveErr
}

func (s *Server) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s.Logger
}

func (s *Server) shell() string {
	if s.Shell == "" {
		return DefaultShell
	}
	return s.Shell
}

func (s *Server) serverConfig() (*ssh.ServerConfig, error) {
	signer, err := loadOrCreateHostKey(filepath.Join(s.ConfigDir, HostKeyFile))
	if err != nil {
		return nil, err
	}
	authorized, err := loadAuthorizedKeys(filepath.Join(s.ConfigDir, AuthorizedKeysFile))
	if err != nil {
		return nil, err
	}
	cfg := &ssh.ServerConfig{
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			if !authorized[string(key.Marshal())] {
				return nil, fmt.Errorf("unknown public key for %s", meta.User())
			}
			return &ssh.Permissions{
				Extensions: map[string]string{"pubkey-fp": ssh.FingerprintSHA256(key)},
			}, nil
		},
	}
	cfg.AddHostKey(signer)
	return cfg, nil
}

func loadOrCreateHostKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		_, priv, genErr := ed25519.GenerateKey(rand.Reader)
		if genErr != nil {
			return nil, fmt.Errorf("generate host key: %w", genErr)
		}
		block, marshalErr := ssh.MarshalPrivateKey(priv, "")
		if marshalErr != nil {
			return nil, fmt.Errorf("encode host key: %w", marshalErr)
		}
		data = pem.EncodeToMemory(block)
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create config dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return nil, fmt.Errorf("write host key: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("read host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse host key %s: %w", path, err)
	}
	return signer, nil
}

func loadAuthorizedKeys(path string) (map[string]bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, ErrNoAuthorizedKeys)
		}
		return nil, fmt.Errorf("read authorized keys: %w", err)
	}
	keys := map[string]bool{}
	for len(data) > 0 {
		pub, _, _, rest, err := ssh.ParseAuthorizedKey(data)
		if err != nil {
			// ParseAuthorizedKey skips comments and blanks; an error here
			// means nothing parseable remains.
			break
		}
		keys[string(pub.Marshal())] = true
		data = rest
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoAuthorizedKeys)
	}
	return keys, nil
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		s.logger().Warn("ssh handshake failed", "remote", conn.RemoteAddr().String(), "error", err)
		conn.Close()
		return
	}
	defer sconn.Close()
	s.logger().Info("ssh login", "user", sconn.User(), "remote", sconn.RemoteAddr().String(),
		"key", sconn.Permissions.Extensions["pubkey-fp"])

	go ssh.DiscardRequests(reqs)
	closed := make(chan struct{})
	defer close(closed)
	go func() {
		select {
		case <-ctx.Done():
			sconn.Close()
		case <-closed:
		}
	}()

	var sessions sync.WaitGroup
	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, requests, err := newChannel.Accept()
		if err != nil {
			s.logger().Warn("accept channel failed", "error", err)
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			newSession(s, ch).serve(requests)
		}()
	}
	sessions.Wait()
}
