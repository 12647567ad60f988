// Package receive accepts one TCP upload and stores it at a path.
package receive

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
)

const DefaultPort = 19991

// File listens on port, accepts a single connection, reads until the peer
// closes, and installs the bytes at path. It returns the number of bytes
// written.
func File(ctx context.Context, port int, path string) (int64, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, fmt.Errorf("receive: listen: %w", err)
	}
	return Serve(ctx, ln, path)
}

// Serve is File on an existing listener. The listener is closed on return.
func Serve(ctx context.Context, ln net.Listener, path string) (int64, error) {
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

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("receive: accept: %w", err)
	}
	defer conn.Close()
	ln.Close()
	return writeAtomic(conn, path)
}

// writeAtomic streams r into a temporary sibling of path and renames it into
// place, so a partial transfer never replaces the existing file.
func writeAtomic(r io.Reader, path string) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return 0, fmt.Errorf("receive: %w", err)
	}
	n, err := io.Copy(tmp, r)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmp.Name(), 0o755)
	}
	if err == nil {
		err = os.Rename(tmp.Name(), path)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("receive %s: %w", path, err)
	}
	return n, nil
}
