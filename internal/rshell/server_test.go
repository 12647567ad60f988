package rshell

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func clientSigner(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

func writeAuthorized(t *testing.T, dir string, keys ...ssh.PublicKey) {
	t.Helper()
	var data []byte
	data = append(data, "# devices allowed to log in\n"...)
	for _, k := range keys {
		data = append(data, ssh.MarshalAuthorizedKey(k)...)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, AuthorizedKeysFile), data, 0o600))
}

func startServer(t *testing.T, dir string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	srv := &Server{ConfigDir: dir}
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Errorf("server did not stop")
		}
	})
	return ln.Addr().String()
}

func dial(addr string, signer ssh.Signer) (*ssh.Client, error) {
	return ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            "root",
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         2 * time.Second,
	})
}

func TestExecRunsCommand(t *testing.T) {
	dir := t.TempDir()
	signer := clientSigner(t)
	writeAuthorized(t, dir, signer.PublicKey())
	addr := startServer(t, dir)

	client, err := dial(addr, signer)
	require.NoError(t, err)
	defer client.Close()

	sess, err := client.NewSession()
	require.NoError(t, err)
	defer sess.Close()

	out, err := sess.Output("echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(out))
}

func TestExecReportsExitStatus(t *testing.T) {
	dir := t.TempDir()
	signer := clientSigner(t)
	writeAuthorized(t, dir, signer.PublicKey())
	addr := startServer(t, dir)

	client, err := dial(addr, signer)
	require.NoError(t, err)
	defer client.Close()

	sess, err := client.NewSession()
	require.NoError(t, err)
	defer sess.Close()

	err = sess.Run("exit 7")
	var exitErr *ssh.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 7, exitErr.ExitStatus())
}

func TestUnknownKeyRejected(t *testing.T) {
	dir := t.TempDir()
	writeAuthorized(t, dir, clientSigner(t).PublicKey())
	addr := startServer(t, dir)

	_, err := dial(addr, clientSigner(t))
	require.Error(t, err)
}

func TestHostKeyPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, HostKeyFile)

	first, err := loadOrCreateHostKey(path)
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	second, err := loadOrCreateHostKey(path)
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey().Marshal(), second.PublicKey().Marshal())
}

func TestMissingAuthorizedKeys(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &Server{ConfigDir: t.TempDir()}
	err = srv.Serve(context.Background(), ln)

	var shellErr *Error
	require.ErrorAs(t, err, &shellErr)
	assert.Equal(t, "config", shellErr.Op)
	assert.True(t, errors.Is(err, ErrNoAuthorizedKeys))
}

func TestListenFailureIsShellError(t *testing.T) {
	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	dir := t.TempDir()
	writeAuthorized(t, dir, clientSigner(t).PublicKey())
	srv := &Server{ConfigDir: dir, Port: port}
	err = srv.ListenAndServe(context.Background())

	var shellErr *Error
	require.ErrorAs(t, err, &shellErr)
	assert.Equal(t, "listen", shellErr.Op)
}

func TestListenAndServeChecksKeysBeforeBinding(t *testing.T) {
	srv := &Server{ConfigDir: t.TempDir(), Port: 1}
	err := srv.ListenAndServe(context.Background())

	var shellErr *Error
	require.ErrorAs(t, err, &shellErr)
	assert.Equal(t, "config", shellErr.Op)
}
