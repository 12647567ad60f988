package rpc

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

func startServer(t *testing.T, s *Server) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	})
	return ln.Addr().String(), cancel, done
}

func newTestServer() *Server {
	s := NewServer(nil)
	s.Handle("status", func(context.Context, []byte) (any, error) {
		return "network: up", nil
	})
	s.Handle("print_status", func(context.Context, []byte) (any, error) {
		return nil, nil
	})
	s.Handle("broken", func(context.Context, []byte) (any, error) {
		return nil, errors.New("radio unavailable")
	})
	return s
}

func TestCallDecodesData(t *testing.T) {
	addr, _, _ := startServer(t, newTestServer())
	var status string
	if err := NewClient(addr).Call(context.Background(), "status", &status); err != nil {
		t.Fatalf("call: %v", err)
	}
	if status != "network: up" {
		t.Fatalf("expected %q, got %q", "network: up", status)
	}
}

func TestCallAcknowledgement(t *testing.T) {
	addr, _, _ := startServer(t, newTestServer())
	if err := NewClient(addr).Call(context.Background(), "print_status", nil); err != nil {
		t.Fatalf("call: %v", err)
	}
}

func TestHandlerErrorIsInternal(t *testing.T) {
	addr, _, _ := startServer(t, newTestServer())
	err := NewClient(addr).Call(context.Background(), "broken", nil)
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	var serr *ServerError
	if !errors.As(err, &serr) || !strings.Contains(serr.Message, "radio unavailable") {
		t.Fatalf("expected server message, got %v", err)
	}
}

func TestUnknownActionSuggestsClosest(t *testing.T) {
	addr, _, _ := startServer(t, newTestServer())
	err := NewClient(addr).Call(context.Background(), "print", nil)
	var serr *ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("expected ServerError, got %v", err)
	}
	if serr.Code != CodeUnknownAction {
		t.Fatalf("expected code %q, got %q", CodeUnknownAction, serr.Code)
	}
	if !strings.Contains(serr.Message, `did you mean "print_status"`) {
		t.Fatalf("expected suggestion, got %q", serr.Message)
	}
	if errors.Is(err, ErrInternal) {
		t.Fatalf("unknown action must not be reported as internal")
	}
}

func TestServeReturnsNilOnCancel(t *testing.T) {
	_, cancel, done := startServer(t, newTestServer())
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on cancel, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestServeReportsListenerFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- newTestServer().Serve(context.Background(), ln) }()
	time.Sleep(10 * time.Millisecond)
	ln.Close()
	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected transport failure")
		}
	case <-time.After(time.Second):
		t.Fatalf("server did not report failure")
	}
}

func TestDuplicateHandlerPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	s := NewServer(nil)
	s.Handle("status", nil)
	s.Handle("status", nil)
}
