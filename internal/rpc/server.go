package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/atomicstack/inkd/internal/logging/events"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Error codes carried in Response.Code.
const (
	CodeBadRequest    = "bad_request"
	CodeUnknownAction = "unknown_action"
	CodeInternal      = "internal"
)

const (
	readTimeout    = 30 * time.Second
	writeTimeout   = 10 * time.Second
	maxRequestSize = 64 * 1024
)

// ActionFunc handles one action. A nil result produces {ok: true}; a
// non-nil result is encoded into Response.Data. Errors are reported to the
// caller with CodeInternal.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire envelope for every reply.
type Response struct {
	OK    bool       `cbor:"ok"`
	Error string     `cbor:"error,omitempty"`
	Code  string     `cbor:"code,omitempty"`
	Data  RawMessage `cbor:"data,omitempty"`
}

// Server dispatches CBOR requests to registered actions.
type Server struct {
	handlers map[string]ActionFunc
	logger   *slog.Logger
	active   sync.WaitGroup
}

// NewServer returns a server with no actions registered.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{handlers: make(map[string]ActionFunc), logger: logger}
}

// Handle registers handler for action. Panics on duplicates.
func (s *Server) Handle(action string, handler ActionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("rpc.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// ListenAndServe binds addr and serves until ctx is cancelled or the
// listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln. It returns nil after ctx is cancelled
// and an error when the listener itself fails. In both cases it waits for
// in-flight requests before returning.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()
	defer ln.Close()

	s.logger.Info("rpc server listening", "addr", ln.Addr().String())

	var serveErr error
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			serveErr = fmt.Errorf("accept on %s: %w", ln.Addr(), err)
			break
		}
		s.active.Add(1)
		go func() {
			defer s.active.Done()
			s.handleConnection(ctx, conn)
		}()
	}
	s.active.Wait()
	return serveErr
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw RawMessage
	if err := decMode.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, CodeBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := Unmarshal(raw, &header); err != nil {
		s.writeError(conn, CodeBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, CodeBadRequest, "missing required field: action")
		return
	}
	events.RPC.Request(conn.RemoteAddr().String(), header.Action)

	handler, exists := s.handlers[header.Action]
	if !exists {
		msg := fmt.Sprintf("unknown action %q", header.Action)
		if hint := s.suggest(header.Action); hint != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", hint)
		}
		s.writeError(conn, CodeUnknownAction, msg)
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		events.RPC.Error(header.Action, err)
		s.logger.Warn("rpc action failed", "action", header.Action, "error", err)
		s.writeError(conn, CodeInternal, err.Error())
		return
	}
	s.writeSuccess(conn, result)
}

// suggest returns the registered action closest to action, if any action
// fuzzily matches it.
func (s *Server) suggest(action string) string {
	names := make([]string, 0, len(s.handlers))
	for name := range s.handlers {
		names = append(names, name)
	}
	ranks := fuzzy.RankFindNormalizedFold(action, names)
	if len(ranks) == 0 {
		return ""
	}
	sort.Sort(ranks)
	return ranks[0].Target
}

func (s *Server) writeError(conn net.Conn, code, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := encMode.NewEncoder(conn).Encode(Response{OK: false, Code: code, Error: message}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *Server) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	response := Response{OK: true}
	if result != nil {
		data, err := Marshal(result)
		if err != nil {
			s.writeError(conn, CodeInternal, fmt.Sprintf("marshaling response: %v", err))
			return
		}
		response.Data = data
	}
	if err := encMode.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}
