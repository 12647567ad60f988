package rpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

const (
	dialTimeout         = 5 * time.Second
	responseReadTimeout = 45 * time.Second
	maxResponseSize     = 64 * 1024
)

// ErrInternal matches replies where the server failed while running the
// action, as opposed to rejecting the request.
var ErrInternal = errors.New("internal server error")

// ServerError is returned by Call when the server replies with ok=false.
type ServerError struct {
	Action  string
	Code    string
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Unwrap lets errors.Is(err, ErrInternal) identify internal failures.
func (e *ServerError) Unwrap() error {
	if e.Code == CodeInternal {
		return ErrInternal
	}
	return nil
}

// Client issues requests to a daemon's RPC endpoint.
type Client struct {
	addr string
}

// NewClient returns a client for the server at addr (host:port).
func NewClient(addr string) *Client {
	return &Client{addr: addr}
}

// Call sends action and decodes any reply data into result. A nil result
// discards the data.
func (c *Client) Call(ctx context.Context, action string, result any) error {
	return c.CallWith(ctx, action, nil, result)
}

// CallWith is Call with extra request fields. "action" always wins over a
// field of the same name.
func (c *Client) CallWith(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		request[k] = v
	}
	request["action"] = action
	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.addr, err)
	}
	if !response.OK {
		return &ServerError{Action: action, Code: response.Code, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, request map[string]any) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(responseReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	if err := encMode.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	var response Response
	if err := decMode.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
