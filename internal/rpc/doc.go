// Package rpc is the daemon's request/response transport: one CBOR request
// per TCP connection, answered by one CBOR response, after which the
// connection closes. CBOR values are self-delimiting, so no extra framing
// is needed.
//
// Requests are maps carrying an "action" field. Responses use the Response
// envelope: {ok, error, code, data}.
package rpc
