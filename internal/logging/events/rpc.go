package events

import "github.com/atomicstack/inkd/internal/logging"

type RPCTracer struct{}

var RPC = RPCTracer{}

func (RPCTracer) Request(remote, action string) {
	logging.Trace("rpc.request", map[string]interface{}{"remote": remote, "action": action})
}

func (RPCTracer) Error(action string, err error) {
	if err == nil {
		return
	}
	logging.Trace("rpc.error", map[string]interface{}{"action": action, "error": err.Error()})
}
