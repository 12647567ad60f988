package events

import "github.com/atomicstack/inkd/internal/logging"

type AppTracer struct{}

var App = AppTracer{}

func (AppTracer) Start(payload map[string]interface{}) {
	logging.Trace("app.start", payload)
}

func (AppTracer) DaemonInit(rpcAddr string, sshPort int) {
	logging.Trace("app.daemon-init", map[string]interface{}{"rpc": rpcAddr, "ssh": sshPort})
}

func (AppTracer) Exit(reason string) {
	logging.Trace("app.exit", map[string]interface{}{"reason": reason})
}

func (AppTracer) InitAbandoned(err error) {
	logging.Trace("app.init-abandoned", map[string]interface{}{"error": err.Error()})
}
