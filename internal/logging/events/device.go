package events

import "github.com/atomicstack/inkd/internal/logging"

type DeviceTracer struct{}

type NetworkTracer struct{}

var (
	Device  = DeviceTracer{}
	Network = NetworkTracer{}
)

func (DeviceTracer) Event(kind, key string) {
	logging.Trace("device.event", map[string]interface{}{"kind": kind, "key": key})
}

func (DeviceTracer) Flush(lines int) {
	logging.Trace("device.flush", map[string]interface{}{"lines": lines})
}

func (DeviceTracer) CloseApp() {
	logging.Trace("device.close-app", nil)
}

func (NetworkTracer) Activate(showHourglass bool) {
	logging.Trace("network.activate", map[string]interface{}{"hourglass": showHourglass})
}

func (NetworkTracer) Deactivate() {
	logging.Trace("network.deactivate", nil)
}

func (NetworkTracer) KeepAlive(err error) {
	payload := map[string]interface{}{}
	if err != nil {
		payload["error"] = err.Error()
	}
	logging.Trace("network.keepalive", payload)
}
