package events

import "github.com/atomicstack/inkd/internal/logging"

type ProducerTracer struct{}

var Producer = ProducerTracer{}

func (ProducerTracer) Started(name string) {
	logging.Trace("producer.start", map[string]interface{}{"producer": name})
}

func (ProducerTracer) Sent(name, kind string) {
	logging.Trace("producer.send", map[string]interface{}{"producer": name, "kind": kind})
}

func (ProducerTracer) Stopped(name string, err error) {
	payload := map[string]interface{}{"producer": name}
	if err != nil {
		payload["error"] = err.Error()
	}
	logging.Trace("producer.stop", payload)
}
