package events

import "github.com/atomicstack/inkd/internal/logging"

type LoopTracer struct{}

type RenderTracer struct{}

var (
	Loop   = LoopTracer{}
	Render = RenderTracer{}
)

func (LoopTracer) Message(kind string) {
	logging.Trace("loop.message", map[string]interface{}{"kind": kind})
}

func (LoopTracer) Page(from, to string) {
	logging.Trace("loop.page", map[string]interface{}{"from": from, "to": to})
}

func (LoopTracer) Ignored(kind string) {
	logging.Trace("loop.ignored", map[string]interface{}{"kind": kind})
}

func (LoopTracer) Stop(reason string) {
	logging.Trace("loop.stop", map[string]interface{}{"reason": reason})
}

func (RenderTracer) Pass(page string) {
	logging.Trace("render.pass", map[string]interface{}{"page": page})
}

func (RenderTracer) Skip(page string) {
	logging.Trace("render.skip", map[string]interface{}{"page": page})
}
