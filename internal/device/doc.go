// Package device describes the capability surface the daemon needs from the
// e-ink hardware SDK: an event stream, a drawable surface, application
// shutdown and the network primitives. Concrete backends live in the sim
// (terminal simulator) and headless subpackages.
//
// Event handlers registered through SDK.Main are invoked on a goroutine the
// daemon does not own. Handlers must not touch loop-owned state; the daemon
// only ever enqueues from them.
package device
