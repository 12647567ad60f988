// Package producer holds the tasks that feed the dispatch loop: the
// hardware-event relay, the keepalive ticker, the signal watcher and the RPC
// server adapter. Each one owns its own loop.Sender and closes it when it
// stops; none of them touch loop-owned state.
package producer
