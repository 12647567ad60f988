package loop

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrQueueClosed is returned by Send once the receiving side is gone or the
// sender itself has been closed.
var ErrQueueClosed = errors.New("message queue closed")

// queue is an unbounded FIFO with many senders and one receiver. Send never
// blocks, so it is safe to call from foreign callbacks.
type queue struct {
	mu      sync.Mutex
	items   []Message
	senders int
	closed  bool
	notify  chan struct{}
}

// Sender is one producer's handle on the queue. Clone hands out further
// handles; the queue closes for the receiver once every handle is closed.
type Sender struct {
	q      *queue
	closed atomic.Bool
}

// Receiver is the single consuming end of the queue.
type Receiver struct {
	q *queue
}

// NewQueue creates a queue with one open sender.
func NewQueue() (*Sender, *Receiver) {
	q := &queue{senders: 1, notify: make(chan struct{}, 1)}
	return &Sender{q: q}, &Receiver{q: q}
}

func (q *queue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Send enqueues m. Messages from one sender are delivered in send order.
func (s *Sender) Send(m Message) error {
	if s.closed.Load() {
		return ErrQueueClosed
	}
	s.q.mu.Lock()
	if s.q.closed {
		s.q.mu.Unlock()
		return ErrQueueClosed
	}
	s.q.items = append(s.q.items, m)
	s.q.mu.Unlock()
	s.q.wake()
	return nil
}

// Clone returns a new handle on the same queue. Cloning a closed handle
// returns a closed handle.
func (s *Sender) Clone() *Sender {
	clone := &Sender{q: s.q}
	if s.closed.Load() {
		clone.closed.Store(true)
		return clone
	}
	s.q.mu.Lock()
	s.q.senders++
	s.q.mu.Unlock()
	return clone
}

// Close releases the handle. Closing twice is a no-op.
func (s *Sender) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.q.mu.Lock()
	s.q.senders--
	s.q.mu.Unlock()
	s.q.wake()
}

// Recv blocks for the next message. It reports false once the queue is
// drained and no sender remains, or after Close.
func (r *Receiver) Recv() (Message, bool) {
	for {
		r.q.mu.Lock()
		if r.q.closed {
			r.q.mu.Unlock()
			return nil, false
		}
		if len(r.q.items) > 0 {
			m := r.q.items[0]
			r.q.items[0] = nil
			r.q.items = r.q.items[1:]
			if len(r.q.items) == 0 {
				r.q.items = nil
			}
			r.q.mu.Unlock()
			return m, true
		}
		if r.q.senders <= 0 {
			r.q.mu.Unlock()
			return nil, false
		}
		r.q.mu.Unlock()
		<-r.q.notify
	}
}

// Close drops the receiving end. Pending messages are discarded and every
// later Send fails with ErrQueueClosed.
func (r *Receiver) Close() {
	r.q.mu.Lock()
	r.q.closed = true
	r.q.items = nil
	r.q.mu.Unlock()
	r.q.wake()
}

// Len reports the number of queued messages.
func (r *Receiver) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()
	return len(r.q.items)
}
