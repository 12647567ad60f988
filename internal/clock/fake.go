package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a deterministic Clock. Time stands still until Advance is
// called; pending After and Sleep calls fire once the clock passes their
// deadline.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
	changed *sync.Cond
}

type fakeWaiter struct {
	deadline time.Time
	channel  chan time.Time
}

// Fake returns a FakeClock starting at initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{current: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, &fakeWaiter{deadline: c.current.Add(d), channel: ch})
	c.changed.Broadcast()
	return ch
}

func (c *FakeClock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	<-c.After(d)
}

// Advance moves the clock forward by d and fires every waiter whose deadline
// has been reached, in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current
	sort.SliceStable(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})
	remaining := c.waiters[:0]
	var due []*fakeWaiter
	for _, w := range c.waiters {
		if w.deadline.After(now) {
			remaining = append(remaining, w)
			continue
		}
		due = append(due, w)
	}
	c.waiters = remaining
	c.changed.Broadcast()
	c.mu.Unlock()

	for _, w := range due {
		w.channel <- now
	}
}

// WaitForWaiters blocks until at least n After or Sleep calls are pending.
// Tests use it to know a goroutine has parked on the clock before calling
// Advance.
func (c *FakeClock) WaitForWaiters(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.waiters) < n {
		c.changed.Wait()
	}
}

// Pending reports how many waiters are parked on the clock.
func (c *FakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
