package clock

import (
	"testing"
	"time"
)

func TestFakeSleepWakesOnAdvance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Fake(start)
	done := make(chan struct{})
	go func() {
		c.Sleep(30 * time.Second)
		close(done)
	}()

	c.WaitForWaiters(1)
	c.Advance(29 * time.Second)
	select {
	case <-done:
		t.Fatalf("sleep returned before its deadline")
	case <-time.After(20 * time.Millisecond):
	}

	c.Advance(time.Second)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("sleep did not return after advance")
	}
	if got := c.Now(); !got.Equal(start.Add(30 * time.Second)) {
		t.Fatalf("expected now %v, got %v", start.Add(30*time.Second), got)
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatalf("expected After(0) to be ready")
	}
	if c.Pending() != 0 {
		t.Fatalf("expected no pending waiters, got %d", c.Pending())
	}
}
