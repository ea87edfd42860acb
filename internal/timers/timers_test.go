package timers

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFires(t *testing.T) {
	s := NewSet()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	s.After("reconnect", 10*time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("Expected task to fire")
	}

	if s.Pending("reconnect") {
		t.Error("Expected slot to be released after firing")
	}
}

func TestAfterReplacesPending(t *testing.T) {
	s := NewSet()
	defer s.Stop()

	var first, second int32
	s.After("debounce", 30*time.Millisecond, func() { atomic.AddInt32(&first, 1) })
	s.After("debounce", 30*time.Millisecond, func() { atomic.AddInt32(&second, 1) })

	time.Sleep(100 * time.Millisecond)

	if atomic.LoadInt32(&first) != 0 {
		t.Errorf("Expected replaced task not to fire, fired %d times", first)
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Errorf("Expected replacement to fire once, fired %d times", second)
	}
}

func TestCancel(t *testing.T) {
	s := NewSet()
	defer s.Stop()

	var fired int32
	s.After("debounce", 20*time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	if !s.Cancel("debounce") {
		t.Error("Expected Cancel to report a pending task")
	}
	if s.Cancel("debounce") {
		t.Error("Expected second Cancel to report nothing pending")
	}

	time.Sleep(60 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("Expected cancelled task not to fire")
	}
}

func TestEvery(t *testing.T) {
	s := NewSet()

	var ticks int32
	s.Every("heartbeat", 10*time.Millisecond, func() { atomic.AddInt32(&ticks, 1) })
	time.Sleep(75 * time.Millisecond)
	s.Cancel("heartbeat")

	got := atomic.LoadInt32(&ticks)
	if got < 2 {
		t.Errorf("Expected at least 2 ticks, got %d", got)
	}

	time.Sleep(40 * time.Millisecond)
	if after := atomic.LoadInt32(&ticks); after != got {
		t.Errorf("Expected no ticks after cancel, got %d more", after-got)
	}
	s.Stop()
}

func TestStopIgnoresLaterScheduling(t *testing.T) {
	s := NewSet()
	s.Stop()

	var fired int32
	s.After("reconnect", time.Millisecond, func() { atomic.AddInt32(&fired, 1) })
	time.Sleep(20 * time.Millisecond)

	if s.Pending("reconnect") || atomic.LoadInt32(&fired) != 0 {
		t.Error("Expected stopped set to ignore new tasks")
	}
}
