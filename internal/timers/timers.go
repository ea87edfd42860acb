// Package timers schedules named, cancellable tasks. Each kind has at most one
// pending task: scheduling a kind again cancels the previous instance first.
package timers

import (
	"sync"
	"time"
)

// Kind names a timer slot.
type Kind string

type task struct {
	token  uint64
	timer  *time.Timer
	ticker *time.Ticker
	done   chan struct{}
}

func (t *task) stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
	if t.ticker != nil {
		t.ticker.Stop()
		close(t.done)
	}
}

// Set owns the pending tasks of one component.
type Set struct {
	mu      sync.Mutex
	tasks   map[Kind]*task
	next    uint64
	stopped bool
}

func NewSet() *Set {
	return &Set{tasks: make(map[Kind]*task)}
}

// After runs fn once after d, replacing any pending task of the same kind.
func (s *Set) After(kind Kind, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	t := s.replace(kind)
	token := t.token
	t.timer = time.AfterFunc(d, func() {
		if !s.claim(kind, token, true) {
			return
		}
		fn()
	})
}

// Every runs fn every d until cancelled, replacing any pending task of the
// same kind.
func (s *Set) Every(kind Kind, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	t := s.replace(kind)
	t.ticker = time.NewTicker(d)
	t.done = make(chan struct{})

	go func(token uint64, ticker *time.Ticker, done <-chan struct{}) {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !s.claim(kind, token, false) {
					return
				}
				fn()
			}
		}
	}(t.token, t.ticker, t.done)
}

// Cancel stops the pending task of kind. It reports whether one was pending.
func (s *Set) Cancel(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[kind]
	if !ok {
		return false
	}
	t.stop()
	delete(s.tasks, kind)
	return true
}

// Pending reports whether a task of kind is scheduled.
func (s *Set) Pending(kind Kind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[kind]
	return ok
}

// Stop cancels every task. Later scheduling calls are ignored.
func (s *Set) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for kind, t := range s.tasks {
		t.stop()
		delete(s.tasks, kind)
	}
	s.stopped = true
}

// replace cancels the current task of kind and installs a fresh one.
// Callers hold s.mu.
func (s *Set) replace(kind Kind) *task {
	if old, ok := s.tasks[kind]; ok {
		old.stop()
	}
	s.next++
	t := &task{token: s.next}
	s.tasks[kind] = t
	return t
}

// claim checks that token is still the live task of kind. One-shot tasks
// release their slot when they fire.
func (s *Set) claim(kind Kind, token uint64, once bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[kind]
	if !ok || t.token != token {
		return false
	}
	if once {
		delete(s.tasks, kind)
	}
	return true
}
