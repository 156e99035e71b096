package viewsync

import (
	"sync"
	"time"
)

// Scheduler defers a function to the next tick, after the caller's current
// handler has returned. The returned cancel func reports whether it stopped
// the function before it ran.
type Scheduler interface {
	Defer(fn func()) (cancel func() bool)
}

// TimerScheduler defers with a zero-delay timer.
type TimerScheduler struct{}

func (TimerScheduler) Defer(fn func()) func() bool {
	t := time.AfterFunc(0, fn)
	return t.Stop
}

// ManualScheduler queues deferred functions until Tick runs them. It gives
// hosts and tests full control over when the next tick happens.
type ManualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	fn   func()
	done bool // ran or cancelled
}

func (s *ManualScheduler) Defer(fn func()) func() bool {
	task := &manualTask{fn: fn}
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if task.done {
			return false
		}
		task.done = true
		for i, t := range s.tasks {
			if t == task {
				s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
				break
			}
		}
		return true
	}
}

// Tick runs the functions queued before the call, in order, and returns how
// many ran. Functions deferred while ticking wait for the next Tick.
func (s *ManualScheduler) Tick() int {
	s.mu.Lock()
	due := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	ran := 0
	for _, t := range due {
		s.mu.Lock()
		skip := t.done
		t.done = true
		s.mu.Unlock()
		if skip {
			continue
		}
		t.fn()
		ran++
	}
	return ran
}

// Pending returns the number of queued functions.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}
