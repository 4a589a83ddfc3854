// Package autofilltest provides test doubles for the autofill package.
package autofilltest

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler collects scheduled callbacks and runs them only when
// Advance moves its clock past their due time.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []task
}

type task struct {
	due time.Duration
	seq int
	fn  func()
}

func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.tasks = append(s.tasks, task{due: s.now + d, seq: s.seq, fn: f})
}

// Pending returns the number of callbacks not yet run.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Advance moves the clock forward by d and runs every callback that came
// due, in due order. Callbacks scheduled while advancing run too when
// they fall inside the window.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	for {
		s.mu.Lock()
		sort.SliceStable(s.tasks, func(i, j int) bool {
			if s.tasks[i].due != s.tasks[j].due {
				return s.tasks[i].due < s.tasks[j].due
			}
			return s.tasks[i].seq < s.tasks[j].seq
		})
		if len(s.tasks) == 0 || s.tasks[0].due > target {
			s.now = target
			s.mu.Unlock()
			return
		}
		t := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.now = t.due
		s.mu.Unlock()
		t.fn()
	}
}
