package tasks

import (
	"sort"

	"github.com/nexusapp/nexus/internal/stream"
)

// Pending returns incomplete tasks sorted for display: high priority before
// normal, then ascending due date. Tasks without a date sort last within
// their priority band.
func (s *Store) Pending() []stream.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []stream.Task
	for _, t := range s.tasks {
		if !t.Completed {
			pending = append(pending, t)
		}
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority == stream.PriorityHigh
		}
		di, dj := pending[i].Date, pending[j].Date
		if di == "" || dj == "" {
			return dj == "" && di != ""
		}
		return di < dj
	})
	return pending
}

// Completed returns finished tasks in insertion order.
func (s *Store) Completed() []stream.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var done []stream.Task
	for _, t := range s.tasks {
		if t.Completed {
			done = append(done, t)
		}
	}
	return done
}

// DueToday returns tasks whose due date matches the clock's current
// calendar date.
func (s *Store) DueToday() []stream.Task {
	s.mu.Lock()
	now := s.currentTime
	all := stream.CloneTasks(s.tasks)
	s.mu.Unlock()

	var due []stream.Task
	for _, t := range all {
		if t.DueToday(now) {
			due = append(due, t)
		}
	}
	return due
}
