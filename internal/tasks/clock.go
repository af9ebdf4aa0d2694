package tasks

import (
	"context"
	"time"
)

// StartClock begins the once-per-second tick that drives "due in" displays
// and due-today grouping. The clock stops when ctx is done or StopClock is
// called.
func (s *Store) StartClock(ctx context.Context) {
	s.mu.Lock()
	if s.clockCancel != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.clockCancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.mu.Lock()
				s.currentTime = now
				s.mu.Unlock()
			}
		}
	}()
}

// StopClock stops the ticking clock. Safe to call without StartClock.
func (s *Store) StopClock() {
	s.mu.Lock()
	cancel := s.clockCancel
	s.clockCancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// CurrentTime returns the last clock tick (or the construction time before
// the first tick).
func (s *Store) CurrentTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentTime
}
