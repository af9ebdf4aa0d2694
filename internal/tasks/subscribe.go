package tasks

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/nexusapp/nexus/internal/remote"
	"github.com/nexusapp/nexus/internal/stream"
)

// StartSync opens the live feed of the remote task collection. Call after
// the session authenticates; StopSync (or sign-out, which cancels the feed
// at the engine) ends it. Calling StartSync again replaces the previous
// feed.
func (s *Store) StartSync() {
	s.mu.Lock()
	prev := s.unsubscribe
	s.sawSnapshot = false
	s.mu.Unlock()
	if prev != nil {
		prev()
	}

	unsub := s.engine.Subscribe(stream.Tasks, s.handleEvent)
	s.mu.Lock()
	s.unsubscribe = unsub
	s.mu.Unlock()
}

// StopSync cancels the live feed. Safe to call repeatedly or without a
// prior StartSync.
func (s *Store) StopSync() {
	s.mu.Lock()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
}

// handleEvent processes one remote snapshot of the task collection.
func (s *Store) handleEvent(ev remote.Event) {
	remoteTasks := decodeTasks(ev.Items)

	s.mu.Lock()

	if !s.sawSnapshot {
		// First snapshot after subscribing: decide the merge direction.
		s.sawSnapshot = true

		switch {
		case len(remoteTasks) == 0 && len(s.tasks) > 0:
			// The cloud collection is empty but this device has
			// tasks: adopt the local list upstream and keep showing
			// it.
			toPush := stream.CloneTasks(s.tasks)
			s.pendingOps++
			s.mu.Unlock()
			s.logger.Printf("First sync: pushing %d local tasks to cloud", len(toPush))
			s.pushAll(toPush)
			return

		case len(remoteTasks) > 0:
			// The cloud already has tasks: it wins on first sync.
			s.logger.Printf("First sync: adopting %d cloud tasks", len(remoteTasks))
			s.tasks = remoteTasks
			s.persistLocalLocked()
			s.mu.Unlock()
			return

		default:
			s.mu.Unlock()
			return
		}
	}

	// After the first snapshot the remote is authoritative, with two
	// exceptions that suppress echoes of our own writes: snapshots that
	// arrive while a local mutation is still in flight, and snapshots
	// identical to current state.
	if s.pendingOps > 0 {
		s.mu.Unlock()
		return
	}
	if tasksEqual(remoteTasks, s.tasks) {
		s.mu.Unlock()
		return
	}

	s.logger.Printf("Adopting cloud snapshot: %d tasks", len(remoteTasks))
	s.tasks = remoteTasks
	s.persistLocalLocked()
	s.mu.Unlock()
}

// pushAll writes every task as an individual remote item. Used by the
// first-sync adoption path. The caller has already incremented pendingOps.
func (s *Store) pushAll(tasks []stream.Task) {
	s.ops.Add(1)
	go func() {
		defer s.ops.Done()
		ctx := context.Background()
		for _, t := range tasks {
			if err := s.engine.PutItem(ctx, stream.Tasks, taskItem(t)); err != nil {
				s.logger.Printf("First sync: error pushing task %d: %v", t.ID, err)
			}
		}
		s.mu.Lock()
		s.pendingOps--
		s.mu.Unlock()
	}()
}

// decodeTasks converts collection items to tasks, dropping malformed
// entries rather than failing the whole snapshot.
func decodeTasks(items []stream.Item) []stream.Task {
	tasks := make([]stream.Task, 0, len(items))
	for _, it := range items {
		var t stream.Task
		if err := json.Unmarshal(it.Data, &t); err != nil {
			continue
		}
		if t.ID == 0 {
			if id, err := strconv.ParseInt(it.ID, 10, 64); err == nil {
				t.ID = id
			}
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// tasksEqual compares two task lists including order.
func tasksEqual(a, b []stream.Task) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
