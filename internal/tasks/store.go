// Package tasks implements the task feature store: optimistic local
// mutation with eventual remote consistency.
//
// State initializes synchronously from the local store so callers never
// block on startup. Every mutation applies to in-memory state immediately,
// persists to the local store, and (when authenticated) issues a per-item
// remote write in the background. A failed remote write rolls the store
// back to the exact pre-mutation state.
//
// While authenticated the store also follows a live feed of the remote
// task collection. The first snapshot decides the merge direction; after
// that the remote is authoritative, except that echoes of the store's own
// in-flight writes are suppressed.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/remote"
	"github.com/nexusapp/nexus/internal/stream"
)

// Patch holds optional field updates for UpdateTask. Nil fields are left
// unchanged; the task id itself is immutable.
type Patch struct {
	Title     *string
	Date      *string
	Time      *string
	Tag       *string
	Priority  *string
	Completed *bool
}

// Store owns the tasks collection stream. It is the single writer of the
// task list in the process; consumers read snapshots and call mutation
// methods, never modify the returned slices.
type Store struct {
	engine *engine.Engine
	logger *log.Logger
	report func(error)
	now    func() time.Time

	mu          sync.Mutex
	tasks       []stream.Task
	initialized bool
	pendingOps  int
	sawSnapshot bool
	currentTime time.Time

	unsubscribe remote.CancelFunc
	clockCancel context.CancelFunc
	ops         sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithErrorReporter sets the collaborator notified when a remote mutation
// fails and the optimistic update is rolled back.
func WithErrorReporter(fn func(error)) Option {
	return func(s *Store) { s.report = fn }
}

// WithNow overrides the clock used for ids and due computations.
func WithNow(fn func() time.Time) Option {
	return func(s *Store) { s.now = fn }
}

// New creates the task store, loading initial state from the local store.
//
// A missing or unreadable tasks entry seeds the starter task list; the
// store never fails to initialize because of corrupt persisted data.
func New(eng *engine.Engine, opts ...Option) (*Store, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}

	s := &Store{
		engine: eng,
		logger: log.New(os.Stderr, "[tasks] ", log.LstdFlags),
		report: func(error) {},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := eng.Load(context.Background(), stream.Tasks)
	if err != nil {
		s.logger.Printf("Error loading tasks, starting with samples: %v", err)
	}
	if raw == nil {
		s.tasks = stream.SampleTasks()
	} else {
		var loaded []stream.Task
		if err := json.Unmarshal(raw, &loaded); err != nil {
			s.logger.Printf("Corrupt task data, starting empty: %v", err)
			loaded = []stream.Task{}
		}
		s.tasks = loaded
	}

	s.currentTime = s.now()
	s.initialized = true
	return s, nil
}

// Tasks returns a snapshot of the current task list.
func (s *Store) Tasks() []stream.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return stream.CloneTasks(s.tasks)
}

// AddTask creates a new task with a creation-timestamp id and Completed
// false, applies it optimistically, and writes the single new item to the
// remote store.
func (s *Store) AddTask(title, date, timeOfDay, tag, priority string) (stream.Task, error) {
	if !s.ready("AddTask") {
		return stream.Task{}, fmt.Errorf("store not initialized")
	}

	task := stream.Task{
		ID:       s.now().UnixMilli(),
		Title:    title,
		Date:     date,
		Time:     timeOfDay,
		Tag:      tag,
		Priority: priority,
	}
	if err := task.Validate(); err != nil {
		return stream.Task{}, err
	}

	s.mutate(func(tasks []stream.Task) []stream.Task {
		return append(tasks, task)
	}, func(ctx context.Context) error {
		return s.engine.PutItem(ctx, stream.Tasks, taskItem(task))
	})
	return task, nil
}

// ImportTask inserts an externally-created task, keeping its existing id.
// Used by the file import bridge; duplicate ids are logged no-ops.
func (s *Store) ImportTask(task stream.Task) error {
	if !s.ready("ImportTask") {
		return fmt.Errorf("store not initialized")
	}
	if err := task.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	for _, t := range s.tasks {
		if t.ID == task.ID {
			s.mu.Unlock()
			s.logger.Printf("ImportTask: task %d already exists, skipping", task.ID)
			return nil
		}
	}
	s.mu.Unlock()

	s.mutate(func(tasks []stream.Task) []stream.Task {
		return append(tasks, task)
	}, func(ctx context.Context) error {
		return s.engine.PutItem(ctx, stream.Tasks, taskItem(task))
	})
	return nil
}

// ToggleTask flips the completed flag of the task with the given id and
// merge-writes only that item remotely.
func (s *Store) ToggleTask(id int64) {
	s.mutateItem(id, func(t *stream.Task) {
		t.Completed = !t.Completed
	})
}

// UpdateTask applies a field patch to the task with the given id and
// merge-writes only that item remotely.
func (s *Store) UpdateTask(id int64, patch Patch) {
	s.mutateItem(id, func(t *stream.Task) {
		if patch.Title != nil {
			t.Title = *patch.Title
		}
		if patch.Date != nil {
			t.Date = *patch.Date
		}
		if patch.Time != nil {
			t.Time = *patch.Time
		}
		if patch.Tag != nil {
			t.Tag = *patch.Tag
		}
		if patch.Priority != nil {
			t.Priority = *patch.Priority
		}
		if patch.Completed != nil {
			t.Completed = *patch.Completed
		}
	})
}

// DeleteTask removes the task with the given id and deletes that single
// item document remotely.
func (s *Store) DeleteTask(id int64) {
	if !s.ready("DeleteTask") {
		return
	}
	s.mutate(func(tasks []stream.Task) []stream.Task {
		out := tasks[:0]
		for _, t := range tasks {
			if t.ID != id {
				out = append(out, t)
			}
		}
		return out
	}, func(ctx context.Context) error {
		return s.engine.DeleteItem(ctx, stream.Tasks, strconv.FormatInt(id, 10))
	})
}

// mutateItem applies fn to the matching task and merge-writes the changed
// item. Unknown ids are logged no-ops.
func (s *Store) mutateItem(id int64, fn func(*stream.Task)) {
	if !s.ready("mutate") {
		return
	}

	var changed *stream.Task
	s.mutate(func(tasks []stream.Task) []stream.Task {
		for i := range tasks {
			if tasks[i].ID == id {
				fn(&tasks[i])
				c := tasks[i]
				changed = &c
				break
			}
		}
		return tasks
	}, func(ctx context.Context) error {
		if changed == nil {
			return nil
		}
		return s.engine.PutItem(ctx, stream.Tasks, taskItem(*changed))
	})
}

// mutate runs the optimistic mutation protocol: snapshot previous state,
// apply, persist locally, then issue the remote op in the background and
// roll back verbatim if it fails.
func (s *Store) mutate(apply func([]stream.Task) []stream.Task, remoteOp func(context.Context) error) {
	s.mu.Lock()
	prev := stream.CloneTasks(s.tasks)
	s.tasks = apply(stream.CloneTasks(s.tasks))
	s.persistLocalLocked()
	s.pendingOps++
	s.mu.Unlock()

	s.ops.Add(1)
	go func() {
		defer s.ops.Done()
		err := remoteOp(context.Background())

		s.mu.Lock()
		s.pendingOps--
		if err != nil {
			// Restore the exact pre-mutation value, not just the
			// changed field: the array shape may have moved under a
			// racing mutation and a partial undo would corrupt it.
			s.tasks = prev
			s.persistLocalLocked()
			s.mu.Unlock()
			s.logger.Printf("Remote task write failed, rolled back: %v", err)
			s.report(err)
			return
		}
		s.mu.Unlock()
	}()
}

// ready reports whether the store is initialized; misuse is a logged no-op
// rather than silent state corruption.
func (s *Store) ready(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.initialized {
		s.logger.Printf("WARNING: %s called before store initialization, ignoring", op)
		return false
	}
	return true
}

// persistLocalLocked writes the current task list to the local store.
// Caller holds s.mu. The local store reflects every state change so no
// mutation is lost on process restart.
func (s *Store) persistLocalLocked() {
	data, err := json.Marshal(s.tasks)
	if err != nil {
		s.logger.Printf("Error marshaling tasks: %v", err)
		return
	}
	if err := s.engine.SaveLocal(stream.Tasks, data); err != nil {
		s.logger.Printf("Error persisting tasks locally: %v", err)
	}
}

// Flush waits for in-flight remote mutations. Call during teardown and in
// tests before asserting on final state.
func (s *Store) Flush() {
	s.ops.Wait()
}

// taskItem converts a task to its collection item form.
func taskItem(t stream.Task) stream.Item {
	data, _ := json.Marshal(t)
	return stream.Item{ID: strconv.FormatInt(t.ID, 10), Data: data}
}
