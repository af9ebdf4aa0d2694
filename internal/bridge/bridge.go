// Package bridge imports task files dropped into a watched directory.
//
// The desktop shell (and anything else that can write a file) exports
// tasks as JSON files. The bridge watches the drop directory, debounces
// rapid writes, and upserts each parsed task into the task store, which
// then syncs it like any other mutation.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nexusapp/nexus/internal/stream"
	"github.com/nexusapp/nexus/internal/tasks"
)

// Config holds bridge configuration.
type Config struct {
	// Dir is the watched drop directory. Created if missing.
	Dir string

	// DebounceInterval is how long to wait before processing a changed
	// file, batching rapid rewrites together.
	DebounceInterval time.Duration

	// Logger for bridge activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults for the given directory.
func DefaultConfig(dir string) *Config {
	return &Config{
		Dir:              dir,
		DebounceInterval: 100 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[bridge] ", log.LstdFlags),
	}
}

// Bridge watches the drop directory and feeds task files into the store.
type Bridge struct {
	store  *tasks.Store
	config *Config

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time
	changeQueueMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a bridge over the task store.
func New(store *tasks.Store, config *Config) (*Bridge, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if config == nil || config.Dir == "" {
		return nil, fmt.Errorf("config with a watch directory is required")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 100 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[bridge] ", log.LstdFlags)
	}

	if err := os.MkdirAll(config.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create watch directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Bridge{
		store:       store,
		config:      config,
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start begins watching. It processes files already present in the
// directory, then watches for new ones. Non-blocking; call Stop to end.
func (b *Bridge) Start() error {
	if err := b.importExisting(); err != nil {
		return err
	}

	if err := b.watcher.Add(b.config.Dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", b.config.Dir, err)
	}

	b.config.Logger.Printf("Watching %s for task files", b.config.Dir)

	b.wg.Add(2)
	go b.watchFileEvents()
	go b.processChangeQueue()
	return nil
}

// Stop ends watching and waits for in-flight processing.
func (b *Bridge) Stop() error {
	b.cancel()
	if err := b.watcher.Close(); err != nil {
		b.config.Logger.Printf("Error closing watcher: %v", err)
	}
	b.wg.Wait()
	return nil
}

// importExisting processes task files already in the drop directory.
func (b *Bridge) importExisting() error {
	entries, err := os.ReadDir(b.config.Dir)
	if err != nil {
		return fmt.Errorf("failed to read watch directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		b.importFile(filepath.Join(b.config.Dir, entry.Name()))
	}
	return nil
}

// watchFileEvents queues filesystem events for debounced processing.
func (b *Bridge) watchFileEvents() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return

		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			b.queueChange(event.Name)

		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// queueChange records a file change with its timestamp for debouncing.
func (b *Bridge) queueChange(path string) {
	b.changeQueueMu.Lock()
	defer b.changeQueueMu.Unlock()
	b.changeQueue[path] = time.Now()
}

// processChangeQueue imports files whose last change is old enough.
func (b *Bridge) processChangeQueue() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.processPendingChanges()
		}
	}
}

func (b *Bridge) processPendingChanges() {
	b.changeQueueMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range b.changeQueue {
		if now.Sub(queuedAt) < b.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(b.changeQueue, path)
	}
	b.changeQueueMu.Unlock()

	for _, path := range ready {
		b.importFile(path)
	}
}

// importFile parses one dropped task file and upserts it into the store.
// Files that fail to parse or validate are logged and skipped.
func (b *Bridge) importFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		b.config.Logger.Printf("Error reading %s: %v", path, err)
		return
	}

	var task stream.Task
	if err := json.Unmarshal(data, &task); err != nil {
		b.config.Logger.Printf("Skipping invalid task file %s: %v", filepath.Base(path), err)
		return
	}
	if err := task.Validate(); err != nil {
		b.config.Logger.Printf("Skipping invalid task file %s: %v", filepath.Base(path), err)
		return
	}

	b.upsert(task)
	b.config.Logger.Printf("Imported task %d (%s)", task.ID, task.Title)
}

// upsert creates the task if its id is unknown, otherwise patches the
// existing task's fields.
func (b *Bridge) upsert(task stream.Task) {
	for _, existing := range b.store.Tasks() {
		if existing.ID == task.ID {
			b.store.UpdateTask(task.ID, tasks.Patch{
				Title:     &task.Title,
				Date:      &task.Date,
				Time:      &task.Time,
				Tag:       &task.Tag,
				Priority:  &task.Priority,
				Completed: &task.Completed,
			})
			return
		}
	}
	b.store.ImportTask(task)
}
