package bridge

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nexusapp/nexus/internal/engine"
	"github.com/nexusapp/nexus/internal/local"
	"github.com/nexusapp/nexus/internal/remote"
	"github.com/nexusapp/nexus/internal/stream"
	"github.com/nexusapp/nexus/internal/tasks"
)

func setupBridge(t *testing.T) (*Bridge, *tasks.Store, string) {
	t.Helper()

	localStore, err := local.Open(filepath.Join(t.TempDir(), "nexus.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	t.Cleanup(func() { _ = localStore.Close() })

	// Seed an empty list so the store does not start with samples.
	if err := localStore.Put(stream.Tasks.LocalKey(), []byte(`[]`)); err != nil {
		t.Fatalf("failed to seed tasks: %v", err)
	}

	eng := engine.New(localStore, remote.NewMemory(), log.New(io.Discard, "", 0))
	store, err := tasks.New(eng, tasks.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("failed to create task store: %v", err)
	}

	dir := filepath.Join(t.TempDir(), "drop")
	cfg := DefaultConfig(dir)
	cfg.DebounceInterval = 20 * time.Millisecond
	cfg.Logger = log.New(io.Discard, "", 0)

	b, err := New(store, cfg)
	if err != nil {
		t.Fatalf("failed to create bridge: %v", err)
	}
	return b, store, dir
}

func writeTaskFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
		t.Fatalf("failed to write task file: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func TestImportsExistingFilesOnStart(t *testing.T) {
	b, store, dir := setupBridge(t)

	writeTaskFile(t, dir, "task1.json",
		`{"id":1,"title":"pre-existing","tag":"School","priority":"normal"}`)

	if err := b.Start(); err != nil {
		t.Fatalf("failed to start bridge: %v", err)
	}
	defer b.Stop()

	got := store.Tasks()
	if len(got) != 1 || got[0].Title != "pre-existing" {
		t.Fatalf("expected existing file imported at start, got %+v", got)
	}
}

func TestImportsDroppedFiles(t *testing.T) {
	b, store, dir := setupBridge(t)

	if err := b.Start(); err != nil {
		t.Fatalf("failed to start bridge: %v", err)
	}
	defer b.Stop()

	writeTaskFile(t, dir, "task2.json",
		`{"id":2,"title":"dropped","tag":"Personal","priority":"high"}`)

	waitFor(t, func() bool {
		for _, task := range store.Tasks() {
			if task.ID == 2 {
				return true
			}
		}
		return false
	}, "dropped file imported")
}

func TestRewrittenFileUpdatesTask(t *testing.T) {
	b, store, dir := setupBridge(t)

	if err := b.Start(); err != nil {
		t.Fatalf("failed to start bridge: %v", err)
	}
	defer b.Stop()

	writeTaskFile(t, dir, "task3.json",
		`{"id":3,"title":"first version","tag":"School","priority":"normal"}`)
	waitFor(t, func() bool {
		return len(store.Tasks()) == 1
	}, "initial import")

	writeTaskFile(t, dir, "task3.json",
		`{"id":3,"title":"second version","tag":"School","priority":"high","completed":true}`)
	waitFor(t, func() bool {
		got := store.Tasks()
		return len(got) == 1 && got[0].Title == "second version" && got[0].Completed
	}, "rewritten file applied as update")
}

func TestInvalidFilesAreSkipped(t *testing.T) {
	b, store, dir := setupBridge(t)

	writeTaskFile(t, dir, "broken.json", `{not json`)
	writeTaskFile(t, dir, "invalid.json", `{"id":4,"title":"","tag":"School","priority":"normal"}`)
	writeTaskFile(t, dir, "notes.txt", `not a task file`)

	if err := b.Start(); err != nil {
		t.Fatalf("failed to start bridge: %v", err)
	}
	defer b.Stop()

	if got := store.Tasks(); len(got) != 0 {
		t.Fatalf("expected nothing imported, got %+v", got)
	}
}

func TestNewRequiresDirectory(t *testing.T) {
	localStore, err := local.Open(filepath.Join(t.TempDir(), "nexus.db"))
	if err != nil {
		t.Fatalf("failed to open local store: %v", err)
	}
	defer localStore.Close()

	eng := engine.New(localStore, remote.NewMemory(), log.New(io.Discard, "", 0))
	store, err := tasks.New(eng, tasks.WithLogger(log.New(io.Discard, "", 0)))
	if err != nil {
		t.Fatalf("failed to create task store: %v", err)
	}

	if _, err := New(store, &Config{}); err == nil {
		t.Fatalf("expected error for missing watch directory")
	}
	if _, err := New(nil, DefaultConfig(t.TempDir())); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
