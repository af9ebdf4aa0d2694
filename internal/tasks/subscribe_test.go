package tasks

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"
	"time"

	"github.com/nexusapp/nexus/internal/stream"
)

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

func remoteTaskItem(t *testing.T, task stream.Task) stream.Item {
	t.Helper()
	data, err := json.Marshal(task)
	if err != nil {
		t.Fatalf("failed to marshal task: %v", err)
	}
	return stream.Item{ID: strconv.FormatInt(task.ID, 10), Data: data}
}

func TestFirstSyncPushesLocalTasks(t *testing.T) {
	eng, localStore, mem := setupEngine(t)
	ctx := context.Background()

	seedLocalTasks(t, localStore, []stream.Task{
		{ID: 1, Title: "offline one", Tag: stream.TagSchool, Priority: stream.PriorityNormal},
		{ID: 2, Title: "offline two", Tag: stream.TagPersonal, Priority: stream.PriorityHigh},
	})

	// Build the store while still signed out so it holds the local list.
	store, err := New(eng, quiet())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	before := store.Tasks()

	authenticate(eng, "u1")
	store.StartSync()
	defer store.StopSync()

	waitFor(t, func() bool {
		items, err := mem.ListItems(ctx, "u1", stream.Tasks)
		return err == nil && len(items) == 2
	}, "local tasks pushed to cloud")
	store.Flush()

	after := store.Tasks()
	if len(after) != len(before) {
		t.Fatalf("first sync with empty cloud must keep local tasks, got %+v", after)
	}
	for i := range before {
		if after[i] != before[i] {
			t.Fatalf("local task %d changed during first sync", before[i].ID)
		}
	}
}

func TestFirstSyncAdoptsCloudTasks(t *testing.T) {
	eng, localStore, mem := setupEngine(t)
	ctx := context.Background()

	seedLocalTasks(t, localStore, []stream.Task{
		{ID: 1, Title: "local loser", Tag: stream.TagSchool, Priority: stream.PriorityNormal},
	})
	cloud := stream.Task{ID: 100, Title: "cloud winner", Tag: stream.TagSchool, Priority: stream.PriorityHigh}
	if err := mem.PutItem(ctx, "u1", stream.Tasks, remoteTaskItem(t, cloud)); err != nil {
		t.Fatalf("failed to seed cloud: %v", err)
	}

	store, err := New(eng, quiet())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	authenticate(eng, "u1")
	store.StartSync()
	defer store.StopSync()

	waitFor(t, func() bool {
		got := store.Tasks()
		return len(got) == 1 && got[0].ID == 100
	}, "cloud tasks adopted")

	// The adopted snapshot is persisted locally.
	waitFor(t, func() bool {
		persisted := localTasks(t, localStore)
		return len(persisted) == 1 && persisted[0].ID == 100
	}, "adopted snapshot persisted")
}

func TestFirstSyncBothEmptyIsQuiet(t *testing.T) {
	eng, localStore, mem := setupEngine(t)
	ctx := context.Background()

	seedLocalTasks(t, localStore, []stream.Task{})

	store, err := New(eng, quiet())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	authenticate(eng, "u1")
	store.StartSync()
	defer store.StopSync()

	time.Sleep(100 * time.Millisecond)
	store.Flush()

	if got := store.Tasks(); len(got) != 0 {
		t.Fatalf("expected empty list, got %+v", got)
	}
	items, _ := mem.ListItems(ctx, "u1", stream.Tasks)
	if len(items) != 0 {
		t.Fatalf("expected nothing pushed, got %+v", items)
	}
}

func TestRemoteChangesAdoptedAfterFirstSync(t *testing.T) {
	eng, localStore, mem := setupEngine(t)
	ctx := context.Background()

	seedLocalTasks(t, localStore, []stream.Task{})
	store, err := New(eng, quiet())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	authenticate(eng, "u1")
	store.StartSync()
	defer store.StopSync()

	// Another device writes after our first snapshot.
	edited := stream.Task{ID: 200, Title: "from another device", Tag: stream.TagPersonal, Priority: stream.PriorityNormal}
	if err := mem.PutItem(ctx, "u1", stream.Tasks, remoteTaskItem(t, edited)); err != nil {
		t.Fatalf("failed to put remote item: %v", err)
	}

	waitFor(t, func() bool {
		got := store.Tasks()
		return len(got) == 1 && got[0].ID == 200
	}, "remote edit adopted")
}

func TestOwnWritesAreNotEchoedBack(t *testing.T) {
	eng, localStore, mem := setupEngine(t)
	ctx := context.Background()

	seedLocalTasks(t, localStore, []stream.Task{})
	store, err := New(eng, quiet())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	authenticate(eng, "u1")
	store.StartSync()
	defer store.StopSync()

	task, err := store.AddTask("No flicker", "", "", stream.TagSchool, stream.PriorityNormal)
	if err != nil {
		t.Fatalf("failed to add task: %v", err)
	}

	waitFor(t, func() bool {
		items, err := mem.ListItems(ctx, "u1", stream.Tasks)
		return err == nil && len(items) == 1
	}, "write reached the cloud")
	store.Flush()

	// Let any echo events drain through the handler.
	time.Sleep(100 * time.Millisecond)

	got := store.Tasks()
	if len(got) != 1 || got[0].ID != task.ID {
		t.Fatalf("echo corrupted state: %+v", got)
	}
}

func TestStopSyncIsIdempotent(t *testing.T) {
	eng, _, _ := setupEngine(t)

	store, err := New(eng, quiet())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	store.StopSync()

	authenticate(eng, "u1")
	store.StartSync()
	store.StopSync()
	store.StopSync()
}

func TestClockTicks(t *testing.T) {
	eng, _, _ := setupEngine(t)

	start := time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
	store, err := New(eng, quiet(), WithNow(func() time.Time { return start }))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	if got := store.CurrentTime(); !got.Equal(start) {
		t.Fatalf("expected construction time before first tick, got %v", got)
	}

	store.StartClock(context.Background())
	defer store.StopClock()

	waitFor(t, func() bool {
		return !store.CurrentTime().Equal(start)
	}, "clock tick")
}
