package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/nexusapp/nexus/internal/stream"
)

func TestDocumentRoundTrip(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	doc, err := mem.GetDocument(ctx, "u1", stream.User)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != nil {
		t.Fatalf("expected nil for missing document")
	}

	want := stream.Document{Value: json.RawMessage(`{"name":"Ada"}`), UpdatedAt: time.Now().UTC()}
	if err := mem.SetDocument(ctx, "u1", stream.User, want); err != nil {
		t.Fatalf("failed to set document: %v", err)
	}

	doc, err = mem.GetDocument(ctx, "u1", stream.User)
	if err != nil {
		t.Fatalf("failed to get document: %v", err)
	}
	if doc == nil || string(doc.Value) != string(want.Value) {
		t.Fatalf("expected %s, got %+v", want.Value, doc)
	}

	// Other users see nothing.
	doc, err = mem.GetDocument(ctx, "u2", stream.User)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc != nil {
		t.Fatalf("documents leaked across users")
	}
}

func TestItemsPreserveInsertionOrder(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		item := stream.Item{ID: fmt.Sprintf("%d", i), Data: json.RawMessage(fmt.Sprintf(`{"id":%d}`, i))}
		if err := mem.PutItem(ctx, "u1", stream.Tasks, item); err != nil {
			t.Fatalf("failed to put item: %v", err)
		}
	}

	items, err := mem.ListItems(ctx, "u1", stream.Tasks)
	if err != nil {
		t.Fatalf("failed to list items: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.ID != fmt.Sprintf("%d", i+1) {
			t.Fatalf("expected item %d to have id %d, got %s", i, i+1, item.ID)
		}
	}
}

func TestPutItemMergesFields(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	full := stream.Item{ID: "1", Data: json.RawMessage(`{"id":1,"title":"Read","completed":false}`)}
	if err := mem.PutItem(ctx, "u1", stream.Tasks, full); err != nil {
		t.Fatalf("failed to put item: %v", err)
	}

	patch := stream.Item{ID: "1", Data: json.RawMessage(`{"completed":true}`)}
	if err := mem.PutItem(ctx, "u1", stream.Tasks, patch); err != nil {
		t.Fatalf("failed to merge item: %v", err)
	}

	items, err := mem.ListItems(ctx, "u1", stream.Tasks)
	if err != nil {
		t.Fatalf("failed to list items: %v", err)
	}
	var got struct {
		Title     string `json:"title"`
		Completed bool   `json:"completed"`
	}
	if err := json.Unmarshal(items[0].Data, &got); err != nil {
		t.Fatalf("failed to decode merged item: %v", err)
	}
	if got.Title != "Read" || !got.Completed {
		t.Fatalf("expected merged item to keep title and flip completed, got %+v", got)
	}
}

func TestDeleteItemIsIdempotent(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	item := stream.Item{ID: "1", Data: json.RawMessage(`{"id":1}`)}
	if err := mem.PutItem(ctx, "u1", stream.Tasks, item); err != nil {
		t.Fatalf("failed to put item: %v", err)
	}

	if err := mem.DeleteItem(ctx, "u1", stream.Tasks, "1"); err != nil {
		t.Fatalf("failed to delete item: %v", err)
	}
	if err := mem.DeleteItem(ctx, "u1", stream.Tasks, "1"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}

	items, err := mem.ListItems(ctx, "u1", stream.Tasks)
	if err != nil {
		t.Fatalf("failed to list items: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty collection, got %d items", len(items))
	}
}

func TestReplaceItems(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.PutItem(ctx, "u1", stream.Tasks, stream.Item{ID: "1", Data: json.RawMessage(`{"id":1}`)}); err != nil {
		t.Fatalf("failed to put item: %v", err)
	}

	replacement := []stream.Item{
		{ID: "2", Data: json.RawMessage(`{"id":2}`)},
		{ID: "3", Data: json.RawMessage(`{"id":3}`)},
	}
	if err := mem.ReplaceItems(ctx, "u1", stream.Tasks, replacement); err != nil {
		t.Fatalf("failed to replace items: %v", err)
	}

	items, err := mem.ListItems(ctx, "u1", stream.Tasks)
	if err != nil {
		t.Fatalf("failed to list items: %v", err)
	}
	if len(items) != 2 || items[0].ID != "2" || items[1].ID != "3" {
		t.Fatalf("expected replacement to win wholesale, got %+v", items)
	}
}

func TestSubscribeDeliversInitialSnapshot(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	if err := mem.PutItem(ctx, "u1", stream.Tasks, stream.Item{ID: "1", Data: json.RawMessage(`{"id":1}`)}); err != nil {
		t.Fatalf("failed to put item: %v", err)
	}

	ch, cancel, err := mem.Subscribe(ctx, "u1", stream.Tasks)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer cancel()

	select {
	case ev := <-ch:
		if len(ev.Items) != 1 || ev.Items[0].ID != "1" {
			t.Fatalf("expected initial snapshot with 1 item, got %+v", ev.Items)
		}
	case <-time.After(time.Second):
		t.Fatalf("no initial snapshot delivered")
	}
}

func TestSubscribeDeliversChanges(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	ch, cancel, err := mem.Subscribe(ctx, "u1", stream.Tasks)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}
	defer cancel()

	<-ch // initial empty snapshot

	if err := mem.PutItem(ctx, "u1", stream.Tasks, stream.Item{ID: "1", Data: json.RawMessage(`{"id":1}`)}); err != nil {
		t.Fatalf("failed to put item: %v", err)
	}

	select {
	case ev := <-ch:
		if len(ev.Items) != 1 {
			t.Fatalf("expected snapshot with 1 item, got %d", len(ev.Items))
		}
	case <-time.After(time.Second):
		t.Fatalf("no change event delivered")
	}
}

func TestSubscribeCancelIsIdempotent(t *testing.T) {
	mem := NewMemory()

	ch, cancel, err := mem.Subscribe(context.Background(), "u1", stream.Tasks)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	cancel()
	cancel()

	// Channel drains the initial snapshot then closes.
	<-ch
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed after cancel")
	}

	// Writes after cancel must not panic on the closed channel.
	if err := mem.PutItem(context.Background(), "u1", stream.Tasks, stream.Item{ID: "1", Data: json.RawMessage(`{"id":1}`)}); err != nil {
		t.Fatalf("failed to put item after cancel: %v", err)
	}
}

func TestSubscribeCancelsOnContextDone(t *testing.T) {
	mem := NewMemory()
	ctx, cancelCtx := context.WithCancel(context.Background())

	ch, _, err := mem.Subscribe(ctx, "u1", stream.Tasks)
	if err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	cancelCtx()

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatalf("channel not closed after context cancellation")
		}
	}
}

func TestSetWriteErrFailsWrites(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	wantErr := fmt.Errorf("permission denied")
	mem.SetWriteErr(wantErr)

	if err := mem.PutItem(ctx, "u1", stream.Tasks, stream.Item{ID: "1", Data: json.RawMessage(`{"id":1}`)}); err != wantErr {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := mem.SetDocument(ctx, "u1", stream.User, stream.Document{Value: json.RawMessage(`{}`)}); err != wantErr {
		t.Fatalf("expected injected error, got %v", err)
	}

	// Reads still work.
	if _, err := mem.ListItems(ctx, "u1", stream.Tasks); err != nil {
		t.Fatalf("reads should not fail: %v", err)
	}

	mem.SetWriteErr(nil)
	if err := mem.PutItem(ctx, "u1", stream.Tasks, stream.Item{ID: "1", Data: json.RawMessage(`{"id":1}`)}); err != nil {
		t.Fatalf("writes should recover after clearing the error: %v", err)
	}
}
